package driver

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/golang/glog"
)

// MaxDatagramSize bounds a received datagram.
const MaxDatagramSize = 2048

// UDPTransport binds a local port and talks to a fixed peer.
type UDPTransport struct {
	LocalAddr   string
	PeerAddr    string
	ReadTimeout time.Duration
}

// NewUDPTransport creates a UDPTransport.
func NewUDPTransport(local, peer string, readTimeout time.Duration) *UDPTransport {
	return &UDPTransport{LocalAddr: local, PeerAddr: peer, ReadTimeout: readTimeout}
}

// Name implements Transport.
func (t *UDPTransport) Name() string {
	return "udp"
}

// Discover implements Transport.
func (t *UDPTransport) Discover(ctx context.Context) (Conn, error) {
	peer, err := net.ResolveUDPAddr("udp", t.PeerAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: peer %q: %v", ErrDeviceNotFound, t.PeerAddr, err)
	}
	local, err := net.ResolveUDPAddr("udp", t.LocalAddr)
	if err != nil {
		return nil, fmt.Errorf("local address %q: %w", t.LocalAddr, err)
	}
	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		return nil, err
	}
	glog.Infof("udp bound on %s, peer %s", conn.LocalAddr(), peer)
	return &udpConn{conn: conn, peer: peer, timeout: t.ReadTimeout, buf: make([]byte, MaxDatagramSize)}, nil
}

type udpConn struct {
	conn    *net.UDPConn
	peer    *net.UDPAddr
	timeout time.Duration
	buf     []byte
}

// ReadFrames implements Conn.
// Each datagram is a complete frame.
func (c *udpConn) ReadFrames() ([][]byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}
	n, from, err := c.conn.ReadFromUDP(c.buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, err
	}
	glog.V(2).Infof("RX %d bytes from %s", n, from)
	pkt := make([]byte, n)
	copy(pkt, c.buf[:n])
	return [][]byte{pkt}, nil
}

// WriteFrame implements Conn.
func (c *udpConn) WriteFrame(raw []byte) error {
	_, err := c.conn.WriteToUDP(raw, c.peer)
	return err
}

// Close implements Conn.
func (c *udpConn) Close() error {
	return c.conn.Close()
}

func (c *udpConn) String() string {
	return c.conn.LocalAddr().String() + "->" + c.peer.String()
}
