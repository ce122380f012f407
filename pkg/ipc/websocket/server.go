package websocket

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

// ErrNoPeer is returned when writing without a connected consumer.
var ErrNoPeer = errors.New("no consumer connected")

type inbound struct {
	conn *ReadWriter
	pkt  []byte
}

// Server accepts consumer connections and implements PacketReadWriter
// across all of them: packets from any consumer are read in arrival order,
// and written packets are sent to every connected consumer.
type Server struct {
	Addr string
	Path string

	lock     sync.RWMutex
	conns    map[*ReadWriter]struct{}
	listener net.Listener

	packetCh  chan inbound
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewServer creates a Server.
func NewServer(addr, path string) *Server {
	if path == "" {
		path = "/"
	}
	return &Server{
		Addr:     addr,
		Path:     path,
		conns:    make(map[*ReadWriter]struct{}),
		packetCh: make(chan inbound, 64),
		closeCh:  make(chan struct{}),
	}
}

// Listen binds the listening address, Run serves on it.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.lock.Lock()
	s.listener = ln
	s.lock.Unlock()
	return nil
}

// ListenAddr returns the bound address after Listen.
func (s *Server) ListenAddr() net.Addr {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	if s.ListenAddr() == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	mux := http.NewServeMux()
	mux.Handle(s.Path, websocket.Handler(s.serveConn))
	srv := &http.Server{Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(s.listener)
	}()
	glog.Infof("websocket listening on %s%s", s.listener.Addr(), s.Path)
	select {
	case <-ctx.Done():
		srv.Close()
		s.Close()
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) serveConn(conn *websocket.Conn) {
	rw := New(conn)
	s.lock.Lock()
	s.conns[rw] = struct{}{}
	s.lock.Unlock()
	glog.Infof("consumer connected: %s", conn.Request().RemoteAddr)
	defer func() {
		s.lock.Lock()
		delete(s.conns, rw)
		s.lock.Unlock()
		rw.Close()
		glog.Infof("consumer disconnected: %s", conn.Request().RemoteAddr)
	}()
	for {
		pkt, err := rw.ReadPacket()
		if err != nil {
			if err != io.EOF {
				glog.Warningf("consumer read error: %v", err)
			}
			return
		}
		select {
		case s.packetCh <- inbound{conn: rw, pkt: pkt}:
		case <-s.closeCh:
			return
		}
	}
}

// ReadPacket implements PacketReader.
func (s *Server) ReadPacket() ([]byte, error) {
	select {
	case in := <-s.packetCh:
		return in.pkt, nil
	case <-s.closeCh:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter.
func (s *Server) WritePacket(pkt []byte) error {
	s.lock.RLock()
	conns := make([]*ReadWriter, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.lock.RUnlock()
	if len(conns) == 0 {
		return ErrNoPeer
	}
	var lastErr error
	for _, conn := range conns {
		if err := conn.WritePacket(pkt); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Close implements io.Closer.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		close(s.closeCh)
		s.lock.RLock()
		for conn := range s.conns {
			conn.Close()
		}
		s.lock.RUnlock()
	})
	return nil
}
