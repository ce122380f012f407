package driver

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/robotalks/mculink/pkg/frame"
)

// SerialPort is the subset of serial.Port used by the driver.
type SerialPort interface {
	io.ReadWriteCloser
	SetReadTimeout(time.Duration) error
}

// EnumerateFunc lists candidate ports.
type EnumerateFunc func() ([]*enumerator.PortDetails, error)

// OpenSerialFunc opens a port.
type OpenSerialFunc func(name string, mode *serial.Mode) (SerialPort, error)

// SerialTransport discovers the device among OS serial ports by USB
// vendor (and optionally product) id.
type SerialTransport struct {
	VendorID    string
	ProductID   string
	BaudRate    int
	ReadTimeout time.Duration

	Enumerate EnumerateFunc
	Open      OpenSerialFunc
}

// NewSerialTransport creates a SerialTransport using the OS serial ports.
func NewSerialTransport(vid, pid string, baudRate int, readTimeout time.Duration) *SerialTransport {
	return &SerialTransport{
		VendorID:    vid,
		ProductID:   pid,
		BaudRate:    baudRate,
		ReadTimeout: readTimeout,
		Enumerate:   enumerator.GetDetailedPortsList,
		Open:        openSerial,
	}
}

func openSerial(name string, mode *serial.Mode) (SerialPort, error) {
	return serial.Open(name, mode)
}

// Name implements Transport.
func (t *SerialTransport) Name() string {
	return "serial"
}

// Matches checks a port against the vendor/product signature.
func (t *SerialTransport) Matches(port *enumerator.PortDetails) bool {
	if !port.IsUSB || !strings.EqualFold(port.VID, t.VendorID) {
		return false
	}
	return t.ProductID == "" || strings.EqualFold(port.PID, t.ProductID)
}

// Discover implements Transport.
func (t *SerialTransport) Discover(ctx context.Context) (Conn, error) {
	ports, err := t.Enumerate()
	if err != nil {
		return nil, fmt.Errorf("enumerate ports: %w", err)
	}
	mode := &serial.Mode{
		BaudRate: t.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	for _, details := range ports {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		glog.V(2).Infof("port %s usb=%v vid=%s pid=%s sn=%s", details.Name, details.IsUSB, details.VID, details.PID, details.SerialNumber)
		if !t.Matches(details) {
			continue
		}
		port, err := t.Open(details.Name, mode)
		if err != nil {
			glog.Warningf("open %s: %v", details.Name, err)
			continue
		}
		if err := port.SetReadTimeout(t.ReadTimeout); err != nil {
			port.Close()
			glog.Warningf("set read timeout %s: %v", details.Name, err)
			continue
		}
		glog.Infof("serial device %s opened at %d baud", details.Name, t.BaudRate)
		return &serialConn{name: details.Name, port: port, buf: make([]byte, 4096)}, nil
	}
	return nil, fmt.Errorf("%w: no usb port with vid %s", ErrDeviceNotFound, t.VendorID)
}

type serialConn struct {
	name   string
	port   SerialPort
	framer frame.Framer
	buf    []byte
}

// ReadFrames implements Conn.
func (c *serialConn) ReadFrames() ([][]byte, error) {
	n, err := c.port.Read(c.buf)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// read timeout
		return nil, nil
	}
	return c.framer.Feed(c.buf[:n]), nil
}

// WriteFrame implements Conn.
func (c *serialConn) WriteFrame(raw []byte) error {
	_, err := c.port.Write(raw)
	return err
}

// Close implements Conn.
func (c *serialConn) Close() error {
	c.framer.Reset()
	return c.port.Close()
}

func (c *serialConn) String() string {
	return c.name
}
