package driver

import "context"

// Conn is an open device handle.
type Conn interface {
	// ReadFrames waits up to the read timeout and returns complete raw frames.
	// A timeout without data returns no frames and no error.
	ReadFrames() ([][]byte, error)
	// WriteFrame writes one encoded frame.
	WriteFrame([]byte) error
	// Close releases the handle.
	Close() error
}

// Transport finds the device and opens a Conn to it.
type Transport interface {
	Name() string
	// Discover returns ErrDeviceNotFound (possibly wrapped) when nothing matches.
	Discover(ctx context.Context) (Conn, error)
}
