package driver

import "errors"

var (
	// ErrDeviceNotFound indicates discovery found no matching device.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrNotConnected indicates the device is not connected.
	ErrNotConnected = errors.New("not connected")
)

// TransportError is an I/O failure on the device handle.
type TransportError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}
