package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrFraming indicates missing markers, a short frame or a dangling escape.
	ErrFraming = errors.New("framing error")
	// ErrLength indicates the declared message count mismatches the payload.
	ErrLength = errors.New("length error")
	// ErrCRC indicates a checksum mismatch.
	ErrCRC = errors.New("crc error")
	// ErrEncode indicates the messages can't be encoded into one frame.
	ErrEncode = errors.New("encode error")
)

// Error is a frame error with detail, it wraps one of the sentinel errors.
type Error struct {
	Kind   error
	Detail string
}

func newError(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Error implements error.
func (e *Error) Error() string {
	return e.Kind.Error() + ": " + e.Detail
}

// Unwrap returns the sentinel error.
func (e *Error) Unwrap() error {
	return e.Kind
}
