// Package stream carries packets over a byte stream such as stdio or a pipe.
package stream

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
)

// DefaultMaxPacketSize limits the size of a received packet.
const DefaultMaxPacketSize = 1 << 20

// ReadWriter implements PacketReadWriter.
// Each packet is prefixed by 4-byte (little-endian) length.
type ReadWriter struct {
	Reader        io.Reader
	Writer        io.Writer
	MaxPacketSize uint32

	closers []io.Closer
	once    sync.Once
}

// New creates a ReadWriter over a single io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	rw := &ReadWriter{Reader: s, Writer: s}
	if closer, ok := s.(io.Closer); ok {
		rw.closers = append(rw.closers, closer)
	}
	return rw
}

// NewPair creates a ReadWriter from separated reader and writer.
func NewPair(r io.Reader, w io.Writer) *ReadWriter {
	rw := &ReadWriter{Reader: r, Writer: w}
	for _, s := range []interface{}{r, w} {
		if closer, ok := s.(io.Closer); ok {
			rw.closers = append(rw.closers, closer)
		}
	}
	return rw
}

// NewStdio creates a ReadWriter over stdin and stdout.
func NewStdio() *ReadWriter {
	return &ReadWriter{Reader: os.Stdin, Writer: os.Stdout, closers: []io.Closer{os.Stdin}}
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(p.Reader, hdr[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(hdr[:])
	maxSize := p.MaxPacketSize
	if maxSize == 0 {
		maxSize = DefaultMaxPacketSize
	}
	if size > maxSize {
		return nil, fmt.Errorf("packet size %d exceeds %d", size, maxSize)
	}
	pkt := make([]byte, size)
	if _, err := io.ReadFull(p.Reader, pkt); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return pkt, nil
}

// WritePacket implements PacketWriter.
// The length prefix and packet are written in a single Write.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	buf := make([]byte, 4+len(pkt))
	binary.LittleEndian.PutUint32(buf, uint32(len(pkt)))
	copy(buf[4:], pkt)
	_, err := p.Writer.Write(buf)
	return err
}

// Close closes the underlying reader/writer if closable.
func (p *ReadWriter) Close() (err error) {
	p.once.Do(func() {
		for _, closer := range p.closers {
			if e := closer.Close(); e != nil && err == nil {
				err = e
			}
		}
	})
	return
}
