package frame

import (
	"encoding/binary"

	"github.com/golang/glog"
	"github.com/sigurn/crc8"

	"github.com/robotalks/mculink/pkg/cmdtable"
)

// Wire markers.
const (
	Start byte = 0x0D
	End   byte = 0x0A
	Esc   byte = 0x1B
)

const (
	// MessageSize is the unescaped size of one message.
	MessageSize = 5
	// MaxMessages is the max number of messages in a frame (LEN is one byte).
	MaxMessages = 0xff
	// MinFrameSize is the smallest acceptable escaped frame.
	MinFrameSize = 6
)

var crcTable = crc8.MakeTable(crc8.CRC8)

// Checksum computes CRC-8 (poly 0x07, init 0, no reflection, no xorout).
func Checksum(data []byte) byte {
	return crc8.Checksum(data, crcTable)
}

// Codec encodes and decodes frames using a command registry for value typing.
// It holds no mutable state and is safe for concurrent use.
type Codec struct {
	Registry *cmdtable.Registry
}

// NewCodec creates a Codec.
func NewCodec(registry *cmdtable.Registry) *Codec {
	return &Codec{Registry: registry}
}

func (c *Codec) kindOf(code byte) cmdtable.ValueKind {
	kind, err := c.Registry.ValueKind(code)
	if err != nil {
		glog.Warningf("%v: value treated as %v", err, kind)
	}
	return kind
}

// Encode packs messages into one escaped frame.
// Values are converted to the registered kind of their code.
func (c *Codec) Encode(msgs []Message) ([]byte, error) {
	if len(msgs) == 0 {
		return nil, newError(ErrEncode, "no messages")
	}
	if len(msgs) > MaxMessages {
		return nil, newError(ErrEncode, "%d messages exceeds %d", len(msgs), MaxMessages)
	}
	raw := make([]byte, 0, len(msgs)*MessageSize+2)
	var word [4]byte
	for _, msg := range msgs {
		v := msg.Value.As(c.kindOf(msg.Code))
		binary.LittleEndian.PutUint32(word[:], v.Bits())
		raw = append(raw, msg.Code)
		raw = append(raw, word[:]...)
	}
	raw = append(raw, byte(len(msgs)))
	raw = append(raw, Checksum(raw))
	return escape(raw), nil
}

// EncodeOne packs a single message.
func (c *Codec) EncodeOne(code byte, val Value) ([]byte, error) {
	return c.Encode([]Message{{Code: code, Value: val}})
}

// Decode validates and unpacks an escaped frame.
// Unregistered codes decode as Int32 and are logged as warnings.
func (c *Codec) Decode(raw []byte) ([]Message, error) {
	if len(raw) < MinFrameSize {
		return nil, newError(ErrFraming, "frame too short (%d bytes)", len(raw))
	}
	if raw[0] != Start {
		return nil, newError(ErrFraming, "no start byte")
	}
	if raw[len(raw)-1] != End {
		return nil, newError(ErrFraming, "no end byte")
	}
	data, err := unescape(raw[1 : len(raw)-1])
	if err != nil {
		return nil, err
	}
	if len(data) < 2 {
		return nil, newError(ErrLength, "%d bytes after unescaping", len(data))
	}
	count := int(data[len(data)-2])
	if expected := count*MessageSize + 2; expected != len(data) {
		return nil, newError(ErrLength, "expected %d bytes for %d messages, got %d", expected, count, len(data))
	}
	crcIn := data[len(data)-1]
	if crcOut := Checksum(data[:len(data)-1]); crcIn != crcOut {
		return nil, newError(ErrCRC, "received %02X computed %02X", crcIn, crcOut)
	}
	payload := data[:count*MessageSize]
	msgs := make([]Message, 0, count)
	for off := 0; off < len(payload); off += MessageSize {
		code := payload[off]
		bits := binary.LittleEndian.Uint32(payload[off+1 : off+MessageSize])
		msgs = append(msgs, Message{Code: code, Value: ValueFromBits(c.kindOf(code), bits)})
	}
	return msgs, nil
}

func isReserved(b byte) bool {
	return b == Start || b == End || b == Esc
}

func escape(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/4+2)
	out = append(out, Start)
	for _, b := range data {
		if isReserved(b) {
			out = append(out, Esc, 0xff-b)
		} else {
			out = append(out, b)
		}
	}
	return append(out, End)
}

func unescape(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b == Esc {
			i++
			if i >= len(data) {
				return nil, newError(ErrFraming, "escape byte at end of frame")
			}
			b = 0xff - data[i]
		}
		out = append(out, b)
	}
	return out, nil
}
