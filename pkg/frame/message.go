package frame

import (
	"fmt"
	"math"

	"github.com/robotalks/mculink/pkg/cmdtable"
)

// Value is a 32-bit typed value carried by a message.
type Value struct {
	kind cmdtable.ValueKind
	bits uint32
}

// Int creates an Int32 value.
func Int(v int32) Value {
	return Value{kind: cmdtable.Int32, bits: uint32(v)}
}

// Float creates a Float32 value.
func Float(v float32) Value {
	return Value{kind: cmdtable.Float32, bits: math.Float32bits(v)}
}

// ValueFromBits creates a value from its raw little-endian word.
func ValueFromBits(kind cmdtable.ValueKind, bits uint32) Value {
	return Value{kind: kind, bits: bits}
}

// Kind returns the value kind.
func (v Value) Kind() cmdtable.ValueKind {
	return v.kind
}

// Bits returns the raw 32-bit word.
func (v Value) Bits() uint32 {
	return v.bits
}

// Int32 returns the value as int32, converting from float if necessary.
func (v Value) Int32() int32 {
	if v.kind == cmdtable.Float32 {
		return int32(math.Float32frombits(v.bits))
	}
	return int32(v.bits)
}

// Float32 returns the value as float32, converting from int if necessary.
func (v Value) Float32() float32 {
	if v.kind == cmdtable.Float32 {
		return math.Float32frombits(v.bits)
	}
	return float32(int32(v.bits))
}

// Float64 returns the numeric value for publishing.
func (v Value) Float64() float64 {
	if v.kind == cmdtable.Float32 {
		return float64(math.Float32frombits(v.bits))
	}
	return float64(int32(v.bits))
}

// As converts the value to the specified kind.
func (v Value) As(kind cmdtable.ValueKind) Value {
	if v.kind == kind {
		return v
	}
	if kind == cmdtable.Float32 {
		return Float(v.Float32())
	}
	return Int(v.Int32())
}

// String implements fmt.Stringer.
func (v Value) String() string {
	if v.kind == cmdtable.Float32 {
		return fmt.Sprintf("%g", math.Float32frombits(v.bits))
	}
	return fmt.Sprintf("%d", int32(v.bits))
}

// Message is a single command code and its value.
type Message struct {
	Code  byte
	Value Value
}

// String implements fmt.Stringer.
func (m Message) String() string {
	return fmt.Sprintf("%d=%s", m.Code, m.Value)
}
