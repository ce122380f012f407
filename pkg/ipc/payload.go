package ipc

import (
	"sort"
	"time"

	"github.com/robotalks/mculink/pkg/align"
)

// PayloadKind tags the payloads crossing the process boundary.
type PayloadKind string

// Payload kinds.
const (
	KindStatus  PayloadKind = "status"
	KindBlock   PayloadKind = "block"
	KindCommand PayloadKind = "command"
)

// Payload is the unit carried by a Queue.
type Payload interface {
	Kind() PayloadKind
}

// Reading is a timestamped value of a status entry.
type Reading struct {
	At    time.Time
	Value float64
}

// StatusUpdate maps mnemonics to their latest readings.
type StatusUpdate struct {
	Values map[string]Reading
}

// NewStatusUpdate creates a StatusUpdate with a single entry.
func NewStatusUpdate(mnemonic string, at time.Time, value float64) *StatusUpdate {
	return &StatusUpdate{Values: map[string]Reading{mnemonic: {At: at, Value: value}}}
}

// Kind implements Payload.
func (u *StatusUpdate) Kind() PayloadKind { return KindStatus }

// Names returns the mnemonics in sorted order.
func (u *StatusUpdate) Names() []string {
	names := make([]string, 0, len(u.Values))
	for name := range u.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Block is an aligned sample block.
type Block align.Block

// Kind implements Payload.
func (b *Block) Kind() PayloadKind { return KindBlock }

// Command is a mnemonic/value pair to be sent to the device.
type Command struct {
	Command string
	Value   float64
}

// Kind implements Payload.
func (c *Command) Kind() PayloadKind { return KindCommand }
