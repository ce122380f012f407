// Package align buffers two independently arriving sample channels into
// fixed-size aligned blocks.
package align

import (
	"fmt"
	"time"
)

// Block is an aligned block of N samples per channel.
type Block struct {
	Timestamps []time.Time
	A          []float64
	B          []float64
}

// Len returns the number of samples per channel.
func (b *Block) Len() int {
	return len(b.A)
}

// Aligner fills channel A and B up to N samples each.
// A channel already holding N samples keeps overwriting its last slot
// until the other channel catches up, then the block is emitted and
// both channels start over.
// Timestamp i is the time of the most recent write to slot i on either channel.
// Aligner is not safe for concurrent use.
type Aligner struct {
	size       int
	timestamps []time.Time
	a, b       []float64
	cursorA    int
	cursorB    int
}

// New creates an Aligner with block size n.
func New(n int) (*Aligner, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid block size %d", n)
	}
	al := &Aligner{size: n}
	al.reset()
	return al, nil
}

// Size returns the block size.
func (al *Aligner) Size() int {
	return al.size
}

// Pending returns the number of samples held for channel A and B.
func (al *Aligner) Pending() (int, int) {
	return al.cursorA, al.cursorB
}

// AddA appends a sample to channel A, returns the block if it completes one.
func (al *Aligner) AddA(at time.Time, v float64) (*Block, bool) {
	al.cursorA = al.put(al.a, al.cursorA, at, v)
	return al.emit()
}

// AddB appends a sample to channel B, returns the block if it completes one.
func (al *Aligner) AddB(at time.Time, v float64) (*Block, bool) {
	al.cursorB = al.put(al.b, al.cursorB, at, v)
	return al.emit()
}

// Reset drops all pending samples.
func (al *Aligner) Reset() {
	al.reset()
}

func (al *Aligner) put(ch []float64, cursor int, at time.Time, v float64) int {
	slot := cursor
	if cursor >= al.size {
		slot = al.size - 1
	} else {
		cursor++
	}
	ch[slot] = v
	if at.After(al.timestamps[slot]) {
		al.timestamps[slot] = at
	}
	return cursor
}

func (al *Aligner) emit() (*Block, bool) {
	if al.cursorA < al.size || al.cursorB < al.size {
		return nil, false
	}
	blk := &Block{Timestamps: al.timestamps, A: al.a, B: al.b}
	al.reset()
	return blk, true
}

func (al *Aligner) reset() {
	al.timestamps = make([]time.Time, al.size)
	al.a = make([]float64, al.size)
	al.b = make([]float64, al.size)
	al.cursorA, al.cursorB = 0, 0
}
