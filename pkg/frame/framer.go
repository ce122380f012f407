package frame

// DefaultMaxFrameSize bounds the escaped size of a frame with MaxMessages.
const DefaultMaxFrameSize = 2 + 2*(MaxMessages*MessageSize+2)

// Framer accumulates bytes from a stream into complete frames.
// Bytes before the first START are dropped, a START seen before END
// restarts accumulation, and an oversized partial frame is discarded.
type Framer struct {
	MaxSize int

	buf     []byte
	started bool
	dropped int
}

// Feed consumes a chunk of bytes and returns the complete frames found.
// Returned frames don't alias the internal buffer.
func (f *Framer) Feed(data []byte) (frames [][]byte) {
	maxSize := f.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	for _, b := range data {
		switch {
		case b == Start:
			if f.started && len(f.buf) > 1 {
				f.dropped++
			}
			f.buf = append(f.buf[:0], b)
			f.started = true
		case !f.started:
			// noise between frames
		case b == End:
			f.buf = append(f.buf, b)
			frame := make([]byte, len(f.buf))
			copy(frame, f.buf)
			frames = append(frames, frame)
			f.buf = f.buf[:0]
			f.started = false
		default:
			f.buf = append(f.buf, b)
			if len(f.buf) > maxSize {
				f.buf = f.buf[:0]
				f.started = false
				f.dropped++
			}
		}
	}
	return
}

// Reset discards any partial frame.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.started = false
}

// Dropped returns the number of partial frames discarded so far.
func (f *Framer) Dropped() int {
	return f.dropped
}
