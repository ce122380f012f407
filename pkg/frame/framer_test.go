package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFramerChunking(t *testing.T) {
	c := testCodec()
	f1, err := c.EncodeOne(101, Int(0x0D0A1B00))
	require.NoError(t, err)
	f2, err := c.EncodeOne(103, Float(2.5))
	require.NoError(t, err)
	stream := append(append([]byte{0x55, 0x66}, f1...), f2...)

	for chunk := 1; chunk <= len(stream); chunk++ {
		var f Framer
		var frames [][]byte
		for off := 0; off < len(stream); off += chunk {
			end := off + chunk
			if end > len(stream) {
				end = len(stream)
			}
			frames = append(frames, f.Feed(stream[off:end])...)
		}
		require.Equalf(t, [][]byte{f1, f2}, frames, "chunk size %d", chunk)
	}
}

func TestFramerResync(t *testing.T) {
	c := testCodec()
	good, err := c.EncodeOne(101, Int(42))
	require.NoError(t, err)

	var f Framer
	// a truncated frame followed by a complete one
	frames := f.Feed(append(append([]byte{}, good[:4]...), good...))
	require.Equal(t, [][]byte{good}, frames)
	require.Equal(t, 1, f.Dropped())

	msgs, err := c.Decode(frames[0])
	require.NoError(t, err)
	require.Equal(t, []Message{{Code: 101, Value: Int(42)}}, msgs)
}

func TestFramerIgnoresNoise(t *testing.T) {
	var f Framer
	require.Empty(t, f.Feed([]byte{1, 2, End, 3}))
	frames := f.Feed([]byte{Start, 9, End})
	require.Equal(t, [][]byte{{Start, 9, End}}, frames)
}

func TestFramerMaxSize(t *testing.T) {
	f := Framer{MaxSize: 4}
	require.Empty(t, f.Feed([]byte{Start, 1, 2, 3, 4, 5, End}))
	require.Equal(t, 1, f.Dropped())
	require.Equal(t, [][]byte{{Start, 1, End}}, f.Feed([]byte{Start, 1, End}))
}
