package align

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type sample struct {
	channel byte
	value   float64
}

func feed(al *Aligner, t0 time.Time, samples []sample) (blocks []*Block) {
	for i, s := range samples {
		at := t0.Add(time.Duration(i) * time.Millisecond)
		var blk *Block
		var ok bool
		if s.channel == 'A' {
			blk, ok = al.AddA(at, s.value)
		} else {
			blk, ok = al.AddB(at, s.value)
		}
		if ok {
			blocks = append(blocks, blk)
		}
	}
	return
}

func TestAlignerOverwrite(t *testing.T) {
	testCases := []struct {
		name    string
		samples []sample
		a, b    []float64
	}{
		{
			name: "A leads",
			samples: []sample{
				{'A', 1}, {'A', 2}, {'A', 3}, {'A', 4}, {'A', 5}, {'A', 6},
				{'B', 10}, {'B', 20}, {'B', 30}, {'B', 40},
			},
			a: []float64{1, 2, 3, 6},
			b: []float64{10, 20, 30, 40},
		},
		{
			name: "interleaved",
			samples: []sample{
				{'A', 1}, {'B', 10}, {'A', 2}, {'B', 20},
				{'A', 3}, {'B', 30}, {'A', 4}, {'B', 40},
			},
			a: []float64{1, 2, 3, 4},
			b: []float64{10, 20, 30, 40},
		},
		{
			name: "B leads",
			samples: []sample{
				{'B', 10}, {'B', 20}, {'B', 30}, {'B', 40}, {'B', 50},
				{'A', 1}, {'A', 2}, {'A', 3}, {'A', 4},
			},
			a: []float64{1, 2, 3, 4},
			b: []float64{10, 20, 30, 50},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			al, err := New(4)
			require.NoError(t, err)
			blocks := feed(al, time.Unix(100, 0), tc.samples)
			require.Len(t, blocks, 1)
			require.Equal(t, tc.a, blocks[0].A)
			require.Equal(t, tc.b, blocks[0].B)
			require.Len(t, blocks[0].Timestamps, 4)
			a, b := al.Pending()
			require.Zero(t, a)
			require.Zero(t, b)
		})
	}
}

func TestAlignerEmitsOnCompletingSample(t *testing.T) {
	al, err := New(2)
	require.NoError(t, err)
	t0 := time.Unix(0, 0)
	_, ok := al.AddA(t0, 1)
	require.False(t, ok)
	_, ok = al.AddA(t0, 2)
	require.False(t, ok)
	_, ok = al.AddB(t0, 10)
	require.False(t, ok)
	blk, ok := al.AddB(t0.Add(time.Second), 20)
	require.True(t, ok)
	require.Equal(t, 2, blk.Len())
	require.Equal(t, t0.Add(time.Second), blk.Timestamps[1])

	// storage is not shared with the emitted block
	_, ok = al.AddA(t0, 99)
	require.False(t, ok)
	require.Equal(t, []float64{1, 2}, blk.A)
}

func TestAlignerBlocksRepeat(t *testing.T) {
	al, err := New(3)
	require.NoError(t, err)
	var samples []sample
	for i := 0; i < 9; i++ {
		samples = append(samples, sample{'A', float64(i)}, sample{'B', float64(-i)})
	}
	blocks := feed(al, time.Unix(0, 0), samples)
	require.Len(t, blocks, 3)
	require.Equal(t, []float64{6, 7, 8}, blocks[2].A)
	require.Equal(t, []float64{-6, -7, -8}, blocks[2].B)
}

func TestNewInvalidSize(t *testing.T) {
	_, err := New(0)
	require.Error(t, err)
}
