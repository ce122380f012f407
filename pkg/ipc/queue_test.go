package ipc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func statusN(n int) *StatusUpdate {
	return NewStatusUpdate("RTD1", time.Unix(int64(n), 0), float64(n))
}

func TestQueueDeliveryModes(t *testing.T) {
	testCases := []struct {
		name     string
		receive  func(*Queue) []Payload
		expected []Payload
	}{
		{
			name: "fifo",
			receive: func(q *Queue) (out []Payload) {
				for i := 0; i < 3; i++ {
					p, ok := q.ReceiveFIFO()
					require.True(t, ok)
					out = append(out, p)
				}
				return
			},
			expected: []Payload{statusN(1), statusN(2), statusN(3)},
		},
		{
			name: "latest",
			receive: func(q *Queue) []Payload {
				p, ok := q.ReceiveLatest()
				require.True(t, ok)
				return []Payload{p}
			},
			expected: []Payload{statusN(3)},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q := NewQueue(8)
			for i := 1; i <= 3; i++ {
				require.True(t, q.Send(statusN(i)))
			}
			require.Equal(t, tc.expected, tc.receive(q))
			require.Zero(t, q.Len())
			_, ok := q.ReceiveFIFO()
			require.False(t, ok)
			_, ok = q.ReceiveLatest()
			require.False(t, ok)
		})
	}
}

func TestQueueBounded(t *testing.T) {
	q := NewQueue(2)
	require.True(t, q.Send(statusN(1)))
	require.True(t, q.Send(statusN(2)))
	require.False(t, q.Send(statusN(3)))
	require.Equal(t, 2, q.Len())
	p, ok := q.ReceiveFIFO()
	require.True(t, ok)
	require.Equal(t, statusN(1), p)
	require.True(t, q.Send(statusN(4)))
}

func TestQueueUnbounded(t *testing.T) {
	q := NewQueue(0)
	for i := 0; i < 1000; i++ {
		require.True(t, q.Send(statusN(i)))
	}
	require.Equal(t, 1000, q.Len())
}

func TestQueueNotify(t *testing.T) {
	q := NewQueue(0)
	select {
	case <-q.Notify():
		t.Fatal("unexpected notification")
	default:
	}
	q.Send(statusN(1))
	q.Send(statusN(2))
	select {
	case <-q.Notify():
	default:
		t.Fatal("missing notification")
	}
}

func TestGroupEnds(t *testing.T) {
	g := NewGroup(map[string]int{"status": 4, "adc": 1})
	require.Equal(t, []string{"adc", "status"}, g.Names())

	drv, err := g.DriverEnd("status")
	require.NoError(t, err)
	con, err := g.ConsumerEnd("status")
	require.NoError(t, err)

	require.True(t, drv.Send(statusN(1)))
	p, ok := con.ReceiveFIFO()
	require.True(t, ok)
	require.Equal(t, statusN(1), p)

	cmd := &Command{Command: "PING", Value: 8888}
	require.True(t, con.Send(cmd))
	p, ok = drv.ReceiveLatest()
	require.True(t, ok)
	require.Equal(t, cmd, p)

	_, err = g.DriverEnd("nope")
	require.Error(t, err)
	require.Len(t, g.ConsumerEnds(), 2)
}
