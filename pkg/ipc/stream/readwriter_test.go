package stream

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadWriterPackets(t *testing.T) {
	var buf bytes.Buffer
	rw := NewPair(&buf, &buf)
	require.NoError(t, rw.WritePacket([]byte("hello")))
	require.NoError(t, rw.WritePacket(nil))
	require.Equal(t, []byte{5, 0, 0, 0, 'h', 'e', 'l', 'l', 'o', 0, 0, 0, 0}, buf.Bytes())

	pkt, err := rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), pkt)
	pkt, err = rw.ReadPacket()
	require.NoError(t, err)
	require.Empty(t, pkt)
	_, err = rw.ReadPacket()
	require.Equal(t, io.EOF, err)
}

func TestReadWriterTruncated(t *testing.T) {
	rw := NewPair(bytes.NewReader([]byte{5, 0, 0, 0, 'h'}), io.Discard)
	_, err := rw.ReadPacket()
	require.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestReadWriterOversized(t *testing.T) {
	rw := NewPair(bytes.NewReader([]byte{0, 0, 0, 1}), io.Discard)
	rw.MaxPacketSize = 1024
	_, err := rw.ReadPacket()
	require.Error(t, err)
}
