package ipc

import (
	"testing"
	"time"

	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"
	"github.com/stretchr/testify/require"
)

func TestEnvelope(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)
	testCases := []struct {
		name    string
		payload Payload
	}{
		{"status", &StatusUpdate{Values: map[string]Reading{
			"RTD1":    {At: t0, Value: 2500},
			"LINK_ST": {At: t0.Add(time.Millisecond), Value: 1},
		}}},
		{"block", &Block{
			Timestamps: []time.Time{t0, t0.Add(time.Microsecond), t0.Add(2 * time.Microsecond)},
			A:          []float64{1, 2, 3},
			B:          []float64{-1, -2, 0.5},
		}},
		{"command", &Command{Command: "VSET", Value: 12.5}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := EncodeEnvelope("port1", tc.payload)
			require.NoError(t, err)
			port, p, err := DecodeEnvelope(data)
			require.NoError(t, err)
			require.Equal(t, "port1", port)
			require.Equal(t, tc.payload, p)
		})
	}
}

func TestEnvelopeInvalid(t *testing.T) {
	encode := func(fields map[string]*structpb.Value) []byte {
		data, err := proto.Marshal(&structpb.Struct{Fields: fields})
		require.NoError(t, err)
		return data
	}
	emptyBody := &structpb.Value{Kind: &structpb.Value_StructValue{StructValue: &structpb.Struct{}}}

	testCases := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte{0xff, 0xff, 0xff}},
		{"no port", encode(map[string]*structpb.Value{"kind": stringValue("status"), "body": emptyBody})},
		{"no body", encode(map[string]*structpb.Value{"port": stringValue("p"), "kind": stringValue("status")})},
		{"bad kind", encode(map[string]*structpb.Value{"port": stringValue("p"), "kind": stringValue("x"), "body": emptyBody})},
		{"command without name", encode(map[string]*structpb.Value{"port": stringValue("p"), "kind": stringValue("command"), "body": emptyBody})},
		{"bad status", encode(map[string]*structpb.Value{
			"port": stringValue("p"),
			"kind": stringValue("status"),
			"body": {Kind: &structpb.Value_StructValue{StructValue: &structpb.Struct{Fields: map[string]*structpb.Value{
				"RTD1": numberValue(1),
			}}}},
		})},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeEnvelope(tc.data)
			require.Error(t, err)
		})
	}
}

func TestEnvelopeUnsupported(t *testing.T) {
	_, err := EncodeEnvelope("p", nil)
	require.Error(t, err)
}
