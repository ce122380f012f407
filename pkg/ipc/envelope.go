package ipc

import (
	"fmt"
	"time"

	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"
)

// Envelope field names.
const (
	fieldPort = "port"
	fieldKind = "kind"
	fieldBody = "body"
)

// EncodeEnvelope encodes a payload tagged with its port name.
func EncodeEnvelope(port string, p Payload) ([]byte, error) {
	var body *structpb.Struct
	switch v := p.(type) {
	case *StatusUpdate:
		body = encodeStatus(v)
	case *Block:
		body = encodeBlock(v)
	case *Command:
		body = &structpb.Struct{Fields: map[string]*structpb.Value{
			"command": stringValue(v.Command),
			"value":   numberValue(v.Value),
		}}
	default:
		return nil, fmt.Errorf("unsupported payload %T", p)
	}
	return proto.Marshal(&structpb.Struct{Fields: map[string]*structpb.Value{
		fieldPort: stringValue(port),
		fieldKind: stringValue(string(p.Kind())),
		fieldBody: {Kind: &structpb.Value_StructValue{StructValue: body}},
	}})
}

// DecodeEnvelope decodes an envelope into its port name and payload.
func DecodeEnvelope(data []byte) (string, Payload, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return "", nil, err
	}
	port := st.Fields[fieldPort].GetStringValue()
	if port == "" {
		return "", nil, fmt.Errorf("envelope without port")
	}
	body := st.Fields[fieldBody].GetStructValue()
	if body == nil {
		return port, nil, fmt.Errorf("envelope without body")
	}
	var p Payload
	var err error
	switch kind := PayloadKind(st.Fields[fieldKind].GetStringValue()); kind {
	case KindStatus:
		p, err = decodeStatus(body)
	case KindBlock:
		p, err = decodeBlock(body)
	case KindCommand:
		cmd := body.Fields["command"].GetStringValue()
		if cmd == "" {
			err = fmt.Errorf("command without name")
		}
		p = &Command{Command: cmd, Value: body.Fields["value"].GetNumberValue()}
	default:
		err = fmt.Errorf("unknown payload kind %q", kind)
	}
	if err != nil {
		return port, nil, err
	}
	return port, p, nil
}

func stringValue(s string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: s}}
}

func numberValue(v float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: v}}
}

func listValue(vals ...*structpb.Value) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_ListValue{ListValue: &structpb.ListValue{Values: vals}}}
}

func numberList(nums []float64) *structpb.Value {
	vals := make([]*structpb.Value, len(nums))
	for n, v := range nums {
		vals[n] = numberValue(v)
	}
	return listValue(vals...)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func encodeStatus(u *StatusUpdate) *structpb.Struct {
	fields := make(map[string]*structpb.Value, len(u.Values))
	for name, r := range u.Values {
		fields[name] = listValue(stringValue(formatTime(r.At)), numberValue(r.Value))
	}
	return &structpb.Struct{Fields: fields}
}

func decodeStatus(body *structpb.Struct) (*StatusUpdate, error) {
	u := &StatusUpdate{Values: make(map[string]Reading, len(body.Fields))}
	for name, val := range body.Fields {
		pair := val.GetListValue().GetValues()
		if len(pair) != 2 {
			return nil, fmt.Errorf("status %q: expect [time, value]", name)
		}
		at, err := time.Parse(time.RFC3339Nano, pair[0].GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("status %q: %v", name, err)
		}
		u.Values[name] = Reading{At: at, Value: pair[1].GetNumberValue()}
	}
	return u, nil
}

// Block timestamps are sent as nanosecond offsets from the first one.
func encodeBlock(b *Block) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"a": numberList(b.A),
		"b": numberList(b.B),
	}
	if len(b.Timestamps) > 0 {
		t0 := b.Timestamps[0]
		offsets := make([]float64, len(b.Timestamps))
		for n, t := range b.Timestamps {
			offsets[n] = float64(t.Sub(t0))
		}
		fields["t0"] = stringValue(formatTime(t0))
		fields["offsets"] = numberList(offsets)
	}
	return &structpb.Struct{Fields: fields}
}

func decodeNumbers(val *structpb.Value) []float64 {
	vals := val.GetListValue().GetValues()
	nums := make([]float64, len(vals))
	for n, v := range vals {
		nums[n] = v.GetNumberValue()
	}
	return nums
}

func decodeBlock(body *structpb.Struct) (*Block, error) {
	b := &Block{
		A: decodeNumbers(body.Fields["a"]),
		B: decodeNumbers(body.Fields["b"]),
	}
	if len(b.A) != len(b.B) {
		return nil, fmt.Errorf("block channels differ in length: %d, %d", len(b.A), len(b.B))
	}
	offsets := decodeNumbers(body.Fields["offsets"])
	if len(offsets) == 0 {
		return b, nil
	}
	if len(offsets) != len(b.A) {
		return nil, fmt.Errorf("block has %d timestamps for %d samples", len(offsets), len(b.A))
	}
	t0, err := time.Parse(time.RFC3339Nano, body.Fields["t0"].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("block t0: %v", err)
	}
	b.Timestamps = make([]time.Time, len(offsets))
	for n, off := range offsets {
		b.Timestamps[n] = t0.Add(time.Duration(off))
	}
	return b, nil
}
