package cmdtable

// FieldState is the 2-bit state of one field in a packed status word.
type FieldState byte

// Field states.
const (
	StateOff FieldState = iota
	StateOn
	StateFail
	StateBusy
)

// String implements fmt.Stringer.
func (s FieldState) String() string {
	switch s & 3 {
	case StateOff:
		return "OFF"
	case StateOn:
		return "ON"
	case StateFail:
		return "FAIL"
	}
	return "BUSY"
}

// StatusFields lists the fields of the status word, indexed by position.
// Field i occupies bits 2i and 2i+1.
var StatusFields = []string{
	"ARD",
	"PRD",
	"RSTATUS",
	"LAUNCH",
	"SSR1",
	"SSR2",
	"SSR3",
	"RS485_ST",
	"SSR_ST",
	"CAL_ST",
}

// DecodeStatusWord splits a packed status word into named field states.
func DecodeStatusWord(word uint32) map[string]FieldState {
	fields := make(map[string]FieldState, len(StatusFields))
	for pos, name := range StatusFields {
		fields[name] = FieldState((word >> (uint(pos) * 2)) & 3)
	}
	return fields
}
