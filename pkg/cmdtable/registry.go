package cmdtable

import (
	"fmt"
	"sort"
	"strconv"
)

// ValueKind defines how the 4-byte value of a message is interpreted.
type ValueKind int

const (
	// Int32 is a signed 32-bit little-endian integer.
	Int32 ValueKind = iota
	// Float32 is an IEEE-754 32-bit little-endian float.
	Float32
)

// String implements fmt.Stringer.
func (k ValueKind) String() string {
	switch k {
	case Int32:
		return "i32"
	case Float32:
		return "f32"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// CommandDescriptor describes one command of the device protocol.
type CommandDescriptor struct {
	Mnemonic string
	Code     byte
	Kind     ValueKind
}

// Registry maps mnemonics and wire codes to command descriptors.
// It is immutable once created and safe for concurrent use.
type Registry struct {
	byCode map[byte]CommandDescriptor
	byName map[string]CommandDescriptor
}

// NewRegistry creates a Registry from descriptors.
// Codes and mnemonics must be unique, and a mnemonic must not be
// a decimal number (it would be ambiguous with a code).
func NewRegistry(descs ...CommandDescriptor) (*Registry, error) {
	r := &Registry{
		byCode: make(map[byte]CommandDescriptor, len(descs)),
		byName: make(map[string]CommandDescriptor, len(descs)),
	}
	for _, d := range descs {
		if d.Mnemonic == "" {
			return nil, fmt.Errorf("command %d: empty mnemonic", d.Code)
		}
		if isDecimal(d.Mnemonic) {
			return nil, fmt.Errorf("command %d: numeric mnemonic %q", d.Code, d.Mnemonic)
		}
		if d.Kind != Int32 && d.Kind != Float32 {
			return nil, fmt.Errorf("command %q: invalid value kind %v", d.Mnemonic, d.Kind)
		}
		if prev, ok := r.byCode[d.Code]; ok {
			return nil, fmt.Errorf("command code %d registered twice (%q, %q)", d.Code, prev.Mnemonic, d.Mnemonic)
		}
		if prev, ok := r.byName[d.Mnemonic]; ok {
			return nil, fmt.Errorf("mnemonic %q registered twice (%d, %d)", d.Mnemonic, prev.Code, d.Code)
		}
		r.byCode[d.Code] = d
		r.byName[d.Mnemonic] = d
	}
	return r, nil
}

// MustNewRegistry creates a Registry and panics on error.
func MustNewRegistry(descs ...CommandDescriptor) *Registry {
	r, err := NewRegistry(descs...)
	if err != nil {
		panic(err)
	}
	return r
}

// ByCode looks up a command by its wire code.
func (r *Registry) ByCode(code byte) (CommandDescriptor, bool) {
	d, ok := r.byCode[code]
	return d, ok
}

// ByName looks up a command by mnemonic, or by the decimal string of its code.
func (r *Registry) ByName(name string) (CommandDescriptor, bool) {
	if isDecimal(name) {
		code, err := strconv.ParseUint(name, 10, 8)
		if err != nil {
			return CommandDescriptor{}, false
		}
		return r.ByCode(byte(code))
	}
	d, ok := r.byName[name]
	return d, ok
}

// Lookup accepts a wire code (any integer type) or a string accepted by ByName.
func (r *Registry) Lookup(key interface{}) (CommandDescriptor, bool) {
	var code int64
	switch k := key.(type) {
	case string:
		return r.ByName(k)
	case byte:
		return r.ByCode(k)
	case int:
		code = int64(k)
	case int32:
		code = int64(k)
	case int64:
		code = k
	case uint:
		code = int64(k)
	case uint16:
		code = int64(k)
	case uint32:
		code = int64(k)
	default:
		return CommandDescriptor{}, false
	}
	if code < 0 || code > 0xff {
		return CommandDescriptor{}, false
	}
	return r.ByCode(byte(code))
}

// ValueKind returns the registered value kind of a code.
// Unregistered codes default to Int32 and an *UnknownCommandError is returned
// alongside; callers are expected to treat it as a warning.
func (r *Registry) ValueKind(code byte) (ValueKind, error) {
	if d, ok := r.byCode[code]; ok {
		return d.Kind, nil
	}
	return Int32, &UnknownCommandError{Key: strconv.Itoa(int(code))}
}

// Name returns the mnemonic of a code, or its decimal string if unregistered.
func (r *Registry) Name(code byte) string {
	if d, ok := r.byCode[code]; ok {
		return d.Mnemonic
	}
	return strconv.Itoa(int(code))
}

// Descriptors returns all registered commands ordered by code.
func (r *Registry) Descriptors() []CommandDescriptor {
	descs := make([]CommandDescriptor, 0, len(r.byCode))
	for _, d := range r.byCode {
		descs = append(descs, d)
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Code < descs[j].Code })
	return descs
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	return len(r.byCode)
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
