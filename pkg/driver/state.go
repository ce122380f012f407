package driver

import "strconv"

// State is the connection state of a driver.
type State int32

// Connection states.
const (
	Disconnected State = iota
	Discovering
	Connected
	// Faulted is a connected link which has been silent too long.
	Faulted
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Discovering:
		return "discovering"
	case Connected:
		return "connected"
	case Faulted:
		return "faulted"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// HasConn indicates a device handle is open in this state.
func (s State) HasConn() bool {
	return s == Connected || s == Faulted
}

// StateChangedFunc is invoked on every state transition.
type StateChangedFunc func(from, to State)
