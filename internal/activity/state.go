// Package activity turns signal snapshots into activity states and accounts
// the time spent in each state over a monitoring session.
package activity

import "fmt"

// State is the classified activity state of the machine.
type State int

const (
	StateUnknown      State = iota // before the first classification; never counted
	StateActive                    // user input within the idle threshold
	StateIdle                      // no input for at least the idle threshold
	StateDisplaySleep              // display powered off
	StateSystemSleep               // scheduling suspended, idle counter frozen
	StateSessionEnd                // target of the terminal transition only
)

// Counted lists the states that accumulate time, in report order.
var Counted = []State{
	StateActive,
	StateIdle,
	StateDisplaySleep,
	StateSystemSleep,
}

// String returns the name used in logs, metrics and storage.
func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateActive:
		return "active"
	case StateIdle:
		return "idle"
	case StateDisplaySleep:
		return "display_sleep"
	case StateSystemSleep:
		return "system_sleep"
	case StateSessionEnd:
		return "session_end"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Label returns a display label like "Display Sleep".
func (s State) Label() string {
	switch s {
	case StateActive:
		return "Active"
	case StateIdle:
		return "Idle"
	case StateDisplaySleep:
		return "Display Sleep"
	case StateSystemSleep:
		return "System Sleep"
	case StateSessionEnd:
		return "Session End"
	default:
		return "Unknown"
	}
}

// IsCounted reports whether time spent in s contributes to the totals.
func (s State) IsCounted() bool {
	return s >= StateActive && s <= StateSystemSleep
}

// ParseState is the inverse of State.String.
func ParseState(name string) (State, error) {
	for s := StateUnknown; s <= StateSessionEnd; s++ {
		if s.String() == name {
			return s, nil
		}
	}
	return StateUnknown, fmt.Errorf("unknown activity state: %q", name)
}

// StateNames returns the names of the counted states.
func StateNames() []string {
	names := make([]string, len(Counted))
	for i, s := range Counted {
		names[i] = s.String()
	}
	return names
}
