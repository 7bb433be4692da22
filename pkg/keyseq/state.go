package keyseq

import "fmt"

// State is the lifecycle state of an Executor.
type State int32

const (
	// StateCreated is the state while New is still starting loops.
	StateCreated State = iota
	// StateRunning accepts submissions.
	StateRunning
	// StateStopping rejects submissions while accepted jobs drain.
	StateStopping
	// StateStopped means every worker has drained and exited.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// MarshalText renders the state by name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for c := StateCreated; c <= StateStopped; c++ {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("keyseq: unknown state %q", b)
}
