package types

// State represents the liveness verdict for a monitored process.
//
// A fresh detector starts in StateUnknown and stays there until the first
// heartbeat arrives:
//
//	StateUnknown → StateAlive → StateDead → StateAlive (heartbeat resumes)
//
// StateDead reached through a detector fault is terminal until the detector
// is reset; StateDead reached through a missed heartbeat is not.
type State int

const (
	// StateUnknown indicates no heartbeat has ever been observed.
	StateUnknown State = iota

	// StateAlive indicates the most recent heartbeat is within the
	// liveness timeout.
	StateAlive

	// StateDead indicates the process missed its liveness timeout or the
	// detector latched a fault.
	StateDead
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnknown:
		return "Unknown"
	case StateAlive:
		return "Alive"
	case StateDead:
		return "Dead"
	default:
		return "Invalid"
	}
}
