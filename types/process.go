package types

// ProcessStatus is a point-in-time view of one monitored process.
//
// Snapshots are value copies: mutating a ProcessStatus has no effect on the
// monitor's internal detector state.
type ProcessStatus struct {
	// ProcessID uniquely identifies the monitored process.
	ProcessID string `json:"process_id"`

	// State is the current liveness verdict.
	State State `json:"state"`

	// HasEvidence reports whether any heartbeat has ever been observed.
	HasEvidence bool `json:"has_evidence"`

	// LastHeartbeat is the tick of the most recent observed heartbeat.
	// Zero until the first heartbeat arrives.
	LastHeartbeat uint64 `json:"last_heartbeat"`

	// Faulted reports whether the detector latched a time or reentry fault.
	// A faulted detector stays Dead until it is reset.
	Faulted bool `json:"faulted"`
}

// Transition records a liveness state change for one process.
type Transition struct {
	// ProcessID identifies the process that changed state.
	ProcessID string `json:"process_id"`

	// From is the state before the transition.
	From State `json:"from"`

	// To is the state after the transition.
	To State `json:"to"`

	// AtTick is the evaluation tick at which the transition was observed.
	AtTick uint64 `json:"at_tick"`
}
