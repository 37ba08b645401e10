package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from internal goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	MonitorMetrics
	HeartbeatMetrics
	RosterMetrics
}

// MonitorMetrics defines metrics for monitor-level operations.
type MonitorMetrics interface {
	// RecordTransition records a process liveness state transition.
	//
	// Parameters:
	//   - from: State before the transition
	//   - to: State after the transition
	RecordTransition(from, to State)

	// RecordProcessStates sets the current count of processes per state
	// (gauge metric). Called once per poll sweep.
	RecordProcessStates(unknown, alive, dead int)

	// RecordPollDuration records the time taken by one poll sweep.
	//
	// Parameters:
	//   - duration: Time taken in seconds
	RecordPollDuration(duration float64)

	// RecordDetectorFault records a latched detector fault.
	//
	// Parameters:
	//   - kind: Fault kind ("time", "reentry")
	RecordDetectorFault(kind string)

	// RecordTransitionDropped records when transition notifications are
	// dropped due to slow subscribers.
	RecordTransitionDropped()

	// RecordLeadershipChange records a leadership change.
	RecordLeadershipChange(newLeader string)
}

// HeartbeatMetrics defines metrics for heartbeat transport operations.
//
// Publish events are recorded by monitored processes publishing their
// heartbeats; observation events are recorded by the watcher feeding the
// monitor.
type HeartbeatMetrics interface {
	// RecordHeartbeat records a heartbeat publish attempt.
	//
	// Parameters:
	//   - processID: The ID of the process publishing the heartbeat
	//   - success: true if the heartbeat was successfully published
	RecordHeartbeat(processID string, success bool)

	// RecordHeartbeatObserved records a heartbeat observation delivered to
	// the monitor.
	RecordHeartbeatObserved()
}

// RosterMetrics defines metrics for roster snapshot publication.
type RosterMetrics interface {
	// RecordRosterPublish records a published roster snapshot.
	//
	// Parameters:
	//   - version: Version of the published roster
	//   - processes: Number of processes in the snapshot
	RecordRosterPublish(version int64, processes int)

	// RecordRosterSkipped records a publish cycle skipped because the
	// snapshot content was unchanged.
	RecordRosterSkipped()
}
