package metrics

import "github.com/gitxandert/process-monitor/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
//
// Example:
//
//	metrics := metrics.NewNop()
//	mon := procmon.NewMonitor(&cfg, procmon.WithMetrics(metrics))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// MonitorMetrics implementation

// RecordTransition discards the state transition metric.
func (n *NopMetrics) RecordTransition(_ /* from */, _ /* to */ types.State) {
	// No-op
}

// RecordProcessStates discards the per-state process counts.
func (n *NopMetrics) RecordProcessStates(_ /* unknown */, _ /* alive */, _ /* dead */ int) {
	// No-op
}

// RecordPollDuration discards the poll sweep duration metric.
func (n *NopMetrics) RecordPollDuration(_ /* duration */ float64) {
	// No-op
}

// RecordDetectorFault discards the detector fault metric.
func (n *NopMetrics) RecordDetectorFault(_ /* kind */ string) {
	// No-op
}

// RecordTransitionDropped discards the dropped notification metric.
func (n *NopMetrics) RecordTransitionDropped() {
	// No-op
}

// RecordLeadershipChange discards the leadership change metric.
func (n *NopMetrics) RecordLeadershipChange(_ /* newLeader */ string) {
	// No-op
}

// HeartbeatMetrics implementation

// RecordHeartbeat discards the heartbeat publish metric.
func (n *NopMetrics) RecordHeartbeat(_ /* processID */ string, _ /* success */ bool) {
	// No-op
}

// RecordHeartbeatObserved discards the heartbeat observation metric.
func (n *NopMetrics) RecordHeartbeatObserved() {
	// No-op
}

// RosterMetrics implementation

// RecordRosterPublish discards the roster publish metric.
func (n *NopMetrics) RecordRosterPublish(_ /* version */ int64, _ /* processes */ int) {
	// No-op
}

// RecordRosterSkipped discards the skipped publish metric.
func (n *NopMetrics) RecordRosterSkipped() {
	// No-op
}
