package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gitxandert/process-monitor/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are registered lazily on first use so constructing the collector
// never panics on duplicate registration; only the first recording does.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	// Monitor metrics
	transitions       *prometheus.CounterVec
	processStates     *prometheus.GaugeVec
	pollDuration      prometheus.Histogram
	detectorFaults    *prometheus.CounterVec
	droppedNotifies   prometheus.Counter
	leadershipChanges prometheus.Counter

	// Heartbeat metrics
	heartbeatsPublished *prometheus.CounterVec
	heartbeatsObserved  prometheus.Counter

	// Roster metrics
	rosterPublishes prometheus.Counter
	rosterSkipped   prometheus.Counter
	rosterVersion   prometheus.Gauge
	rosterProcesses prometheus.Gauge
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "procmon" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "procmon"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		// Process IDs are unbounded, so counters are labeled by state or
		// result, never by process.
		p.transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "monitor",
			Name:      "transitions_total",
			Help:      "Total liveness state transitions by from/to state.",
		}, []string{"from", "to"})

		p.processStates = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "monitor",
			Name:      "processes",
			Help:      "Current number of tracked processes by liveness state.",
		}, []string{"state"})

		p.pollDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "monitor",
			Name:      "poll_duration_seconds",
			Help:      "Duration of one poll sweep over all tracked processes in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		})

		p.detectorFaults = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "monitor",
			Name:      "detector_faults_total",
			Help:      "Total latched detector faults by kind (time,reentry).",
		}, []string{"kind"})

		p.droppedNotifies = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "monitor",
			Name:      "transitions_dropped_total",
			Help:      "Transition notifications dropped due to slow subscribers.",
		})

		p.leadershipChanges = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "monitor",
			Name:      "leadership_changes_total",
			Help:      "Total leadership acquisitions and losses observed by this instance.",
		})

		p.heartbeatsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "heartbeat",
			Name:      "published_total",
			Help:      "Total heartbeat publish attempts by result (success,failure).",
		}, []string{"result"})

		p.heartbeatsObserved = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "heartbeat",
			Name:      "observed_total",
			Help:      "Total heartbeat observations delivered to the monitor.",
		})

		p.rosterPublishes = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "roster",
			Name:      "publishes_total",
			Help:      "Total roster snapshots published.",
		})

		p.rosterSkipped = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "roster",
			Name:      "publishes_skipped_total",
			Help:      "Publish cycles skipped because the roster content was unchanged.",
		})

		p.rosterVersion = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "roster",
			Name:      "version",
			Help:      "Version of the most recently published roster.",
		})

		p.rosterProcesses = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "roster",
			Name:      "processes",
			Help:      "Number of processes in the most recently published roster.",
		})

		p.reg.MustRegister(p.transitions)
		p.reg.MustRegister(p.processStates)
		p.reg.MustRegister(p.pollDuration)
		p.reg.MustRegister(p.detectorFaults)
		p.reg.MustRegister(p.droppedNotifies)
		p.reg.MustRegister(p.leadershipChanges)
		p.reg.MustRegister(p.heartbeatsPublished)
		p.reg.MustRegister(p.heartbeatsObserved)
		p.reg.MustRegister(p.rosterPublishes)
		p.reg.MustRegister(p.rosterSkipped)
		p.reg.MustRegister(p.rosterVersion)
		p.reg.MustRegister(p.rosterProcesses)
	})
}

// MonitorMetrics implementation

// RecordTransition counts a liveness state transition.
func (p *PrometheusCollector) RecordTransition(from, to types.State) {
	p.ensureRegistered()
	p.transitions.WithLabelValues(from.String(), to.String()).Inc()
}

// RecordProcessStates sets the per-state process gauges.
func (p *PrometheusCollector) RecordProcessStates(unknown, alive, dead int) {
	p.ensureRegistered()
	p.processStates.WithLabelValues(types.StateUnknown.String()).Set(float64(unknown))
	p.processStates.WithLabelValues(types.StateAlive.String()).Set(float64(alive))
	p.processStates.WithLabelValues(types.StateDead.String()).Set(float64(dead))
}

// RecordPollDuration observes the duration of one poll sweep.
func (p *PrometheusCollector) RecordPollDuration(duration float64) {
	p.ensureRegistered()
	p.pollDuration.Observe(duration)
}

// RecordDetectorFault counts a latched detector fault by kind.
func (p *PrometheusCollector) RecordDetectorFault(kind string) {
	p.ensureRegistered()
	p.detectorFaults.WithLabelValues(kind).Inc()
}

// RecordTransitionDropped counts a dropped transition notification.
func (p *PrometheusCollector) RecordTransitionDropped() {
	p.ensureRegistered()
	p.droppedNotifies.Inc()
}

// RecordLeadershipChange counts a leadership change.
func (p *PrometheusCollector) RecordLeadershipChange(_ /* newLeader */ string) {
	p.ensureRegistered()
	p.leadershipChanges.Inc()
}

// HeartbeatMetrics implementation

// RecordHeartbeat counts a heartbeat publish attempt by result.
func (p *PrometheusCollector) RecordHeartbeat(_ /* processID */ string, success bool) {
	p.ensureRegistered()
	result := "success"
	if !success {
		result = "failure"
	}
	p.heartbeatsPublished.WithLabelValues(result).Inc()
}

// RecordHeartbeatObserved counts a heartbeat observation.
func (p *PrometheusCollector) RecordHeartbeatObserved() {
	p.ensureRegistered()
	p.heartbeatsObserved.Inc()
}

// RosterMetrics implementation

// RecordRosterPublish records a published roster snapshot.
func (p *PrometheusCollector) RecordRosterPublish(version int64, processes int) {
	p.ensureRegistered()
	p.rosterPublishes.Inc()
	p.rosterVersion.Set(float64(version))
	p.rosterProcesses.Set(float64(processes))
}

// RecordRosterSkipped counts a publish cycle skipped for unchanged content.
func (p *PrometheusCollector) RecordRosterSkipped() {
	p.ensureRegistered()
	p.rosterSkipped.Inc()
}
