package procmon

import "github.com/gitxandert/process-monitor/clock"

// Option configures a Monitor with optional dependencies.
type Option func(*monitorOptions)

// monitorOptions holds optional Monitor configuration.
type monitorOptions struct {
	source        ProcessSource
	electionAgent ElectionAgent
	hooks         *Hooks
	metrics       MetricsCollector
	logger        Logger
	clock         clock.Clock
}

// WithProcessSource sets an authoritative process source.
//
// When configured, the monitor reconciles its tracked set against the source
// at startup and every SourceRefreshInterval: processes the source no longer
// lists are forgotten, new ones are tracked.
//
// Parameters:
//   - source: ProcessSource implementation
//
// Returns:
//   - Option: Functional option for NewMonitor
//
// Example:
//
//	src := source.NewStatic([]string{"payments-1", "payments-2"})
//	monitor, err := procmon.NewMonitor(cfg, procmon.WithProcessSource(src))
func WithProcessSource(source ProcessSource) Option {
	return func(o *monitorOptions) {
		o.source = source
	}
}

// WithElectionAgent sets a custom election agent.
//
// When configured, hooks and roster duties only run while this replica holds
// leadership. Without an agent the monitor behaves as a standalone leader.
//
// Parameters:
//   - agent: ElectionAgent implementation
//
// Returns:
//   - Option: Functional option for NewMonitor
//
// Example:
//
//	agent := election.NewKVElection(kv, "leader")
//	monitor, err := procmon.NewMonitor(cfg, procmon.WithElectionAgent(agent))
func WithElectionAgent(agent ElectionAgent) Option {
	return func(o *monitorOptions) {
		o.electionAgent = agent
	}
}

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewMonitor
//
// Example:
//
//	hooks := &procmon.Hooks{
//	    OnProcessDead: func(ctx context.Context, processID string) error {
//	        return alert(ctx, processID)
//	    },
//	}
//	monitor, err := procmon.NewMonitor(cfg, procmon.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *monitorOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewMonitor
//
// Example:
//
//	collector := myPrometheusCollector
//	monitor, err := procmon.NewMonitor(cfg, procmon.WithMetrics(collector))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *monitorOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewMonitor
//
// Example:
//
//	logger := zap.NewExample().Sugar()
//	monitor, err := procmon.NewMonitor(cfg, procmon.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *monitorOptions) {
		o.logger = logger
	}
}

// WithClock sets the clock used for liveness evaluation.
//
// The default is a monotonic clock anchored at monitor creation. Tests
// inject a *clock.Manual to drive detector time deterministically.
//
// Parameters:
//   - clk: Clock implementation
//
// Returns:
//   - Option: Functional option for NewMonitor
//
// Example:
//
//	clk := clock.NewManual(0)
//	monitor, err := procmon.NewMonitor(cfg, procmon.WithClock(clk))
func WithClock(clk clock.Clock) Option {
	return func(o *monitorOptions) {
		o.clock = clk
	}
}
