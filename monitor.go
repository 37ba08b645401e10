package procmon

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/gitxandert/process-monitor/clock"
	"github.com/gitxandert/process-monitor/internal/hooks"
	"github.com/gitxandert/process-monitor/internal/logger"
	"github.com/gitxandert/process-monitor/internal/metrics"
	"github.com/gitxandert/process-monitor/types"
)

// Monitor tracks the liveness of a set of processes from their heartbeats.
//
// Monitor is the main entry point of the process-monitor library. It handles:
//   - Per-process liveness detection (Unknown, Alive, Dead)
//   - Periodic evaluation of every tracked process against a timeout
//   - Transition fan-out to subscribers and lifecycle hooks
//   - Optional leader election so only one replica fires hooks
//   - Optional reconciliation against an authoritative process source
//
// Heartbeats reach the monitor through Observe, typically fed by a
// heartbeat.Watcher, but any transport works: the monitor itself never
// touches the network.
//
// Thread Safety:
//   - All public methods are safe for concurrent use
//   - Liveness verdicts are atomic reads of detector state
//   - Snapshot returns value copies, never internal references
//
// Lifecycle:
//   - Create with NewMonitor()
//   - Call Track/Observe to register processes
//   - Call Start() to begin evaluation
//   - Call Stop() for graceful shutdown; a stopped monitor cannot be restarted
type Monitor struct {
	cfg Config

	// Optional dependencies
	source        ProcessSource
	electionAgent ElectionAgent
	hooks         *Hooks
	metrics       MetricsCollector
	logger        Logger
	clk           clock.Clock

	// Tracked processes
	processes *xsync.Map[string, *processEntry]

	// Transition fan-out
	subscribers      *xsync.Map[uint64, *transitionSubscriber]
	nextSubscriberID atomic.Uint64

	// Leadership state; true when no election agent is configured
	isLeader atomic.Bool

	// Lifecycle management
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	stopped bool
}

// processEntry holds the detector and per-sweep bookkeeping for one process.
type processEntry struct {
	detector *Detector

	// Evidence and commands accumulated between sweeps
	pendingSeen  atomic.Bool
	resetPending atomic.Bool

	// Sweep-loop private; never touched outside the poll goroutine
	lastState types.State
	faultSeen bool
}

func newProcessEntry(now uint64) *processEntry {
	return &processEntry{
		detector:  NewDetector(now),
		lastState: types.StateUnknown,
	}
}

// NewMonitor creates a new Monitor instance with the provided configuration.
//
// Returns a concrete *Monitor struct following the "accept interfaces, return
// structs" principle. Consumers can define their own interfaces for testing
// if needed.
//
// Parameters:
//   - cfg: Runtime configuration with parsed durations
//   - opts: Optional configuration (source, election agent, hooks, metrics, logger, clock)
//
// Returns:
//   - *Monitor: Initialized monitor instance
//   - error: Validation error if configuration is invalid
//
// Example:
//
//	cfg := procmon.DefaultConfig()
//	monitor, err := procmon.NewMonitor(cfg,
//	    procmon.WithLogger(logger),
//	    procmon.WithHooks(&procmon.Hooks{OnProcessDead: alertOnDead}),
//	)
func NewMonitor(cfg Config, opts ...Option) (*Monitor, error) {
	// Fill in missing configuration values with defaults
	SetDefaults(&cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	// Apply options
	options := &monitorOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Provide safe defaults for optional dependencies to avoid nil checks everywhere
	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logger.NewNop()
	}

	// Validate with warnings after logger is available
	cfg.ValidateWithWarnings(loggerInstance)

	hooksInstance := options.hooks
	if hooksInstance == nil {
		nopHooks := hooks.NewNop()
		hooksInstance = &nopHooks
	}

	clk := options.clock
	if clk == nil {
		clk = clock.Monotonic()
	}

	m := &Monitor{
		cfg:           cfg,
		source:        options.source,
		electionAgent: options.electionAgent,
		hooks:         hooksInstance,
		metrics:       metricsCollector,
		logger:        loggerInstance,
		clk:           clk,
		processes:     xsync.NewMap[string, *processEntry](),
		subscribers:   xsync.NewMap[uint64, *transitionSubscriber](),
	}

	// Without an election agent this replica is the sole authority
	if m.electionAgent == nil {
		m.isLeader.Store(true)
	}

	return m, nil
}

// Start begins liveness evaluation.
//
// Performs the initial source sync and leadership request, then launches the
// poll, leadership, and source refresh loops. Blocks only for the startup
// steps, bounded by StartupTimeout.
//
// Parameters:
//   - ctx: Context for startup cancellation and timeout
//
// Returns:
//   - error: Startup error, or ErrAlreadyStarted if called twice
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()

		return ErrAlreadyStarted
	}
	m.started = true

	// Create monitor lifecycle context, independent of the startup context
	m.ctx, m.cancel = context.WithCancel(context.Background())
	lifecycleCtx := m.ctx
	m.mu.Unlock()

	// Apply startup timeout from the provided context
	startupCtx := ctx
	if m.cfg.StartupTimeout > 0 {
		var cancel context.CancelFunc
		startupCtx, cancel = context.WithTimeout(ctx, m.cfg.StartupTimeout)
		defer cancel()
	}

	// Step 1: Initial sync against the authoritative source
	if m.source != nil {
		if err := m.syncSource(startupCtx); err != nil {
			return fmt.Errorf("failed initial process source sync: %w", err)
		}
	}

	// Step 2: Request leadership
	if m.electionAgent != nil {
		isLeader, err := m.electionAgent.RequestLeadership(startupCtx, m.cfg.InstanceID, m.leaseDuration())
		if err != nil {
			return fmt.Errorf("failed to request leadership: %w", err)
		}

		m.isLeader.Store(isLeader)
		if isLeader {
			m.metrics.RecordLeadershipChange(m.cfg.InstanceID)
			m.logger.Info("elected as leader", "instance_id", m.cfg.InstanceID)
		} else {
			m.logger.Info("participating as standby", "instance_id", m.cfg.InstanceID)
		}
	}

	// Step 3: Start background loops
	m.wg.Add(1)
	go m.runPollLoop(lifecycleCtx)

	if m.electionAgent != nil {
		m.wg.Add(1)
		go m.runLeadershipLoop(lifecycleCtx)
	}

	if m.source != nil {
		m.wg.Add(1)
		go m.runSourceRefreshLoop(lifecycleCtx)
	}

	m.logger.Info("monitor started",
		"instance_id", m.cfg.InstanceID,
		"poll_interval", m.cfg.PollInterval,
		"liveness_timeout", m.cfg.LivenessTimeout,
		"tracked", m.processes.Size(),
	)

	return nil
}

// Stop gracefully shuts down the monitor.
//
// Releases leadership if held and waits for the background loops to drain,
// bounded by ShutdownTimeout. A stopped monitor cannot be restarted.
//
// Parameters:
//   - ctx: Context for shutdown cancellation
//
// Returns:
//   - error: Shutdown error, or ErrNotStarted if the monitor never ran
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started || m.stopped {
		m.mu.Unlock()

		return ErrNotStarted
	}
	m.stopped = true

	// Cancel lifecycle context to stop all background goroutines
	m.cancel()
	m.mu.Unlock()

	// Apply shutdown timeout from the provided context
	shutdownCtx := ctx
	if m.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
		defer cancel()
	}

	var shutdownErr error

	// Step 1: Release leadership if we hold it
	if m.electionAgent != nil && m.isLeader.Load() {
		if err := m.electionAgent.ReleaseLeadership(shutdownCtx); err != nil {
			m.logError("failed to release leadership", "error", err)
			shutdownErr = fmt.Errorf("leadership release failed: %w", err)
		}
		m.isLeader.Store(false)
	}

	// Step 2: Wait for all background goroutines with timeout
	m.logger.Debug("waiting for goroutines to exit...", "instance_id", m.cfg.InstanceID)
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("monitor stopped gracefully", "instance_id", m.cfg.InstanceID)
		return shutdownErr
	case <-shutdownCtx.Done():
		m.logError("shutdown timeout exceeded, some goroutines may still be running")
		if shutdownErr == nil {
			return shutdownCtx.Err()
		}
		// Return both timeout error and any shutdown errors encountered
		return fmt.Errorf("shutdown timeout: %w; additional error: %w", shutdownCtx.Err(), shutdownErr)
	}
}

// Track registers a process for liveness monitoring.
//
// The process starts in StateUnknown until its first heartbeat arrives.
// Tracking works before Start; evaluation begins with the first poll sweep.
//
// Parameters:
//   - processID: Unique process identifier
//
// Returns:
//   - error: ErrEmptyProcessID or ErrAlreadyTracked
func (m *Monitor) Track(processID string) error {
	if processID == "" {
		return ErrEmptyProcessID
	}

	if _, loaded := m.processes.LoadOrStore(processID, newProcessEntry(m.clk.Now())); loaded {
		return ErrAlreadyTracked
	}

	m.logger.Debug("tracking process", "process_id", processID)

	return nil
}

// Forget removes a process from monitoring.
//
// Parameters:
//   - processID: Unique process identifier
//
// Returns:
//   - error: ErrEmptyProcessID or ErrUnknownProcess
func (m *Monitor) Forget(processID string) error {
	if processID == "" {
		return ErrEmptyProcessID
	}

	if _, loaded := m.processes.LoadAndDelete(processID); !loaded {
		return ErrUnknownProcess
	}

	m.logger.Debug("forgot process", "process_id", processID)

	return nil
}

// Observe records a heartbeat observation for a process.
//
// Unknown processes are tracked automatically, so a heartbeat transport can
// feed the monitor without coordinating registration. The observation is
// folded into the process's verdict at the next poll sweep.
//
// Observe never blocks and never fails; empty process IDs are ignored.
//
// Parameters:
//   - processID: Unique process identifier
func (m *Monitor) Observe(processID string) {
	if processID == "" {
		return
	}

	entry, ok := m.processes.Load(processID)
	if !ok {
		entry, _ = m.processes.LoadOrStore(processID, newProcessEntry(m.clk.Now()))
		m.logger.Debug("tracking process from observation", "process_id", processID)
	}

	entry.pendingSeen.Store(true)
	m.metrics.RecordHeartbeatObserved()
}

// ResetProcess clears a process's detector back to StateUnknown.
//
// This is the only way to recover a process whose detector latched a fault.
// The reset is applied at the next poll sweep; heartbeats observed before
// the reset takes effect are discarded with the old state.
//
// Parameters:
//   - processID: Unique process identifier
//
// Returns:
//   - error: ErrEmptyProcessID or ErrUnknownProcess
func (m *Monitor) ResetProcess(processID string) error {
	if processID == "" {
		return ErrEmptyProcessID
	}

	entry, ok := m.processes.Load(processID)
	if !ok {
		return ErrUnknownProcess
	}

	entry.resetPending.Store(true)
	m.logger.Info("process reset queued", "process_id", processID)

	return nil
}

// Status returns the current liveness status of one process.
//
// Parameters:
//   - processID: Unique process identifier
//
// Returns:
//   - ProcessStatus: Point-in-time status copy
//   - error: ErrEmptyProcessID or ErrUnknownProcess
func (m *Monitor) Status(processID string) (ProcessStatus, error) {
	if processID == "" {
		return ProcessStatus{}, ErrEmptyProcessID
	}

	entry, ok := m.processes.Load(processID)
	if !ok {
		return ProcessStatus{}, ErrUnknownProcess
	}

	return statusOf(processID, entry.detector), nil
}

// Snapshot returns the status of every tracked process, sorted by process ID.
//
// The result is a value copy; mutating it has no effect on the monitor.
//
// Returns:
//   - []ProcessStatus: Statuses sorted by ProcessID
func (m *Monitor) Snapshot() []ProcessStatus {
	statuses := make([]ProcessStatus, 0, m.processes.Size())
	m.processes.Range(func(id string, entry *processEntry) bool {
		statuses = append(statuses, statusOf(id, entry.detector))
		return true
	})

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].ProcessID < statuses[j].ProcessID
	})

	return statuses
}

// Processes returns the IDs of all tracked processes, sorted.
//
// Returns:
//   - []string: Tracked process IDs
func (m *Monitor) Processes() []string {
	ids := make([]string, 0, m.processes.Size())
	m.processes.Range(func(id string, _ *processEntry) bool {
		ids = append(ids, id)
		return true
	})
	sort.Strings(ids)

	return ids
}

// IsLeader returns true if this replica currently fires hooks and owns
// roster duties. Always true when no election agent is configured.
//
// Returns:
//   - bool: true if leader
func (m *Monitor) IsLeader() bool {
	return m.isLeader.Load()
}

// InstanceID returns the identifier of this monitor replica.
//
// Returns:
//   - string: Instance ID from configuration (generated when left empty)
func (m *Monitor) InstanceID() string {
	return m.cfg.InstanceID
}

// SubscribeTransitions returns a channel that receives liveness transitions.
//
// The returned channel is buffered (size 16) so brief subscriber stalls don't
// block the poll loop; transitions that would block are dropped and counted.
// Transitions are delivered on every replica, leader or not.
//
// Returns:
//   - <-chan Transition: Channel that receives transition events
//   - func(): Unsubscribe function to clean up resources
//
// Example:
//
//	ch, unsubscribe := monitor.SubscribeTransitions()
//	defer unsubscribe()
//	for tr := range ch {
//	    fmt.Printf("%s: %s -> %s\n", tr.ProcessID, tr.From, tr.To)
//	}
func (m *Monitor) SubscribeTransitions() (<-chan Transition, func()) {
	id := m.nextSubscriberID.Add(1)

	sub := &transitionSubscriber{ch: make(chan Transition, 16)}
	m.subscribers.Store(id, sub)

	unsubscribe := func() {
		if sub, ok := m.subscribers.LoadAndDelete(id); ok {
			sub.close()
		}
	}

	return sub.ch, unsubscribe
}

func statusOf(processID string, d *Detector) ProcessStatus {
	return ProcessStatus{
		ProcessID:     processID,
		State:         d.State(),
		HasEvidence:   d.HasEvidence(),
		LastHeartbeat: d.LastHeartbeat(),
		Faulted:       d.IsFaulted(),
	}
}

// runPollLoop drives the periodic liveness sweep.
func (m *Monitor) runPollLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("poll loop stopping", "instance_id", m.cfg.InstanceID)
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep evaluates every tracked process once.
//
// Queued resets are applied first and discard any heartbeat observed in the
// same interval. Everything else folds its pending evidence into one
// detector step at the current tick.
func (m *Monitor) sweep() {
	sweepStart := time.Now()

	now := m.clk.Now()
	timeout := uint64(m.cfg.LivenessTimeout)
	waitBound := uint64(m.cfg.WaitBound)

	var unknown, alive, dead int

	m.processes.Range(func(id string, entry *processEntry) bool {
		if entry.resetPending.Swap(false) {
			entry.pendingSeen.Store(false)
			entry.detector.Reset(now)
			entry.faultSeen = false
			m.logger.Info("process state reset", "process_id", id)
		} else {
			seen := entry.pendingSeen.Swap(false)
			entry.detector.Step(now, types.EvidenceOf(seen), timeout, waitBound)
		}

		state := entry.detector.State()
		if state != entry.lastState {
			m.handleTransition(id, entry, state, now)
			entry.lastState = state
		}

		if !entry.faultSeen && entry.detector.IsFaulted() {
			entry.faultSeen = true
			m.handleFault(id, entry.detector)
		}

		switch state {
		case types.StateAlive:
			alive++
		case types.StateDead:
			dead++
		default:
			unknown++
		}

		return true
	})

	m.metrics.RecordProcessStates(unknown, alive, dead)
	m.metrics.RecordPollDuration(time.Since(sweepStart).Seconds())
}

// handleTransition records, publishes, and hooks one state change.
func (m *Monitor) handleTransition(processID string, entry *processEntry, to types.State, now uint64) {
	from := entry.lastState

	m.logger.Info("process state changed",
		"process_id", processID,
		"from", from.String(),
		"to", to.String(),
	)
	m.metrics.RecordTransition(from, to)

	// Fan out to subscribers on every replica
	tr := Transition{ProcessID: processID, From: from, To: to, AtTick: now}
	m.subscribers.Range(func(_ uint64, sub *transitionSubscriber) bool {
		sub.trySend(tr, m.metrics)
		return true
	})

	// Hooks fire only on the leader
	if !m.IsLeader() {
		return
	}

	switch to {
	case types.StateAlive:
		m.fireHook(m.hooks.OnProcessAlive, processID, "process alive hook error")
	case types.StateDead:
		// Fault-induced deaths fire OnProcessFault from handleFault instead
		if !entry.detector.IsFaulted() {
			m.fireHook(m.hooks.OnProcessDead, processID, "process dead hook error")
		}
	default:
		// Transitions back to Unknown (reset) carry no hook
	}
}

// handleFault records a latched detector fault and fires the fault hook.
func (m *Monitor) handleFault(processID string, d *Detector) {
	kind := "time"
	if d.faultReentry.Load() {
		kind = "reentry"
	}

	m.logError("detector fault latched",
		"process_id", processID,
		"kind", kind,
	)
	m.metrics.RecordDetectorFault(kind)

	if !m.IsLeader() {
		return
	}

	m.fireHook(m.hooks.OnProcessFault, processID, "process fault hook error")
}

// fireHook runs one process hook in the background.
func (m *Monitor) fireHook(hook func(ctx context.Context, processID string) error, processID, errMsg string) {
	if hook == nil {
		return
	}

	ctx := m.hookContext()
	go func() {
		if err := hook(ctx, processID); err != nil {
			m.logError(errMsg, "process_id", processID, "error", err)
		}
	}()
}

// fireErrorHook reports a recoverable operational error.
func (m *Monitor) fireErrorHook(err error) {
	if m.hooks.OnError == nil {
		return
	}

	ctx := m.hookContext()
	go func() {
		if hookErr := m.hooks.OnError(ctx, err); hookErr != nil {
			m.logError("error hook error", "error", hookErr)
		}
	}()
}

// hookContext returns the lifecycle context, or a background context when
// the monitor has not been started.
func (m *Monitor) hookContext() context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ctx != nil {
		return m.ctx
	}

	return context.Background()
}

// runLeadershipLoop renews or reacquires the leadership lease.
//
// Leaders periodically renew their lease to maintain leadership. Standbys
// periodically attempt to claim leadership if it becomes vacant.
func (m *Monitor) runLeadershipLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.ElectionTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("leadership loop stopping", "instance_id", m.cfg.InstanceID)
			return
		case <-ticker.C:
			if m.isLeader.Load() {
				if err := m.electionAgent.RenewLeadership(ctx); err != nil {
					m.isLeader.Store(false)
					m.logger.Warn("lost leadership",
						"instance_id", m.cfg.InstanceID,
						"error", err,
					)
					m.fireErrorHook(fmt.Errorf("leadership renewal failed: %w", err))
				}

				continue
			}

			// Standby: try to claim leadership if vacant
			isLeader, err := m.electionAgent.RequestLeadership(ctx, m.cfg.InstanceID, m.leaseDuration())
			if err != nil {
				m.logError("failed to request leadership", "error", err)

				continue
			}

			if isLeader {
				m.isLeader.Store(true)
				m.metrics.RecordLeadershipChange(m.cfg.InstanceID)
				m.logger.Info("became leader", "instance_id", m.cfg.InstanceID)
			}
		}
	}
}

// runSourceRefreshLoop reconciles the tracked set against the process source.
func (m *Monitor) runSourceRefreshLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.SourceRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("source refresh loop stopping", "instance_id", m.cfg.InstanceID)
			return
		case <-ticker.C:
			opCtx, cancel := context.WithTimeout(ctx, m.cfg.OperationTimeout)
			if err := m.syncSource(opCtx); err != nil {
				m.logError("failed to refresh process source", "error", err)
				m.fireErrorHook(fmt.Errorf("process source refresh failed: %w", err))
			}
			cancel()
		}
	}
}

// syncSource makes the tracked set match the source listing exactly.
//
// The source is authoritative: processes it no longer lists are forgotten,
// including ones registered through Track or Observe.
func (m *Monitor) syncSource(ctx context.Context) error {
	ids, err := m.source.ListProcesses(ctx)
	if err != nil {
		return fmt.Errorf("failed to list processes: %w", err)
	}

	now := m.clk.Now()
	want := make(map[string]struct{}, len(ids))

	added := 0
	for _, id := range ids {
		if id == "" {
			continue
		}
		want[id] = struct{}{}
		if _, loaded := m.processes.LoadOrStore(id, newProcessEntry(now)); !loaded {
			added++
		}
	}

	removed := 0
	m.processes.Range(func(id string, _ *processEntry) bool {
		if _, ok := want[id]; !ok {
			m.processes.Delete(id)
			removed++
		}
		return true
	})

	if added > 0 || removed > 0 {
		m.logger.Info("process source synchronized",
			"tracked", len(want),
			"added", added,
			"removed", removed,
		)
	}

	return nil
}

// leaseDuration converts ElectionTTL to the whole seconds election agents expect.
func (m *Monitor) leaseDuration() int64 {
	lease := int64(m.cfg.ElectionTTL.Seconds())
	if lease < 1 {
		lease = 1
	}

	return lease
}

// logError logs an error message.
func (m *Monitor) logError(msg string, keysAndValues ...any) {
	// Logger is always non-nil (defaults to NopLogger)
	m.logger.Error(msg, keysAndValues...)
}
