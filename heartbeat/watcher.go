package heartbeat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/gitxandert/process-monitor/internal/natsutil"
	"github.com/gitxandert/process-monitor/types"
)

// Sink receives heartbeat observations.
//
// *procmon.Monitor satisfies this interface; tests use recording fakes.
type Sink interface {
	// Observe reports fresh heartbeat evidence for a process.
	Observe(processID string)
}

// Watcher feeds heartbeat evidence from a NATS KV bucket into a Sink.
//
// It provides hybrid observation:
//   - Watch (primary): fast delivery (<100ms) via NATS KV Watch
//   - Scan (fallback): periodic key listing every ttl/2 that catches
//     updates a dropped watch missed
//
// Both paths deduplicate by entry revision, so a heartbeat seen by the
// watch is not re-reported by the scan. Key deletions are not evidence;
// a process that deletes its key simply goes silent and times out in the
// monitor.
//
// If the watch channel closes (server restart, connection loss), the
// Watcher re-establishes it with decorrelated jitter backoff while the
// scan keeps evidence flowing.
type Watcher struct {
	kv           jetstream.KeyValue
	prefix       string
	ttl          time.Duration
	watchPattern string // cached "prefix.*"
	sink         Sink
	logger       types.Logger

	metricsMu sync.Mutex
	metrics   types.MetricsCollector

	// Lifecycle management
	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a new heartbeat watcher.
//
// Parameters:
//   - kv: NATS KV bucket holding heartbeat entries
//   - prefix: Prefix for heartbeat keys (must match the publishers')
//   - ttl: Heartbeat bucket TTL; the fallback scan runs every ttl/2
//   - sink: Destination for observations
//   - log: Logger for watch lifecycle events
//
// Returns:
//   - *Watcher: A new heartbeat watcher instance
func NewWatcher(
	kv jetstream.KeyValue,
	prefix string,
	ttl time.Duration,
	sink Sink,
	log types.Logger,
) *Watcher {
	return &Watcher{
		kv:           kv,
		prefix:       prefix,
		ttl:          ttl,
		watchPattern: fmt.Sprintf("%s.*", prefix),
		sink:         sink,
		logger:       log,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// SetMetrics sets the metrics collector for observation events.
//
// Optional. If not set, metrics are not recorded.
func (w *Watcher) SetMetrics(metrics types.MetricsCollector) {
	w.metricsMu.Lock()
	defer w.metricsMu.Unlock()

	w.metrics = metrics
}

// Start begins watching heartbeats in a background goroutine.
//
// Parameters:
//   - ctx: Context for cancellation (bounds the watch lifetime)
//
// Returns:
//   - error: Error if already started or already stopped
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Check stopped first - once stopped, cannot restart
	if w.stopped {
		return types.ErrWatcherAlreadyStopped
	}
	if w.started {
		return types.ErrWatcherAlreadyStarted
	}

	w.started = true
	go w.run(ctx)

	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
//
// Safe to call multiple times - subsequent calls return immediately.
//
// Returns:
//   - error: Error if Stop is called before Start, nil otherwise
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return types.ErrWatcherNotStarted
	}
	if w.stopped {
		w.mu.Unlock()
		return nil // Already stopped - idempotent
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	return nil
}

// run is the single goroutine owning the watch, the fallback scan, and the
// per-key revision state. Keeping everything on one goroutine means the
// revisions map needs no locking.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	revisions := make(map[string]uint64)
	rng := newRetryRNG(0)

	scanEvery := w.ttl / 2
	if scanEvery <= 0 {
		scanEvery = 3 * time.Second
	}
	scanTicker := time.NewTicker(scanEvery)
	defer scanTicker.Stop()

	var (
		watcher    jetstream.KeyWatcher
		updates    <-chan jetstream.KeyValueEntry
		retryDelay time.Duration
		retryCh    <-chan time.Time
	)

	stopWatch := func() {
		if watcher != nil {
			if err := watcher.Stop(); err != nil {
				w.logger.Warn("failed to stop heartbeat watch", "error", err)
			}
			watcher = nil
		}
		updates = nil
	}
	defer stopWatch()

	startWatch := func() {
		kw, err := w.kv.Watch(ctx, w.watchPattern)
		if err != nil {
			retryDelay = nextRetryDelay(retryDelay, rng)
			retryCh = time.After(retryDelay)
			if natsutil.IsConnectivityError(err) {
				w.logger.Warn("heartbeat watch failed, server unreachable, retrying",
					"pattern", w.watchPattern,
					"retry_in", retryDelay,
					"error", err,
				)
			} else {
				w.logger.Error("heartbeat watch failed, retrying",
					"pattern", w.watchPattern,
					"retry_in", retryDelay,
					"error", err,
				)
			}

			return
		}
		watcher = kw
		updates = kw.Updates()
		retryDelay = 0
		retryCh = nil
		w.logger.Info("heartbeat watch established", "pattern", w.watchPattern)
	}

	startWatch()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case entry, ok := <-updates:
			if !ok {
				// Watch channel closed (server restart or connection loss).
				// The scan keeps evidence flowing while we re-establish it.
				stopWatch()
				retryDelay = nextRetryDelay(retryDelay, rng)
				retryCh = time.After(retryDelay)
				w.logger.Warn("heartbeat watch closed, retrying", "retry_in", retryDelay)

				continue
			}
			if entry == nil {
				// Initial replay complete
				continue
			}
			w.applyEntry(entry, revisions)

		case <-retryCh:
			retryCh = nil
			startWatch()

		case <-scanTicker.C:
			w.scan(ctx, revisions)
		}
	}
}

// applyEntry processes one watch update against the revision state.
func (w *Watcher) applyEntry(entry jetstream.KeyValueEntry, revisions map[string]uint64) {
	key := entry.Key()
	processID, ok := w.processIDFromKey(key)
	if !ok {
		w.logger.Debug("ignoring key outside heartbeat prefix", "key", key)
		return
	}

	switch entry.Operation() {
	case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
		// Deletion is not evidence; the monitor times the process out.
		delete(revisions, key)
		w.logger.Debug("heartbeat entry removed", "process_id", processID)

		return
	default:
	}

	rev := entry.Revision()
	if last, seen := revisions[key]; seen && rev <= last {
		return
	}
	revisions[key] = rev

	if _, err := DecodeMessage(entry.Value()); err != nil {
		// The key write itself is evidence regardless of payload health
		w.logger.Warn("malformed heartbeat payload", "process_id", processID, "error", err)
	}

	w.sink.Observe(processID)
	w.recordObserved()
}

// scan is the fallback path: list heartbeat keys and report any whose
// revision advanced past what the watch delivered.
func (w *Watcher) scan(ctx context.Context, revisions map[string]uint64) {
	scanCtx, cancel := context.WithTimeout(ctx, scanEveryBound(w.ttl))
	defer cancel()

	keys, err := w.kv.Keys(scanCtx)
	if err != nil {
		if types.IsNoKeysFoundError(err) {
			clear(revisions)
			return
		}
		// A connectivity outage here means evidence stops flowing and
		// tracked processes will time out on the monitor side; nothing to
		// fall back on, so log and wait for the next cycle.
		if natsutil.IsConnectivityError(err) {
			w.logger.Warn("heartbeat scan failed, server unreachable", "error", err)
		} else {
			w.logger.Warn("heartbeat scan failed", "error", err)
		}

		return
	}

	present := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		processID, ok := w.processIDFromKey(key)
		if !ok {
			continue
		}
		present[key] = struct{}{}

		entry, err := w.kv.Get(scanCtx, key)
		if err != nil {
			// Key expired or was deleted between Keys() and Get()
			w.logger.Debug("heartbeat entry vanished during scan", "key", key, "error", err)
			continue
		}

		rev := entry.Revision()
		if last, seen := revisions[key]; seen && rev <= last {
			continue
		}
		revisions[key] = rev

		w.sink.Observe(processID)
		w.recordObserved()
	}

	// Drop state for keys no longer in the bucket
	for key := range revisions {
		if _, ok := present[key]; !ok {
			delete(revisions, key)
		}
	}
}

// processIDFromKey extracts the process ID from a heartbeat key.
//
// Keys have the form "prefix.processID"; keys under other prefixes
// (including longer prefixes sharing the same leading bytes) are rejected.
func (w *Watcher) processIDFromKey(key string) (string, bool) {
	if len(key) <= len(w.prefix)+1 {
		return "", false
	}
	if key[:len(w.prefix)] != w.prefix || key[len(w.prefix)] != '.' {
		return "", false
	}

	return key[len(w.prefix)+1:], true
}

// recordObserved records an observation to the metrics collector.
func (w *Watcher) recordObserved() {
	w.metricsMu.Lock()
	metrics := w.metrics
	w.metricsMu.Unlock()

	if metrics != nil {
		metrics.RecordHeartbeatObserved()
	}
}

// scanEveryBound bounds per-scan KV calls; scans never outlive the window
// that would make their evidence stale.
func scanEveryBound(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 3 * time.Second
	}

	return ttl
}
