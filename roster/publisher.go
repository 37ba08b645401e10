package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/gitxandert/process-monitor/types"
)

// Common errors for roster publishing.
var (
	ErrAlreadyStarted = errors.New("roster publisher already started")
	ErrAlreadyStopped = errors.New("roster publisher already stopped")
	ErrNotStarted     = errors.New("roster publisher not started")
)

// Snapshotter supplies the liveness snapshots a Publisher publishes.
//
// *procmon.Monitor satisfies this interface.
type Snapshotter interface {
	// Snapshot returns the current status of every tracked process.
	Snapshot() []types.ProcessStatus

	// IsLeader reports whether this instance should publish.
	IsLeader() bool

	// InstanceID identifies the instance in published rosters.
	InstanceID() string
}

// Publisher periodically publishes rosters to a NATS KV key.
//
// Every monitor replica can run a Publisher; only the one whose Snapshotter
// reports leadership actually writes. Publishes with a content digest equal
// to the previous write are skipped, so an unchanging system generates no
// KV traffic.
//
// Version monotonicity across leader changes comes from version adoption:
// Start reads the version already stored under the roster key, and every
// standby-to-leader transition re-reads it before the first write of the
// new term.
type Publisher struct {
	kv       jetstream.KeyValue
	key      string
	source   Snapshotter
	interval time.Duration
	logger   types.Logger

	metricsMu sync.Mutex
	metrics   types.MetricsCollector

	mu         sync.Mutex
	version    int64
	lastDigest uint64
	hasDigest  bool
	wasLeader  bool
	started    bool
	stopped    bool
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// NewPublisher creates a new roster publisher.
//
// Parameters:
//   - kv: JetStream KV bucket for roster storage
//   - key: Key the roster is stored under (e.g., "roster")
//   - source: Snapshot supplier, typically the *procmon.Monitor
//   - interval: Publish cadence
//   - log: Logger for publish events
//
// Returns:
//   - *Publisher: A new roster publisher instance
func NewPublisher(
	kv jetstream.KeyValue,
	key string,
	source Snapshotter,
	interval time.Duration,
	log types.Logger,
) *Publisher {
	return &Publisher{
		kv:       kv,
		key:      key,
		source:   source,
		interval: interval,
		logger:   log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// SetMetrics sets the metrics collector for publish events.
//
// Optional. If not set, metrics are not recorded.
func (p *Publisher) SetMetrics(metrics types.MetricsCollector) {
	p.metricsMu.Lock()
	defer p.metricsMu.Unlock()

	p.metrics = metrics
}

// Start adopts the stored roster version and begins the publish loop.
//
// Version discovery makes versions monotonic across leader changes: if a
// previous leader published version N, this publisher continues at N+1.
// A missing or undecodable roster key starts from version 0.
//
// Parameters:
//   - ctx: Context for version discovery and loop cancellation
//
// Returns:
//   - error: Error if already started or already stopped, or on a KV
//     failure other than an absent roster key
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrAlreadyStopped
	}
	if p.started {
		return ErrAlreadyStarted
	}

	version, err := p.discoverVersion(ctx)
	if err != nil {
		return err
	}
	p.version = version

	p.started = true
	go p.run(ctx)

	return nil
}

// Stop stops the publish loop and waits for it to exit.
//
// Safe to call multiple times - subsequent calls return immediately.
//
// Returns:
//   - error: Error if Stop is called before Start, nil otherwise
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrNotStarted
	}
	if p.stopped {
		p.mu.Unlock()
		return nil // Already stopped - idempotent
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.stopCh)
	<-p.doneCh

	return nil
}

// PublishNow publishes a roster immediately, outside the loop cadence.
//
// Obeys the same leadership and dedupe rules as the loop. Useful right
// after a leadership grant so readers see the takeover without waiting an
// interval.
//
// Returns:
//   - error: Marshal or KV failure; nil when skipped or published
func (p *Publisher) PublishNow(ctx context.Context) error {
	return p.publishOnce(ctx)
}

// CurrentVersion returns the version of the last published roster.
//
// Returns:
//   - int64: Current version (0 if nothing published yet)
func (p *Publisher) CurrentVersion() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.version
}

// run is the background publish loop.
func (p *Publisher) run(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			opCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := p.publishOnce(opCtx); err != nil {
				p.logger.Warn("roster publish failed", "error", err)
			}
			cancel()
		}
	}
}

// publishOnce publishes a single roster if leading and the content changed.
func (p *Publisher) publishOnce(ctx context.Context) error {
	if !p.source.IsLeader() {
		p.mu.Lock()
		p.wasLeader = false
		p.mu.Unlock()
		p.logger.Debug("skipping roster publish on standby instance")

		return nil
	}

	p.mu.Lock()
	newTerm := !p.wasLeader
	p.mu.Unlock()

	// On a standby-to-leader edge, re-adopt the stored version so versions
	// stay monotonic even when the previous leader published after this
	// publisher started. Dropping the digest forces one write so readers
	// see the takeover.
	if newTerm {
		version, err := p.discoverVersion(ctx)
		if err != nil {
			return err
		}

		p.mu.Lock()
		if version > p.version {
			p.version = version
		}
		p.hasDigest = false
		p.wasLeader = true
		p.mu.Unlock()
	}

	snapshot := p.source.Snapshot()

	r := &Roster{
		PublishedBy: p.source.InstanceID(),
		Processes:   snapshot,
	}
	digest := r.Digest()

	p.mu.Lock()
	if p.hasDigest && digest == p.lastDigest {
		p.mu.Unlock()
		p.recordSkipped()

		return nil
	}
	p.version++
	r.Version = p.version
	p.mu.Unlock()

	r.PublishedAt = time.Now()

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal roster: %w", err)
	}

	if _, err := p.kv.Put(ctx, p.key, data); err != nil {
		// Roll the version back so a transient KV failure doesn't burn
		// version numbers without a corresponding stored roster.
		p.mu.Lock()
		p.version--
		p.mu.Unlock()

		return fmt.Errorf("%w: %w", types.ErrPublishFailed, err)
	}

	p.mu.Lock()
	p.lastDigest = digest
	p.hasDigest = true
	p.mu.Unlock()

	p.recordPublish(r.Version, len(snapshot))
	p.logger.Info("roster published",
		"version", r.Version,
		"processes", len(snapshot),
	)

	return nil
}

// discoverVersion reads the stored roster to adopt its version.
func (p *Publisher) discoverVersion(ctx context.Context) (int64, error) {
	entry, err := p.kv.Get(ctx, p.key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return 0, nil
		}

		return 0, fmt.Errorf("failed to discover roster version: %w", err)
	}

	var r Roster
	if err := json.Unmarshal(entry.Value(), &r); err != nil {
		// A corrupt roster should not block publishing; start over
		p.logger.Warn("existing roster is undecodable, starting from version 0", "error", err)
		return 0, nil
	}

	p.logger.Info("adopted existing roster version", "version", r.Version, "published_by", r.PublishedBy)

	return r.Version, nil
}

// recordPublish records a publish to the metrics collector.
func (p *Publisher) recordPublish(version int64, processes int) {
	p.metricsMu.Lock()
	metrics := p.metrics
	p.metricsMu.Unlock()

	if metrics != nil {
		metrics.RecordRosterPublish(version, processes)
	}
}

// recordSkipped records a deduplicated publish cycle.
func (p *Publisher) recordSkipped() {
	p.metricsMu.Lock()
	metrics := p.metrics
	p.metricsMu.Unlock()

	if metrics != nil {
		metrics.RecordRosterSkipped()
	}
}
