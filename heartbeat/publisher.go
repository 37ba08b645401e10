package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/gitxandert/process-monitor/internal/logger"
	"github.com/gitxandert/process-monitor/internal/natsutil"
	"github.com/gitxandert/process-monitor/types"
)

// Common errors for heartbeat publishing.
var (
	ErrNotStarted     = errors.New("publisher not started")
	ErrAlreadyStarted = errors.New("publisher already started")
	ErrNoProcessID    = errors.New("process ID not set")
)

// Publisher publishes periodic heartbeats to a NATS KV bucket.
//
// Each monitored process runs one Publisher. The heartbeat key holds a
// Message with the send timestamp and a monotonically increasing sequence,
// and is refreshed every interval. The bucket TTL expires the key when the
// process stops refreshing it, so watchers see silence rather than a stale
// entry.
//
// On clean shutdown the key is deleted immediately instead of waiting for
// TTL expiration.
type Publisher struct {
	kv       jetstream.KeyValue
	prefix   string
	interval time.Duration

	seq atomic.Uint64

	mu        sync.Mutex
	processID string
	meta      map[string]string
	metrics   types.MetricsCollector
	logger    types.Logger
	started   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	ticker    *time.Ticker
}

// NewPublisher creates a new heartbeat publisher.
//
// The KV bucket should be configured with a TTL of ~3x the heartbeat
// interval so a crash is detected after a few missed heartbeats.
//
// Parameters:
//   - kv: JetStream KV bucket for heartbeat storage
//   - prefix: Key prefix for heartbeat keys (e.g., "heartbeat")
//   - interval: Heartbeat publish interval (typically 2s)
//
// Returns:
//   - *Publisher: New heartbeat publisher instance
//
// Example:
//
//	kv, _ := heartbeat.EnsureBucket(ctx, js, "procmon-heartbeat", 6*time.Second)
//	pub := heartbeat.NewPublisher(kv, "heartbeat", 2*time.Second)
//	pub.SetProcessID("payments-1")
func NewPublisher(kv jetstream.KeyValue, prefix string, interval time.Duration) *Publisher {
	return &Publisher{
		kv:       kv,
		prefix:   prefix,
		interval: interval,
		logger:   logger.NewNop(),
	}
}

// SetProcessID sets the process ID for heartbeat publishing.
//
// Must be called before Start().
//
// Parameters:
//   - processID: Process ID to use in the heartbeat key and payload
func (p *Publisher) SetProcessID(processID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processID = processID
}

// SetMeta sets optional labels carried in every heartbeat payload.
//
// Useful for host, version, or deployment identifiers. Takes effect on the
// next publish.
func (p *Publisher) SetMeta(meta map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.meta = meta
}

// SetMetrics sets the metrics collector for publish events.
//
// Optional. If not set, metrics are not recorded.
//
// Parameters:
//   - metrics: Metrics collector instance
func (p *Publisher) SetMetrics(metrics types.MetricsCollector) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.metrics = metrics
}

// SetLogger sets the logger for publish failures.
//
// Optional. Defaults to a no-op logger.
func (p *Publisher) SetLogger(log types.Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger = log
}

// Start begins publishing heartbeats in the background.
//
// Publishes the first heartbeat immediately, then at regular intervals.
// Continues until Stop() is called. A stopped publisher may be started
// again; the sequence counter carries over.
//
// Parameters:
//   - ctx: Context for the initial publish
//
// Returns:
//   - error: ErrAlreadyStarted if already running, ErrNoProcessID if the
//     process ID is not set, or the initial publish error
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}

	if p.processID == "" {
		return ErrNoProcessID
	}

	p.started = true
	p.ticker = time.NewTicker(p.interval)
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	// Publish first heartbeat immediately so watchers see the process
	// without waiting a full interval.
	if err := p.publish(ctx, p.processID, p.meta); err != nil {
		p.ticker.Stop()
		p.started = false
		return fmt.Errorf("failed to publish initial heartbeat: %w", err)
	}

	go p.publishLoop(p.stopCh, p.doneCh)

	return nil
}

// Stop stops the heartbeat publisher and deletes the heartbeat entry.
//
// Blocks until the publisher goroutine exits and cleanup completes.
// The heartbeat entry is deleted to immediately signal shutdown instead of
// waiting for TTL expiration.
//
// Returns:
//   - error: ErrNotStarted if not running, or cleanup error if delete fails
func (p *Publisher) Stop() error {
	p.mu.Lock()

	if !p.started {
		p.mu.Unlock()
		return ErrNotStarted
	}

	p.ticker.Stop()
	close(p.stopCh)
	p.started = false
	doneCh := p.doneCh
	processID := p.processID

	p.mu.Unlock()

	<-doneCh

	// Delete the heartbeat entry. Use a background context with timeout
	// since the caller's context is often already canceled during shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := p.kv.Delete(ctx, p.keyFor(processID)); err != nil {
		// Don't fail shutdown on cleanup errors, but surface them
		return fmt.Errorf("stopped but failed to delete heartbeat: %w", err)
	}

	return nil
}

// publishLoop is the background goroutine that publishes heartbeats.
func (p *Publisher) publishLoop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	for {
		select {
		case <-stopCh:
			return
		case <-p.ticker.C:
			p.mu.Lock()
			processID := p.processID
			meta := p.meta
			p.mu.Unlock()

			// Long-running goroutine, so bound each publish independently
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := p.publish(ctx, processID, meta)
			cancel()

			if err != nil {
				p.recordMetric(false)
				if natsutil.IsConnectivityError(err) {
					p.log().Warn("heartbeat publish failed, retrying next interval",
						"process_id", processID, "error", err)
				} else {
					p.log().Error("heartbeat publish failed", "process_id", processID, "error", err)
				}
			} else {
				p.recordMetric(true)
			}
		}
	}
}

// publish writes one heartbeat message to the KV bucket.
func (p *Publisher) publish(ctx context.Context, processID string, meta map[string]string) error {
	msg := &Message{
		ProcessID: processID,
		SentAt:    time.Now().UnixNano(),
		Seq:       p.seq.Add(1),
		Meta:      meta,
	}

	value, err := msg.Encode()
	if err != nil {
		return err
	}

	if _, err := p.kv.Put(ctx, p.keyFor(processID), value); err != nil {
		return fmt.Errorf("failed to publish heartbeat for %s: %w", processID, err)
	}

	return nil
}

// keyFor generates the KV key for a process's heartbeat.
func (p *Publisher) keyFor(processID string) string {
	return fmt.Sprintf("%s.%s", p.prefix, processID)
}

// recordMetric records publish success/failure to the metrics collector.
func (p *Publisher) recordMetric(success bool) {
	p.mu.Lock()
	metrics := p.metrics
	processID := p.processID
	p.mu.Unlock()

	if metrics != nil {
		metrics.RecordHeartbeat(processID, success)
	}
}

// log returns the configured logger.
func (p *Publisher) log() types.Logger {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.logger
}

// ProcessID returns the configured process ID.
func (p *Publisher) ProcessID() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.processID
}

// Seq returns the sequence number of the most recent publish attempt.
func (p *Publisher) Seq() uint64 {
	return p.seq.Load()
}

// IsStarted returns whether the publisher is currently running.
func (p *Publisher) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.started
}
