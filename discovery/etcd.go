package discovery

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/gitxandert/process-monitor/types"
)

// Common errors for discovery operations.
var (
	ErrInvalidTTL         = errors.New("registration TTL must be at least 1 second")
	ErrSyncAlreadyStarted = errors.New("registry sync already started")
	ErrSyncAlreadyStopped = errors.New("registry sync already stopped")
	ErrSyncNotStarted     = errors.New("registry sync not started")
)

// Retry tuning for re-registration and watch re-seeding. Delays double from
// retryBase to retryCap with half the interval randomized so a fleet hitting
// the same etcd outage doesn't retry in lockstep.
const (
	retryBase = 500 * time.Millisecond
	retryCap  = 15 * time.Second
)

// nextDelay computes the next retry delay from the previous one.
func nextDelay(prev time.Duration) time.Duration {
	next := retryBase
	if prev > 0 {
		next = prev * 2
		if next > retryCap {
			next = retryCap
		}
	}

	return next/2 + rand.N(next/2) //nolint:gosec // non-crypto retry jitter
}

// Tracker receives membership changes from a Sync.
//
// *procmon.Monitor satisfies this interface. Track and Forget are allowed
// to reject duplicates and unknowns; Sync treats those as already-applied.
type Tracker interface {
	// Track adds a process to the tracked set.
	Track(processID string) error

	// Forget removes a process from the tracked set.
	Forget(processID string) error
}

// NewClient connects to an etcd cluster.
//
// Parameters:
//   - endpoints: etcd endpoints (e.g., []string{"localhost:2379"})
//
// Returns:
//   - *clientv3.Client: Connected client (caller closes it)
//   - error: Connection configuration error
func NewClient(endpoints []string) (*clientv3.Client, error) {
	return clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
}

// Registration is a live etcd registration for one monitored process.
//
// The registration holds a lease that expires ttl seconds after the process
// stops renewing it, which removes the key and (through Sync) forgets the
// process on every monitor replica. If the lease is lost while the process
// is still running (etcd restart, network partition), the registration
// re-registers itself with backoff.
type Registration struct {
	cli    *clientv3.Client
	key    string
	value  string
	ttl    int64
	logger types.Logger

	mu      sync.Mutex
	leaseID clientv3.LeaseID
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Register announces a process under prefix and keeps the lease alive.
//
// Blocks until the first registration succeeds; failures after that are
// retried in the background.
//
// Parameters:
//   - ctx: Context bounding the initial registration AND the background
//     keepalive (cancel it only when the registration should end)
//   - cli: etcd client
//   - prefix: Registry key prefix (e.g., "/procmon/processes")
//   - processID: The process to announce
//   - value: Key value, typically a host or endpoint for diagnostics
//   - ttl: Lease TTL in seconds (etcd minimum is 1; use >= 5 in production)
//   - log: Logger for lease lifecycle events
//
// Returns:
//   - *Registration: Live registration handle
//   - error: types.ErrEmptyProcessID, ErrInvalidTTL, or the initial
//     registration failure
func Register(
	ctx context.Context,
	cli *clientv3.Client,
	prefix string,
	processID string,
	value string,
	ttl int64,
	log types.Logger,
) (*Registration, error) {
	if processID == "" {
		return nil, types.ErrEmptyProcessID
	}
	if ttl < 1 {
		return nil, ErrInvalidTTL
	}

	r := &Registration{
		cli:    cli,
		key:    keyPrefix(prefix) + processID,
		value:  value,
		ttl:    ttl,
		logger: log,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	ka, err := r.register(ctx)
	if err != nil {
		return nil, err
	}

	go r.run(ctx, ka)

	return r, nil
}

// Stop ends the registration and revokes the lease.
//
// Revoking deletes the key immediately so monitors forget the process now
// instead of after TTL expiry. Safe to call multiple times.
//
// Parameters:
//   - ctx: Context for the revoke call (the registration's own context is
//     usually already canceled during shutdown)
//
// Returns:
//   - error: Revoke failure; the registration is stopped regardless
func (r *Registration) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	leaseID := r.leaseID
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh

	if _, err := r.cli.Revoke(ctx, leaseID); err != nil {
		return fmt.Errorf("stopped but failed to revoke lease: %w", err)
	}

	return nil
}

// Key returns the etcd key this registration holds.
func (r *Registration) Key() string {
	return r.key
}

// LeaseID returns the current lease ID.
func (r *Registration) LeaseID() clientv3.LeaseID {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.leaseID
}

// register grants a lease, writes the key under it, and starts keepalives.
func (r *Registration) register(ctx context.Context) (<-chan *clientv3.LeaseKeepAliveResponse, error) {
	lease, err := r.cli.Grant(ctx, r.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to grant lease: %w", err)
	}

	if _, err := r.cli.Put(ctx, r.key, r.value, clientv3.WithLease(lease.ID)); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", r.key, err)
	}

	ka, err := r.cli.KeepAlive(ctx, lease.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to start lease keepalive: %w", err)
	}

	r.mu.Lock()
	r.leaseID = lease.ID
	r.mu.Unlock()

	r.logger.Info("process registered", "key", r.key, "lease_id", lease.ID, "ttl_seconds", r.ttl)

	return ka, nil
}

// run consumes keepalive responses and re-registers when the lease is lost.
func (r *Registration) run(ctx context.Context, ka <-chan *clientv3.LeaseKeepAliveResponse) {
	defer close(r.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case _, ok := <-ka:
			if ok {
				// Lease renewed
				continue
			}
			r.logger.Warn("registration lease lost, re-registering", "key", r.key)
		}

		// Re-register with backoff until it sticks or we are stopped
		var delay time.Duration
		for {
			delay = nextDelay(delay)
			select {
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			case <-time.After(delay):
			}

			newKA, err := r.register(ctx)
			if err != nil {
				r.logger.Warn("re-registration failed", "key", r.key, "retry_in", delay, "error", err)
				continue
			}
			ka = newKA

			break
		}
	}
}

// Sync follows an etcd registry prefix and mirrors it into a Tracker.
//
// On start (and after any watch interruption) it seeds from a full prefix
// read, reconciling additions and removals, then applies watch events as
// they happen. The seed/watch pair uses the read's revision so no event
// between them is lost.
type Sync struct {
	cli     *clientv3.Client
	prefix  string
	tracker Tracker
	logger  types.Logger

	// Lifecycle management
	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSync creates a registry sync feeding tracker.
//
// Parameters:
//   - cli: etcd client
//   - prefix: Registry key prefix (must match the processes' Register calls)
//   - tracker: Destination for Track/Forget calls, typically the Monitor
//   - log: Logger for sync lifecycle events
//
// Returns:
//   - *Sync: A new registry sync instance
func NewSync(cli *clientv3.Client, prefix string, tracker Tracker, log types.Logger) *Sync {
	return &Sync{
		cli:     cli,
		prefix:  keyPrefix(prefix),
		tracker: tracker,
		logger:  log,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins following the registry in a background goroutine.
//
// Returns:
//   - error: Error if already started or already stopped
func (s *Sync) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check stopped first - once stopped, cannot restart
	if s.stopped {
		return ErrSyncAlreadyStopped
	}
	if s.started {
		return ErrSyncAlreadyStarted
	}

	s.started = true
	go s.run(ctx)

	return nil
}

// Stop stops the sync and waits for its goroutine to exit.
//
// Safe to call multiple times - subsequent calls return immediately.
//
// Returns:
//   - error: Error if Stop is called before Start, nil otherwise
func (s *Sync) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrSyncNotStarted
	}
	if s.stopped {
		s.mu.Unlock()
		return nil // Already stopped - idempotent
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh

	return nil
}

// run owns the seed/watch cycle and the known-process set.
func (s *Sync) run(ctx context.Context) {
	defer close(s.doneCh)

	known := make(map[string]struct{})

	var delay time.Duration
	for {
		rev, err := s.seed(ctx, known)
		if err != nil {
			delay = nextDelay(delay)
			s.logger.Warn("registry seed failed", "prefix", s.prefix, "retry_in", delay, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-time.After(delay):
			}

			continue
		}
		delay = 0

		if !s.watch(ctx, rev, known) {
			return
		}
		// Watch ended; loop re-seeds to cover the gap
	}
}

// seed reads the full prefix and reconciles the tracker against it.
//
// Returns the read's revision so the follow-up watch starts exactly after
// the state it observed.
func (s *Sync) seed(ctx context.Context, known map[string]struct{}) (int64, error) {
	seedCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := s.cli.Get(seedCtx, s.prefix, clientv3.WithPrefix())
	if err != nil {
		return 0, fmt.Errorf("failed to read registry prefix: %w", err)
	}

	present := make(map[string]struct{}, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		id, ok := processIDFromKey(s.prefix, string(kv.Key))
		if !ok {
			continue
		}
		present[id] = struct{}{}
		if _, tracked := known[id]; !tracked {
			s.track(known, id)
		}
	}

	// Processes deregistered while we were not watching
	for id := range known {
		if _, ok := present[id]; !ok {
			s.forget(known, id)
		}
	}

	s.logger.Info("registry seeded", "prefix", s.prefix, "processes", len(present), "revision", resp.Header.Revision)

	return resp.Header.Revision, nil
}

// watch applies registry events from rev+1 onward.
//
// Returns false when the sync is stopping, true when the watch ended and
// the caller should re-seed.
func (s *Sync) watch(ctx context.Context, rev int64, known map[string]struct{}) bool {
	wch := s.cli.Watch(ctx, s.prefix, clientv3.WithPrefix(), clientv3.WithRev(rev+1))

	for {
		select {
		case <-ctx.Done():
			return false
		case <-s.stopCh:
			return false
		case resp, ok := <-wch:
			if !ok {
				s.logger.Warn("registry watch closed, re-seeding", "prefix", s.prefix)
				return true
			}
			if err := resp.Err(); err != nil {
				s.logger.Warn("registry watch error, re-seeding", "prefix", s.prefix, "error", err)
				return true
			}
			for _, ev := range resp.Events {
				s.applyEvent(known, ev)
			}
		}
	}
}

// applyEvent maps one registry event onto the tracker.
func (s *Sync) applyEvent(known map[string]struct{}, ev *clientv3.Event) {
	id, ok := processIDFromKey(s.prefix, string(ev.Kv.Key))
	if !ok {
		s.logger.Debug("ignoring key outside registry prefix", "key", string(ev.Kv.Key))
		return
	}

	switch ev.Type {
	case clientv3.EventTypePut:
		s.track(known, id)
	case clientv3.EventTypeDelete:
		s.forget(known, id)
	}
}

// track adds a process, tolerating already-tracked rejections.
func (s *Sync) track(known map[string]struct{}, id string) {
	if err := s.tracker.Track(id); err != nil && !errors.Is(err, types.ErrAlreadyTracked) {
		s.logger.Warn("failed to track discovered process", "process_id", id, "error", err)
		return
	}
	known[id] = struct{}{}
	s.logger.Info("process discovered", "process_id", id)
}

// forget removes a process, tolerating unknown-process rejections.
func (s *Sync) forget(known map[string]struct{}, id string) {
	if err := s.tracker.Forget(id); err != nil && !errors.Is(err, types.ErrUnknownProcess) {
		s.logger.Warn("failed to forget deregistered process", "process_id", id, "error", err)
		return
	}
	delete(known, id)
	s.logger.Info("process deregistered", "process_id", id)
}

// keyPrefix normalizes a registry prefix to end with exactly one "/".
func keyPrefix(prefix string) string {
	return strings.TrimSuffix(prefix, "/") + "/"
}

// processIDFromKey extracts the process ID from a registry key.
//
// prefix must already be normalized by keyPrefix. Keys with empty IDs or
// outside the prefix are rejected.
func processIDFromKey(prefix, key string) (string, bool) {
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	id := key[len(prefix):]
	if id == "" {
		return "", false
	}

	return id, true
}
