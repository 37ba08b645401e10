package election

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/gitxandert/process-monitor/types"
)

// Common errors for election operations.
var (
	ErrNotLeader      = errors.New("not the leader")
	ErrLeadershipLost = errors.New("leadership was lost")
	ErrInvalidLease   = errors.New("invalid lease duration")
)

// KVElection implements leader election using a NATS KV bucket.
//
// Uses atomic KV operations for leader election:
//   - Create (atomic): Acquire leadership if the key doesn't exist
//   - Update (with revision): Renew leadership while holding the lease
//   - Delete: Release leadership
//
// The leader key holds the leading instance's claim and is automatically
// deleted when the bucket TTL expires, allowing automatic failover.
//
// All fields are protected by mu for thread-safe concurrent access.
type KVElection struct {
	kv         jetstream.KeyValue
	key        string
	mu         sync.RWMutex
	instanceID string
	revision   uint64
	isLeader   bool
}

// Compile-time assertion that KVElection implements ElectionAgent.
var _ types.ElectionAgent = (*KVElection)(nil)

// NewKVElection creates a new NATS KV-based election agent.
//
// The KV bucket should be configured with a short TTL (e.g., 10-30s)
// for automatic failover when the leader crashes; EnsureBucket sets
// this up.
//
// Parameters:
//   - kv: JetStream KV bucket for election coordination
//   - key: Key name for the leadership claim (e.g., "leader")
//
// Returns:
//   - *KVElection: New election agent instance
//
// Example:
//
//	kv, _ := election.EnsureBucket(ctx, js, "procmon-election", 15*time.Second)
//	agent := election.NewKVElection(kv, "leader")
func NewKVElection(kv jetstream.KeyValue, key string) *KVElection {
	return &KVElection{
		kv:  kv,
		key: key,
	}
}

// RequestLeadership attempts to acquire or maintain leadership.
//
// Uses atomic Create for initial acquisition and Update for renewal.
// The lease duration is enforced by the KV bucket's TTL configuration.
//
// Parameters:
//   - ctx: Context for timeout
//   - instanceID: The monitor instance requesting leadership
//   - leaseDuration: Lease duration in seconds (must be > 0; the actual
//     expiry is the bucket TTL)
//
// Returns:
//   - bool: true if leadership acquired/held, false otherwise
//   - error: Election error or context cancellation
func (e *KVElection) RequestLeadership(ctx context.Context, instanceID string, leaseDuration int64) (bool, error) {
	if leaseDuration <= 0 {
		return false, ErrInvalidLease
	}

	isLeader, currentID, _ := e.leaderState()

	// Already leading with this instance ID: renew instead of re-acquiring
	if isLeader && currentID == instanceID {
		err := e.RenewLeadership(ctx)
		if err == nil {
			return true, nil
		}
		// Leadership lost, fall through and try acquiring again
		e.clearLeadership()
	}

	revision, err := e.kv.Create(ctx, e.key, encodeClaim(instanceID))
	if err != nil {
		// Key exists - someone else is leading
		if errors.Is(err, jetstream.ErrKeyExists) {
			return false, nil
		}

		return false, fmt.Errorf("failed to create leader key: %w", err)
	}

	e.setLeaderState(true, instanceID, revision)

	return true, nil
}

// RenewLeadership renews the current leadership lease.
//
// Uses Update with revision check to ensure the lease is still held.
// If another instance claimed leadership, this fails and clears the
// local leader state.
//
// Parameters:
//   - ctx: Context for timeout
//
// Returns:
//   - error: ErrNotLeader if not the leader, ErrLeadershipLost if lost,
//     nil on success
func (e *KVElection) RenewLeadership(ctx context.Context) error {
	isLeader, instanceID, revision := e.leaderState()

	if !isLeader {
		return ErrNotLeader
	}

	newRevision, err := e.kv.Update(ctx, e.key, encodeClaim(instanceID), revision)
	if err != nil {
		e.clearLeadership()

		return fmt.Errorf("%w: %w", ErrLeadershipLost, err)
	}

	e.mu.Lock()
	e.revision = newRevision
	e.mu.Unlock()

	return nil
}

// ReleaseLeadership voluntarily releases leadership.
//
// Deletes the leader key to allow immediate failover to another instance.
//
// Parameters:
//   - ctx: Context for timeout
//
// Returns:
//   - error: ErrNotLeader if not leading, release error otherwise
func (e *KVElection) ReleaseLeadership(ctx context.Context) error {
	isLeader, _, _ := e.leaderState()

	if !isLeader {
		return ErrNotLeader
	}

	err := e.kv.Delete(ctx, e.key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete leader key: %w", err)
	}

	e.setLeaderState(false, "", 0)

	return nil
}

// IsLeader checks if this instance is currently the leader.
//
// Verifies leadership against the KV bucket: the key must still exist at
// the revision this instance wrote.
//
// Parameters:
//   - ctx: Context for timeout
//
// Returns:
//   - bool: true if this instance is the leader
//   - error: Check error or context cancellation
func (e *KVElection) IsLeader(ctx context.Context) (bool, error) {
	isLeader, _, revision := e.leaderState()

	if !isLeader {
		return false, nil
	}

	entry, err := e.kv.Get(ctx, e.key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			e.clearLeadership()

			return false, nil
		}

		return false, fmt.Errorf("failed to get leader key: %w", err)
	}

	// Someone else holds the key if the revision moved
	if entry.Revision() != revision {
		e.clearLeadership()

		return false, nil
	}

	return true, nil
}

// InstanceID returns the instance ID of the local leadership claim.
//
// Returns:
//   - string: Instance ID if this agent holds leadership, empty otherwise
func (e *KVElection) InstanceID() string {
	_, instanceID, _ := e.leaderState()
	return instanceID
}

// Leader reports the instance currently holding the leadership key.
//
// Works from any instance, leader or standby; useful for diagnostics and
// CLI tooling. Returns an empty string without error when no leader is
// currently elected.
//
// Parameters:
//   - ctx: Context for timeout
//   - kv: JetStream KV bucket used for the election
//   - key: Key name for the leadership claim
//
// Returns:
//   - string: The leading instance's ID, or "" if no leader
//   - error: KV access error
func Leader(ctx context.Context, kv jetstream.KeyValue, key string) (string, error) {
	entry, err := kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return "", nil
		}

		return "", fmt.Errorf("failed to get leader key: %w", err)
	}

	instanceID, _, err := parseClaim(entry.Value())
	if err != nil {
		return "", err
	}

	return instanceID, nil
}

// encodeClaim builds the leader key value: "instanceID:unixSeconds".
func encodeClaim(instanceID string) []byte {
	return []byte(fmt.Sprintf("%s:%d", instanceID, time.Now().Unix()))
}

// parseClaim splits a leader key value into instance ID and claim time.
func parseClaim(value []byte) (string, int64, error) {
	instanceID, ts, ok := strings.Cut(string(value), ":")
	if !ok || instanceID == "" {
		return "", 0, fmt.Errorf("malformed leadership claim %q", value)
	}

	claimedAt, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed leadership claim %q: %w", value, err)
	}

	return instanceID, claimedAt, nil
}

// leaderState returns the current leadership state (thread-safe).
func (e *KVElection) leaderState() (isLeader bool, instanceID string, revision uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isLeader, e.instanceID, e.revision
}

// setLeaderState updates the leadership state (thread-safe).
func (e *KVElection) setLeaderState(isLeader bool, instanceID string, revision uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.isLeader = isLeader
	e.instanceID = instanceID
	e.revision = revision
}

// clearLeadership clears the leadership flag (thread-safe).
func (e *KVElection) clearLeadership() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.isLeader = false
}
