// Package election provides NATS KV-based leader election for monitor
// instances.
//
// Leader election ensures exactly one monitor instance acts on liveness
// verdicts (fires hooks, publishes rosters) while standby instances keep
// evaluating evidence so failover is immediate.
//
// # NATS KV Election
//
// The implementation uses atomic KV operations:
//   - Create acquires leadership if no leader key exists
//   - Update with revision renews leadership while the lease is held
//   - Delete releases leadership for immediate failover
//   - TTL expiry on the bucket elects a new leader after a crash
//
// # Usage
//
//	kv, _ := election.EnsureBucket(ctx, js, cfg.KVBuckets.ElectionBucket, cfg.ElectionTTL)
//	agent := election.NewKVElection(kv, "leader")
//
//	monitor, _ := procmon.NewMonitor(cfg, procmon.WithElectionAgent(agent))
//
// The Monitor drives the request/renew/release cycle itself; use the agent
// directly only when embedding elsewhere. The recommended renewal interval
// is TTL/3, which is what the Monitor uses.
//
// # Concurrency Safety
//
// KVElection methods are safe for concurrent use, but each instance should
// own exactly one agent; two agents sharing an instance ID defeat the
// election.
//
// # Error Handling
//
// Common errors:
//   - ErrNotLeader: Operation requires leadership
//   - ErrLeadershipLost: Leadership was lost (another instance took over)
//   - ErrInvalidLease: Invalid lease duration (must be > 0)
package election
