// Package roster publishes versioned liveness snapshots to NATS KV.
//
// The leading monitor instance periodically writes a Roster, the full list
// of tracked processes with their current liveness verdicts, under a single
// well-known key. Dashboards, CLIs, and services that only need "who is
// alive right now" read the roster instead of integrating the monitor.
//
// Publishes are deduplicated by content digest: a steady system publishes
// nothing. Versions are monotonic across leader changes because a new
// publisher adopts the version found in the bucket on startup.
//
// Publishing side (driven by the leader):
//
//	kv, _ := roster.EnsureBucket(ctx, js, cfg.KVBuckets.RosterBucket, cfg.KVBuckets.RosterTTL)
//	pub := roster.NewPublisher(kv, "roster", monitor, cfg.RosterPublishInterval, logger)
//	_ = pub.Start(ctx)
//	defer pub.Stop()
//
// Reading side (any process):
//
//	r, err := roster.Fetch(ctx, kv, "roster")
//	if errors.Is(err, types.ErrNoRoster) {
//	    // nothing published yet
//	}
package roster
