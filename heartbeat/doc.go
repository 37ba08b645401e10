// Package heartbeat moves liveness evidence over NATS JetStream KV.
//
// Monitored processes run a Publisher that writes a heartbeat entry under
// their process ID at a fixed interval; the KV bucket's TTL expires entries
// of processes that stop refreshing them. Monitor replicas run a Watcher
// that observes entry updates and feeds them to a Sink (typically a
// *procmon.Monitor).
//
// The transport is deliberately decoupled from the monitor: a Sink is just
// an Observe method, so heartbeats can come from any source.
//
// Example publisher (inside the monitored process):
//
//	kv, _ := heartbeat.EnsureBucket(ctx, js, cfg.KVBuckets.HeartbeatBucket, cfg.HeartbeatTTL)
//	pub := heartbeat.NewPublisher(kv, "heartbeat", cfg.HeartbeatInterval)
//	pub.SetProcessID("payments-1")
//	_ = pub.Start(ctx)
//	defer pub.Stop()
//
// Example watcher (inside the monitor):
//
//	w := heartbeat.NewWatcher(kv, "heartbeat", cfg.HeartbeatTTL, monitor, logger)
//	_ = w.Start(ctx)
//	defer w.Stop()
package heartbeat
