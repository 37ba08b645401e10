package roster

import (
	"context"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/gitxandert/process-monitor/internal/kvutil"
)

// EnsureBucket creates or opens the roster KV bucket.
//
// ttl <= 0 (the default) keeps the last roster available indefinitely,
// which preserves version continuity across leader changes. A positive ttl
// expires stale rosters when no leader has published for that long; the
// next leader then restarts from version 0.
func EnsureBucket(ctx context.Context, js jetstream.JetStream, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	cfg := jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "liveness roster snapshots",
		History:     1,
	}
	if ttl > 0 {
		cfg.TTL = ttl
	}

	return kvutil.EnsureKVBucketWithRetry(ctx, js, cfg, 3)
}
