package heartbeat

import (
	"context"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/gitxandert/process-monitor/internal/kvutil"
)

// EnsureBucket creates or opens the heartbeat KV bucket.
//
// The bucket keeps only the latest heartbeat per process (history 1) and
// expires entries after ttl, so a stopped publisher's key disappears on its
// own. ttl should be at least 2x the publish interval; ttl <= 0 disables
// expiry entirely and scavenging relies on explicit key deletes.
//
// Safe to call from every publisher and monitor replica concurrently; the
// first caller creates the bucket and the rest open it.
func EnsureBucket(ctx context.Context, js jetstream.JetStream, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	cfg := jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "process heartbeat entries",
		History:     1,
	}
	if ttl > 0 {
		cfg.TTL = ttl
	}

	return kvutil.EnsureKVBucketWithRetry(ctx, js, cfg, 3)
}
