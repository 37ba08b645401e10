package election

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/gitxandert/process-monitor/internal/kvutil"
)

// EnsureBucket creates or opens the election KV bucket.
//
// The TTL bounds how long a crashed leader blocks failover, so it is
// required here; use 10-30s in production. History is 1 since only the
// latest claim matters.
//
// Safe to call from every monitor replica concurrently.
func EnsureBucket(ctx context.Context, js jetstream.JetStream, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: election bucket TTL must be positive", ErrInvalidLease)
	}

	return kvutil.EnsureKVBucketWithRetry(ctx, js, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "monitor leader election",
		History:     1,
		TTL:         ttl,
	}, 3)
}
