package kvutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	pmtest "github.com/gitxandert/process-monitor/testing"
)

// TestEnsureKVBucketWithRetry tests the retry utility function.
func TestEnsureKVBucketWithRetry(t *testing.T) {
	_, nc := pmtest.StartEmbeddedNATS(t)

	ctx := t.Context()
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	t.Run("successful creation on first try", func(t *testing.T) {
		cfg := jetstream.KeyValueConfig{
			Bucket:  "test-retry-bucket-1",
			History: 1,
			TTL:     5 * time.Second,
		}

		kv, err := EnsureKVBucketWithRetry(ctx, js, cfg, 3)
		require.NoError(t, err)
		require.NotNil(t, kv)
	})

	t.Run("bucket exists - should open it", func(t *testing.T) {
		bucketName := "test-retry-bucket-2"

		// Create bucket first
		cfg := jetstream.KeyValueConfig{
			Bucket:  bucketName,
			History: 1,
			TTL:     5 * time.Second,
		}

		kv1, err := js.CreateKeyValue(ctx, cfg)
		require.NoError(t, err)
		require.NotNil(t, kv1)

		// Try to create again - should open existing
		kv2, err := EnsureKVBucketWithRetry(ctx, js, cfg, 3)
		require.NoError(t, err)
		require.NotNil(t, kv2)
	})

	t.Run("concurrent creates with retry - 10 workers", func(t *testing.T) {
		bucketName := "test-retry-bucket-3"
		numWorkers := 10

		var wg sync.WaitGroup
		errs := make(chan error, numWorkers)
		kvs := make([]jetstream.KeyValue, numWorkers)

		cfg := jetstream.KeyValueConfig{
			Bucket:  bucketName,
			History: 1,
			TTL:     5 * time.Second,
		}

		for i := 0; i < numWorkers; i++ {
			wg.Add(1) //nolint:revive // Standard pattern for concurrent operations
			go func(idx int) {
				defer wg.Done()

				kv, err := EnsureKVBucketWithRetry(ctx, js, cfg, 5)
				if err != nil {
					errs <- err
					return
				}

				kvs[idx] = kv
			}(i)
		}

		wg.Wait()
		close(errs)

		// Check results
		var errList []error
		for err := range errs {
			errList = append(errList, err)
		}

		require.Empty(t, errList, "All workers should succeed with retry")

		// Verify all got valid KV instances
		for i, kv := range kvs {
			require.NotNil(t, kv, "Worker %d should have valid KV instance", i)
		}
	})

	t.Run("context timeout - should fail gracefully", func(t *testing.T) {
		shortCtx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
		defer cancel()

		// Force timeout
		time.Sleep(1 * time.Millisecond)

		cfg := jetstream.KeyValueConfig{
			Bucket:  "test-retry-bucket-4",
			History: 1,
		}

		_, err := EnsureKVBucketWithRetry(shortCtx, js, cfg, 3)
		require.Error(t, err)
		require.Contains(t, err.Error(), "context")
	})
}
