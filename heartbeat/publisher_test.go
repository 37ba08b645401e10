package heartbeat

import (
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	pmtest "github.com/gitxandert/process-monitor/testing"
)

func TestPublisher_SetProcessID(t *testing.T) {
	t.Run("sets process ID successfully", func(t *testing.T) {
		_, nc := pmtest.StartEmbeddedNATS(t)
		kv := pmtest.CreateJetStreamKV(t, nc, "test-hb-set-id")

		pub := NewPublisher(kv, "heartbeat", 2*time.Second)
		pub.SetProcessID("payments-1")

		require.Equal(t, "payments-1", pub.ProcessID())
	})
}

func TestPublisher_Start(t *testing.T) {
	t.Run("starts successfully and publishes first heartbeat immediately", func(t *testing.T) {
		ctx := t.Context()

		_, nc := pmtest.StartEmbeddedNATS(t)
		kv := pmtest.CreateJetStreamKV(t, nc, "test-hb-start-1")

		pub := NewPublisher(kv, "heartbeat", 100*time.Millisecond)
		pub.SetProcessID("payments-1")

		err := pub.Start(ctx)
		require.NoError(t, err)
		require.True(t, pub.IsStarted())

		// First heartbeat is published before Start returns
		entry, err := kv.Get(ctx, "heartbeat.payments-1")
		require.NoError(t, err)

		msg, err := DecodeMessage(entry.Value())
		require.NoError(t, err)
		require.Equal(t, "payments-1", msg.ProcessID)
		require.Equal(t, uint64(1), msg.Seq)
		require.Positive(t, msg.SentAt)

		err = pub.Stop()
		require.NoError(t, err)
	})

	t.Run("returns error if process ID not set", func(t *testing.T) {
		ctx := t.Context()

		_, nc := pmtest.StartEmbeddedNATS(t)
		kv := pmtest.CreateJetStreamKV(t, nc, "test-hb-start-2")

		pub := NewPublisher(kv, "heartbeat", 2*time.Second)

		err := pub.Start(ctx)
		require.ErrorIs(t, err, ErrNoProcessID)
		require.False(t, pub.IsStarted())
	})

	t.Run("returns error if already started", func(t *testing.T) {
		ctx := t.Context()

		_, nc := pmtest.StartEmbeddedNATS(t)
		kv := pmtest.CreateJetStreamKV(t, nc, "test-hb-start-3")

		pub := NewPublisher(kv, "heartbeat", 2*time.Second)
		pub.SetProcessID("payments-1")

		err := pub.Start(ctx)
		require.NoError(t, err)

		err = pub.Start(ctx)
		require.ErrorIs(t, err, ErrAlreadyStarted)

		err = pub.Stop()
		require.NoError(t, err)
	})

	t.Run("carries metadata in the payload", func(t *testing.T) {
		ctx := t.Context()

		_, nc := pmtest.StartEmbeddedNATS(t)
		kv := pmtest.CreateJetStreamKV(t, nc, "test-hb-start-4")

		pub := NewPublisher(kv, "heartbeat", 2*time.Second)
		pub.SetProcessID("payments-1")
		pub.SetMeta(map[string]string{"host": "node-3"})

		err := pub.Start(ctx)
		require.NoError(t, err)
		defer func() { _ = pub.Stop() }()

		entry, err := kv.Get(ctx, "heartbeat.payments-1")
		require.NoError(t, err)

		msg, err := DecodeMessage(entry.Value())
		require.NoError(t, err)
		require.Equal(t, map[string]string{"host": "node-3"}, msg.Meta)
	})
}

func TestPublisher_Stop(t *testing.T) {
	t.Run("stops and deletes the heartbeat entry", func(t *testing.T) {
		ctx := t.Context()

		_, nc := pmtest.StartEmbeddedNATS(t)
		kv := pmtest.CreateJetStreamKV(t, nc, "test-hb-stop-1")

		pub := NewPublisher(kv, "heartbeat", 100*time.Millisecond)
		pub.SetProcessID("payments-1")

		err := pub.Start(ctx)
		require.NoError(t, err)

		err = pub.Stop()
		require.NoError(t, err)
		require.False(t, pub.IsStarted())

		// Entry is removed immediately instead of waiting for TTL expiry
		_, err = kv.Get(ctx, "heartbeat.payments-1")
		require.ErrorIs(t, err, jetstream.ErrKeyNotFound)
	})

	t.Run("returns error if not started", func(t *testing.T) {
		_, nc := pmtest.StartEmbeddedNATS(t)
		kv := pmtest.CreateJetStreamKV(t, nc, "test-hb-stop-2")

		pub := NewPublisher(kv, "heartbeat", 2*time.Second)

		err := pub.Stop()
		require.ErrorIs(t, err, ErrNotStarted)
	})

	t.Run("publisher can be restarted and sequence carries over", func(t *testing.T) {
		ctx := t.Context()

		_, nc := pmtest.StartEmbeddedNATS(t)
		kv := pmtest.CreateJetStreamKV(t, nc, "test-hb-stop-3")

		pub := NewPublisher(kv, "heartbeat", 100*time.Millisecond)
		pub.SetProcessID("payments-1")

		require.NoError(t, pub.Start(ctx))
		firstSeq := pub.Seq()
		require.NoError(t, pub.Stop())

		require.NoError(t, pub.Start(ctx))
		defer func() { _ = pub.Stop() }()

		entry, err := kv.Get(ctx, "heartbeat.payments-1")
		require.NoError(t, err)

		msg, err := DecodeMessage(entry.Value())
		require.NoError(t, err)
		require.Greater(t, msg.Seq, firstSeq)
	})
}

func TestPublisher_PeriodicHeartbeats(t *testing.T) {
	t.Run("publishes heartbeats at regular intervals", func(t *testing.T) {
		ctx := t.Context()

		_, nc := pmtest.StartEmbeddedNATS(t)
		kv := pmtest.CreateJetStreamKV(t, nc, "test-hb-periodic")

		pub := NewPublisher(kv, "heartbeat", 50*time.Millisecond)
		pub.SetProcessID("payments-1")

		err := pub.Start(ctx)
		require.NoError(t, err)
		defer func() { _ = pub.Stop() }()

		// The sequence advances as the loop publishes
		require.Eventually(t, func() bool {
			entry, err := kv.Get(ctx, "heartbeat.payments-1")
			if err != nil {
				return false
			}
			msg, err := DecodeMessage(entry.Value())

			return err == nil && msg.Seq >= 3
		}, 2*time.Second, 20*time.Millisecond, "expected sequence to advance past 3")
	})
}

func TestPublisher_MultipleProcesses(t *testing.T) {
	t.Run("multiple processes publish independently", func(t *testing.T) {
		ctx := t.Context()

		_, nc := pmtest.StartEmbeddedNATS(t)
		kv := pmtest.CreateJetStreamKV(t, nc, "test-hb-multi")

		const count = 3
		pubs := make([]*Publisher, 0, count)
		for i := 0; i < count; i++ {
			pub := NewPublisher(kv, "heartbeat", 100*time.Millisecond)
			pub.SetProcessID(fmt.Sprintf("payments-%d", i))
			require.NoError(t, pub.Start(ctx))
			pubs = append(pubs, pub)
		}
		defer func() {
			for _, pub := range pubs {
				_ = pub.Stop()
			}
		}()

		for i := 0; i < count; i++ {
			key := fmt.Sprintf("heartbeat.payments-%d", i)
			entry, err := kv.Get(ctx, key)
			require.NoError(t, err)

			msg, err := DecodeMessage(entry.Value())
			require.NoError(t, err)
			require.Equal(t, fmt.Sprintf("payments-%d", i), msg.ProcessID)
		}
	})
}
