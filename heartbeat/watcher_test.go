package heartbeat

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pmtest "github.com/gitxandert/process-monitor/testing"
	"github.com/gitxandert/process-monitor/types"
)

// recordingSink counts observations per process for assertions.
type recordingSink struct {
	mu  sync.Mutex
	ids []string
}

func (s *recordingSink) Observe(processID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ids = append(s.ids, processID)
}

func (s *recordingSink) count(processID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, id := range s.ids {
		if id == processID {
			n++
		}
	}

	return n
}

func TestWatcher_Lifecycle(t *testing.T) {
	newTestWatcher := func(t *testing.T, bucket string) (*Watcher, *recordingSink) {
		t.Helper()
		_, nc := pmtest.StartEmbeddedNATS(t)
		kv := pmtest.CreateJetStreamKV(t, nc, bucket)
		sink := &recordingSink{}

		return NewWatcher(kv, "heartbeat", 600*time.Millisecond, sink, pmtest.NewTestLogger(t)), sink
	}

	t.Run("start and stop succeed", func(t *testing.T) {
		w, _ := newTestWatcher(t, "test-watch-lc-1")

		require.NoError(t, w.Start(t.Context()))
		require.NoError(t, w.Stop())
	})

	t.Run("double start returns error", func(t *testing.T) {
		w, _ := newTestWatcher(t, "test-watch-lc-2")

		require.NoError(t, w.Start(t.Context()))
		require.ErrorIs(t, w.Start(t.Context()), types.ErrWatcherAlreadyStarted)
		require.NoError(t, w.Stop())
	})

	t.Run("stop before start returns error", func(t *testing.T) {
		w, _ := newTestWatcher(t, "test-watch-lc-3")

		require.ErrorIs(t, w.Stop(), types.ErrWatcherNotStarted)
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		w, _ := newTestWatcher(t, "test-watch-lc-4")

		require.NoError(t, w.Start(t.Context()))
		require.NoError(t, w.Stop())
		require.NoError(t, w.Stop())
	})

	t.Run("cannot restart after stop", func(t *testing.T) {
		w, _ := newTestWatcher(t, "test-watch-lc-5")

		require.NoError(t, w.Start(t.Context()))
		require.NoError(t, w.Stop())
		require.ErrorIs(t, w.Start(t.Context()), types.ErrWatcherAlreadyStopped)
	})
}

func TestWatcher_ObservesHeartbeats(t *testing.T) {
	t.Run("delivers evidence for published heartbeats", func(t *testing.T) {
		ctx := t.Context()

		_, nc := pmtest.StartEmbeddedNATS(t)
		kv := pmtest.CreateJetStreamKV(t, nc, "test-watch-observe")
		sink := &recordingSink{}

		w := NewWatcher(kv, "heartbeat", 600*time.Millisecond, sink, pmtest.NewTestLogger(t))
		require.NoError(t, w.Start(ctx))
		defer func() { _ = w.Stop() }()

		msg := &Message{ProcessID: "payments-1", SentAt: time.Now().UnixNano(), Seq: 1}
		data, err := msg.Encode()
		require.NoError(t, err)

		_, err = kv.Put(ctx, "heartbeat.payments-1", data)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return sink.count("payments-1") >= 1
		}, 2*time.Second, 10*time.Millisecond, "expected first heartbeat to be observed")

		// A refreshed entry is new evidence
		msg.Seq = 2
		data, err = msg.Encode()
		require.NoError(t, err)
		_, err = kv.Put(ctx, "heartbeat.payments-1", data)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return sink.count("payments-1") >= 2
		}, 2*time.Second, 10*time.Millisecond, "expected refreshed heartbeat to be observed")
	})

	t.Run("observes entries that existed before start", func(t *testing.T) {
		ctx := t.Context()

		_, nc := pmtest.StartEmbeddedNATS(t)
		kv := pmtest.CreateJetStreamKV(t, nc, "test-watch-replay")
		sink := &recordingSink{}

		msg := &Message{ProcessID: "payments-1", SentAt: time.Now().UnixNano(), Seq: 1}
		data, err := msg.Encode()
		require.NoError(t, err)
		_, err = kv.Put(ctx, "heartbeat.payments-1", data)
		require.NoError(t, err)

		w := NewWatcher(kv, "heartbeat", 600*time.Millisecond, sink, pmtest.NewTestLogger(t))
		require.NoError(t, w.Start(ctx))
		defer func() { _ = w.Stop() }()

		require.Eventually(t, func() bool {
			return sink.count("payments-1") >= 1
		}, 2*time.Second, 10*time.Millisecond, "expected pre-existing heartbeat to be observed")
	})

	t.Run("malformed payload is still evidence", func(t *testing.T) {
		ctx := t.Context()

		_, nc := pmtest.StartEmbeddedNATS(t)
		kv := pmtest.CreateJetStreamKV(t, nc, "test-watch-malformed")
		sink := &recordingSink{}

		w := NewWatcher(kv, "heartbeat", 600*time.Millisecond, sink, pmtest.NewTestLogger(t))
		require.NoError(t, w.Start(ctx))
		defer func() { _ = w.Stop() }()

		_, err := kv.Put(ctx, "heartbeat.payments-1", []byte("not json"))
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return sink.count("payments-1") >= 1
		}, 2*time.Second, 10*time.Millisecond, "key write should count even with a bad payload")
	})
}

func TestWatcher_DeleteIsNotEvidence(t *testing.T) {
	t.Run("deletion produces no observation and a rewrite is seen again", func(t *testing.T) {
		ctx := t.Context()

		_, nc := pmtest.StartEmbeddedNATS(t)
		kv := pmtest.CreateJetStreamKV(t, nc, "test-watch-delete")
		sink := &recordingSink{}

		w := NewWatcher(kv, "heartbeat", 600*time.Millisecond, sink, pmtest.NewTestLogger(t))
		require.NoError(t, w.Start(ctx))
		defer func() { _ = w.Stop() }()

		msg := &Message{ProcessID: "payments-1", SentAt: time.Now().UnixNano(), Seq: 1}
		data, err := msg.Encode()
		require.NoError(t, err)
		_, err = kv.Put(ctx, "heartbeat.payments-1", data)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return sink.count("payments-1") == 1
		}, 2*time.Second, 10*time.Millisecond)

		require.NoError(t, kv.Delete(ctx, "heartbeat.payments-1"))

		// Long enough for the watch event and a fallback scan to run
		time.Sleep(700 * time.Millisecond)
		require.Equal(t, 1, sink.count("payments-1"), "delete must not count as evidence")

		// The process coming back is fresh evidence
		msg.Seq = 2
		data, err = msg.Encode()
		require.NoError(t, err)
		_, err = kv.Put(ctx, "heartbeat.payments-1", data)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return sink.count("payments-1") == 2
		}, 2*time.Second, 10*time.Millisecond, "expected restart heartbeat to be observed")
	})
}

func TestWatcher_Scan(t *testing.T) {
	t.Run("scan reports revision advances exactly once", func(t *testing.T) {
		ctx := t.Context()

		_, nc := pmtest.StartEmbeddedNATS(t)
		kv := pmtest.CreateJetStreamKV(t, nc, "test-watch-scan")
		sink := &recordingSink{}

		// Drive scan directly; the watcher is never started
		w := NewWatcher(kv, "heartbeat", 600*time.Millisecond, sink, pmtest.NewTestLogger(t))
		revisions := make(map[string]uint64)

		for _, id := range []string{"payments-1", "payments-2"} {
			msg := &Message{ProcessID: id, SentAt: time.Now().UnixNano(), Seq: 1}
			data, err := msg.Encode()
			require.NoError(t, err)
			_, err = kv.Put(ctx, "heartbeat."+id, data)
			require.NoError(t, err)
		}

		w.scan(ctx, revisions)
		require.Equal(t, 1, sink.count("payments-1"))
		require.Equal(t, 1, sink.count("payments-2"))

		// Unchanged revisions are not re-reported
		w.scan(ctx, revisions)
		require.Equal(t, 1, sink.count("payments-1"))
		require.Equal(t, 1, sink.count("payments-2"))

		// A refreshed entry is reported once more
		msg := &Message{ProcessID: "payments-1", SentAt: time.Now().UnixNano(), Seq: 2}
		data, err := msg.Encode()
		require.NoError(t, err)
		_, err = kv.Put(ctx, "heartbeat.payments-1", data)
		require.NoError(t, err)

		w.scan(ctx, revisions)
		require.Equal(t, 2, sink.count("payments-1"))
		require.Equal(t, 1, sink.count("payments-2"))
	})

	t.Run("scan prunes state for removed keys", func(t *testing.T) {
		ctx := t.Context()

		_, nc := pmtest.StartEmbeddedNATS(t)
		kv := pmtest.CreateJetStreamKV(t, nc, "test-watch-scan-prune")
		sink := &recordingSink{}

		w := NewWatcher(kv, "heartbeat", 600*time.Millisecond, sink, pmtest.NewTestLogger(t))
		revisions := make(map[string]uint64)

		msg := &Message{ProcessID: "payments-1", SentAt: time.Now().UnixNano(), Seq: 1}
		data, err := msg.Encode()
		require.NoError(t, err)
		_, err = kv.Put(ctx, "heartbeat.payments-1", data)
		require.NoError(t, err)

		w.scan(ctx, revisions)
		require.Len(t, revisions, 1)

		require.NoError(t, kv.Purge(ctx, "heartbeat.payments-1"))

		w.scan(ctx, revisions)
		require.Empty(t, revisions)
	})
}

func TestWatcher_ProcessIDFromKey(t *testing.T) {
	w := &Watcher{prefix: "heartbeat"}

	tests := []struct {
		key    string
		wantID string
		wantOK bool
	}{
		{"heartbeat.payments-1", "payments-1", true},
		{"heartbeat.a", "a", true},
		{"heartbeat.", "", false},
		{"heartbeat", "", false},
		{"heartbeats.payments-1", "", false},
		{"other.payments-1", "", false},
	}
	for _, tt := range tests {
		id, ok := w.processIDFromKey(tt.key)
		require.Equal(t, tt.wantOK, ok, "key %q", tt.key)
		require.Equal(t, tt.wantID, id, "key %q", tt.key)
	}
}
