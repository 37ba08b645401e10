package roster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pmtest "github.com/gitxandert/process-monitor/testing"
	"github.com/gitxandert/process-monitor/types"
)

func TestRoster_Digest(t *testing.T) {
	base := []types.ProcessStatus{
		{ProcessID: "payments-1", State: types.StateAlive, HasEvidence: true, LastHeartbeat: 100},
		{ProcessID: "payments-2", State: types.StateDead, HasEvidence: true, LastHeartbeat: 50},
		{ProcessID: "search-1", State: types.StateUnknown},
	}

	t.Run("insensitive to process order", func(t *testing.T) {
		a := &Roster{Processes: base}
		b := &Roster{Processes: []types.ProcessStatus{base[2], base[0], base[1]}}

		require.Equal(t, a.Digest(), b.Digest())
	})

	t.Run("insensitive to heartbeat ticks and metadata", func(t *testing.T) {
		a := &Roster{Version: 1, PublishedBy: "monitor-a", Processes: base}

		moved := make([]types.ProcessStatus, len(base))
		copy(moved, base)
		moved[0].LastHeartbeat = 9999

		b := &Roster{Version: 7, PublishedBy: "monitor-b", PublishedAt: time.Now(), Processes: moved}

		require.Equal(t, a.Digest(), b.Digest())
	})

	t.Run("sensitive to state changes", func(t *testing.T) {
		a := &Roster{Processes: base}

		changed := make([]types.ProcessStatus, len(base))
		copy(changed, base)
		changed[1].State = types.StateAlive

		b := &Roster{Processes: changed}

		require.NotEqual(t, a.Digest(), b.Digest())
	})

	t.Run("sensitive to fault flags", func(t *testing.T) {
		a := &Roster{Processes: base}

		changed := make([]types.ProcessStatus, len(base))
		copy(changed, base)
		changed[1].Faulted = true

		b := &Roster{Processes: changed}

		require.NotEqual(t, a.Digest(), b.Digest())
	})

	t.Run("sensitive to the process set", func(t *testing.T) {
		a := &Roster{Processes: base}
		b := &Roster{Processes: base[:2]}

		require.NotEqual(t, a.Digest(), b.Digest())
	})

	t.Run("empty roster has a stable digest", func(t *testing.T) {
		a := &Roster{}
		b := &Roster{Processes: []types.ProcessStatus{}}

		require.Equal(t, a.Digest(), b.Digest())
	})
}

func TestRoster_Counts(t *testing.T) {
	r := &Roster{Processes: []types.ProcessStatus{
		{ProcessID: "a", State: types.StateAlive},
		{ProcessID: "b", State: types.StateAlive},
		{ProcessID: "c", State: types.StateDead},
		{ProcessID: "d", State: types.StateUnknown},
	}}

	unknown, alive, dead := r.Counts()
	require.Equal(t, 1, unknown)
	require.Equal(t, 2, alive)
	require.Equal(t, 1, dead)
}

func TestFetch(t *testing.T) {
	t.Run("returns ErrNoRoster when nothing published", func(t *testing.T) {
		ctx := t.Context()

		_, nc := pmtest.StartEmbeddedNATS(t)
		kv := pmtest.CreateJetStreamKV(t, nc, "test-roster-fetch-1")

		_, err := Fetch(ctx, kv, "roster")
		require.ErrorIs(t, err, types.ErrNoRoster)
	})

	t.Run("returns error for an undecodable roster", func(t *testing.T) {
		ctx := t.Context()

		_, nc := pmtest.StartEmbeddedNATS(t)
		kv := pmtest.CreateJetStreamKV(t, nc, "test-roster-fetch-2")

		_, err := kv.Put(ctx, "roster", []byte("not json"))
		require.NoError(t, err)

		_, err = Fetch(ctx, kv, "roster")
		require.Error(t, err)
		require.NotErrorIs(t, err, types.ErrNoRoster)
	})
}
