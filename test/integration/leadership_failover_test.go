//go:build integration
// +build integration

package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	procmon "github.com/gitxandert/process-monitor"
	"github.com/gitxandert/process-monitor/election"
	"github.com/gitxandert/process-monitor/heartbeat"
	"github.com/gitxandert/process-monitor/roster"
	pmtest "github.com/gitxandert/process-monitor/testing"
)

// replica bundles one monitor instance with its transport components the
// way a deployment would run them.
type replica struct {
	monitor   *procmon.Monitor
	watcher   *heartbeat.Watcher
	rosterPub *roster.Publisher
}

func startReplica(
	t *testing.T,
	ctx context.Context,
	cfg procmon.Config,
	instanceID string,
	hbKV, electionKV, rosterKV jetstream.KeyValue,
) *replica {
	t.Helper()

	cfg.InstanceID = instanceID
	logger := pmtest.NewTestLogger(t)

	agent := election.NewKVElection(electionKV, "leader")
	monitor, err := procmon.NewMonitor(cfg, procmon.WithElectionAgent(agent), procmon.WithLogger(logger))
	require.NoError(t, err)
	require.NoError(t, monitor.Start(ctx))

	watcher := heartbeat.NewWatcher(hbKV, "heartbeat", cfg.HeartbeatTTL, monitor, logger)
	require.NoError(t, watcher.Start(ctx))

	rosterPub := roster.NewPublisher(rosterKV, "roster", monitor, cfg.RosterPublishInterval, logger)
	require.NoError(t, rosterPub.Start(ctx))

	return &replica{monitor: monitor, watcher: watcher, rosterPub: rosterPub}
}

func (r *replica) stop(t *testing.T) {
	t.Helper()

	_ = r.rosterPub.Stop()
	_ = r.watcher.Stop()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = r.monitor.Stop(stopCtx)
}

// TestMonitor_LeadershipFailover runs two replicas against a shared election
// bucket and verifies roster duties move when the leader shuts down.
func TestMonitor_LeadershipFailover(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	srv, nc := pmtest.StartEmbeddedNATS(t)
	defer srv.Shutdown()
	defer nc.Close()

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 60*time.Second)
	defer cancel()

	cfg := procmon.TestConfig()

	hbKV, err := heartbeat.EnsureBucket(ctx, js, cfg.KVBuckets.HeartbeatBucket, cfg.HeartbeatTTL)
	require.NoError(t, err)

	electionKV, err := election.EnsureBucket(ctx, js, cfg.KVBuckets.ElectionBucket, cfg.ElectionTTL)
	require.NoError(t, err)

	rosterKV, err := roster.EnsureBucket(ctx, js, cfg.KVBuckets.RosterBucket, cfg.KVBuckets.RosterTTL)
	require.NoError(t, err)

	// One heartbeating process gives the rosters content
	pub := heartbeat.NewPublisher(hbKV, "heartbeat", 100*time.Millisecond)
	pub.SetProcessID("payments-1")
	require.NoError(t, pub.Start(ctx))
	defer func() { _ = pub.Stop() }()

	replicaA := startReplica(t, ctx, cfg, "monitor-a", hbKV, electionKV, rosterKV)
	replicaB := startReplica(t, ctx, cfg, "monitor-b", hbKV, electionKV, rosterKV)
	defer replicaB.stop(t)

	// The first replica wins the election, the second stands by
	require.True(t, replicaA.monitor.IsLeader())
	require.False(t, replicaB.monitor.IsLeader())

	leaderID, err := election.Leader(ctx, electionKV, "leader")
	require.NoError(t, err)
	require.Equal(t, "monitor-a", leaderID)

	// Only the leader publishes rosters
	var firstVersion int64
	require.Eventually(t, func() bool {
		r, err := roster.Fetch(ctx, rosterKV, "roster")
		if err != nil {
			return false
		}
		firstVersion = r.Version

		return r.PublishedBy == "monitor-a" && r.Version >= 1
	}, 5*time.Second, 50*time.Millisecond, "expected roster from the leader")

	// Graceful leader shutdown releases the claim; the standby takes over
	// on its next election tick
	replicaA.stop(t)

	require.Eventually(t, func() bool {
		return replicaB.monitor.IsLeader()
	}, 2*cfg.ElectionTTL, 50*time.Millisecond, "expected standby to take over leadership")

	leaderID, err = election.Leader(ctx, electionKV, "leader")
	require.NoError(t, err)
	require.Equal(t, "monitor-b", leaderID)

	// The new leader continues the roster version sequence
	require.Eventually(t, func() bool {
		r, err := roster.Fetch(ctx, rosterKV, "roster")

		return err == nil && r.PublishedBy == "monitor-b" && r.Version > firstVersion
	}, 5*time.Second, 50*time.Millisecond, "expected roster takeover with a higher version")

	// Both replicas watched the same heartbeats all along
	statusB, err := replicaB.monitor.Status("payments-1")
	require.NoError(t, err)
	require.Equal(t, "payments-1", statusB.ProcessID)
	require.True(t, statusB.HasEvidence)
}
