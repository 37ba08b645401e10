package procmon_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	procmon "github.com/gitxandert/process-monitor"
	"github.com/gitxandert/process-monitor/discovery"
	"github.com/gitxandert/process-monitor/heartbeat"
	"github.com/gitxandert/process-monitor/roster"
)

// The monitor plugs directly into the transport packages.
var (
	_ heartbeat.Sink     = (*procmon.Monitor)(nil)
	_ roster.Snapshotter = (*procmon.Monitor)(nil)
	_ discovery.Tracker  = (*procmon.Monitor)(nil)
)

func TestMonitor_ActsAsTracker(t *testing.T) {
	monitor, err := procmon.NewMonitor(procmon.TestConfig())
	require.NoError(t, err)

	// discovery.Sync drives the monitor through this interface
	var tracker discovery.Tracker = monitor

	require.NoError(t, tracker.Track("payments-1"))
	require.ErrorIs(t, tracker.Track("payments-1"), procmon.ErrAlreadyTracked)
	require.Equal(t, []string{"payments-1"}, monitor.Processes())

	require.NoError(t, tracker.Forget("payments-1"))
	require.ErrorIs(t, tracker.Forget("payments-1"), procmon.ErrUnknownProcess)
	require.Empty(t, monitor.Processes())
}

func TestMonitor_ActsAsSink(t *testing.T) {
	monitor, err := procmon.NewMonitor(procmon.TestConfig())
	require.NoError(t, err)

	// heartbeat.Watcher drives the monitor through this interface
	var sink heartbeat.Sink = monitor

	sink.Observe("payments-1")

	status, err := monitor.Status("payments-1")
	require.NoError(t, err)
	require.Equal(t, "payments-1", status.ProcessID)
}

func TestMonitor_ActsAsSnapshotter(t *testing.T) {
	cfg := procmon.TestConfig()
	cfg.InstanceID = "monitor-wiring"

	monitor, err := procmon.NewMonitor(cfg)
	require.NoError(t, err)
	require.NoError(t, monitor.Track("payments-1"))

	// roster.Publisher drives the monitor through this interface
	var source roster.Snapshotter = monitor

	require.True(t, source.IsLeader(), "a monitor without an election agent leads by default")
	require.Equal(t, "monitor-wiring", source.InstanceID())

	snapshot := source.Snapshot()
	require.Len(t, snapshot, 1)
	require.Equal(t, "payments-1", snapshot[0].ProcessID)
}
