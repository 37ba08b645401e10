package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/gitxandert/process-monitor/types"
)

func TestNewPrometheus_Defaults(t *testing.T) {
	c := NewPrometheus(nil, "")

	require.NotNil(t, c)
	require.Equal(t, "procmon", c.namespace)
	require.Equal(t, prometheus.DefaultRegisterer, c.reg)
}

func TestPrometheusCollector_RegistersLazily(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheus(reg, "procmon_test")

	// Nothing is registered until the first recording.
	families, err := reg.Gather()
	require.NoError(t, err)
	require.Empty(t, families)

	c.RecordTransition(types.StateUnknown, types.StateAlive)

	families, err = reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestPrometheusCollector_RecordsValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheus(reg, "procmon_test")

	c.RecordTransition(types.StateAlive, types.StateDead)
	c.RecordTransition(types.StateAlive, types.StateDead)
	c.RecordProcessStates(1, 2, 3)
	c.RecordDetectorFault("time")
	c.RecordHeartbeat("payments-1", true)
	c.RecordHeartbeat("payments-1", false)
	c.RecordHeartbeatObserved()
	c.RecordRosterPublish(7, 3)
	c.RecordRosterSkipped()
	c.RecordTransitionDropped()
	c.RecordLeadershipChange("monitor-1")

	require.Equal(t, float64(2),
		testutil.ToFloat64(c.transitions.WithLabelValues("Alive", "Dead")))
	require.Equal(t, float64(2),
		testutil.ToFloat64(c.processStates.WithLabelValues("Alive")))
	require.Equal(t, float64(1),
		testutil.ToFloat64(c.detectorFaults.WithLabelValues("time")))
	require.Equal(t, float64(1),
		testutil.ToFloat64(c.heartbeatsPublished.WithLabelValues("failure")))
	require.Equal(t, float64(1), testutil.ToFloat64(c.heartbeatsObserved))
	require.Equal(t, float64(7), testutil.ToFloat64(c.rosterVersion))
	require.Equal(t, float64(3), testutil.ToFloat64(c.rosterProcesses))
	require.Equal(t, float64(1), testutil.ToFloat64(c.rosterSkipped))
	require.Equal(t, float64(1), testutil.ToFloat64(c.droppedNotifies))
	require.Equal(t, float64(1), testutil.ToFloat64(c.leadershipChanges))
}
