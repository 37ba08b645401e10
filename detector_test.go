package procmon

import (
	"math"
	"math/rand/v2"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gitxandert/process-monitor/types"
)

const testTimeout = uint64(1000)

func TestNewDetector(t *testing.T) {
	d := NewDetector(42)

	require.Equal(t, types.StateUnknown, d.State())
	require.False(t, d.HasEvidence())
	require.Equal(t, uint64(0), d.LastHeartbeat())
	require.False(t, d.IsFaulted())
	require.False(t, d.IsStepping())
}

func TestDetector_Soundness(t *testing.T) {
	t.Run("heartbeat then silence past the timeout reports dead", func(t *testing.T) {
		d := NewDetector(0)

		d.Step(0, types.EvidenceSeen, testTimeout, 0)
		require.Equal(t, types.StateAlive, d.State())

		d.Step(testTimeout+1, types.EvidenceNotSeen, testTimeout, 0)
		require.Equal(t, types.StateDead, d.State())
		require.False(t, d.IsFaulted(), "missed deadline is not a fault")
	})

	t.Run("stays unknown while no heartbeat was ever observed", func(t *testing.T) {
		d := NewDetector(0)

		for _, now := range []uint64{0, 1, testTimeout * 10, 1 << 40} {
			d.Step(now, types.EvidenceNotSeen, testTimeout, 0)
			require.Equal(t, types.StateUnknown, d.State())
			require.False(t, d.HasEvidence())
		}
	})
}

func TestDetector_Liveness(t *testing.T) {
	// Silence drives the detector to Dead regardless of polling granularity.
	d := NewDetector(0)
	d.Step(0, types.EvidenceSeen, testTimeout, 0)

	for now := uint64(100); now <= testTimeout; now += 100 {
		d.Step(now, types.EvidenceNotSeen, testTimeout, 0)
		require.Equal(t, types.StateAlive, d.State(), "age %d is within the timeout", now)
	}

	d.Step(testTimeout+100, types.EvidenceNotSeen, testTimeout, 0)
	require.Equal(t, types.StateDead, d.State())
}

func TestDetector_Stability(t *testing.T) {
	// A heartbeat at least once per timeout keeps the process Alive.
	d := NewDetector(0)

	for now := uint64(0); now <= 10_000; now += 100 {
		d.Step(now, types.EvidenceSeen, testTimeout, 0)
		require.Equal(t, types.StateAlive, d.State(), "tick %d", now)
	}
}

func TestDetector_Boundary(t *testing.T) {
	d := NewDetector(0)
	d.Step(0, types.EvidenceSeen, testTimeout, 0)

	d.Step(testTimeout-1, types.EvidenceNotSeen, testTimeout, 0)
	require.Equal(t, types.StateAlive, d.State(), "age timeout-1 is alive")

	d.Step(testTimeout, types.EvidenceNotSeen, testTimeout, 0)
	require.Equal(t, types.StateAlive, d.State(), "age exactly timeout is alive")

	d.Step(testTimeout+1, types.EvidenceNotSeen, testTimeout, 0)
	require.Equal(t, types.StateDead, d.State(), "age timeout+1 is dead")
}

func TestDetector_Recovery(t *testing.T) {
	// A timeout death is not sticky: the next heartbeat revives the process.
	d := NewDetector(0)

	d.Step(0, types.EvidenceSeen, testTimeout, 0)
	d.Step(testTimeout+1, types.EvidenceNotSeen, testTimeout, 0)
	require.Equal(t, types.StateDead, d.State())

	d.Step(testTimeout+2, types.EvidenceSeen, testTimeout, 0)
	require.Equal(t, types.StateAlive, d.State())
	require.Equal(t, testTimeout+2, d.LastHeartbeat())
	require.False(t, d.IsFaulted())
}

func TestDetector_ClockCorruption(t *testing.T) {
	t.Run("latches when the clock rewinds past the last heartbeat", func(t *testing.T) {
		d := NewDetector(1000)

		d.Step(1000, types.EvidenceSeen, testTimeout, 0)
		require.Equal(t, types.StateAlive, d.State())

		// now < lastBeat: the wrapped age lands in the invalid range.
		d.Step(500, types.EvidenceNotSeen, testTimeout, 0)
		require.Equal(t, types.StateDead, d.State())
		require.True(t, d.IsFaulted())
	})

	t.Run("latches when the clock rewinds before any heartbeat", func(t *testing.T) {
		d := NewDetector(1000)

		d.Step(500, types.EvidenceNotSeen, testTimeout, 0)
		require.Equal(t, types.StateDead, d.State())
		require.True(t, d.IsFaulted())
	})

	t.Run("heartbeats cannot revive a faulted detector", func(t *testing.T) {
		d := NewDetector(1000)
		d.Step(1000, types.EvidenceSeen, testTimeout, 0)
		d.Step(500, types.EvidenceNotSeen, testTimeout, 0)
		require.True(t, d.IsFaulted())

		d.Step(5000, types.EvidenceSeen, testTimeout, 0)
		require.Equal(t, types.StateDead, d.State())
		require.True(t, d.IsFaulted())
		require.Equal(t, uint64(1000), d.LastHeartbeat(), "a faulted detector records nothing")
	})
}

func TestDetector_Reset(t *testing.T) {
	d := NewDetector(1000)
	d.Step(1000, types.EvidenceSeen, testTimeout, 0)
	d.Step(500, types.EvidenceNotSeen, testTimeout, 0)
	require.True(t, d.IsFaulted())

	d.Reset(2000)

	require.Equal(t, types.StateUnknown, d.State())
	require.False(t, d.IsFaulted())
	require.False(t, d.HasEvidence())
	require.Equal(t, uint64(0), d.LastHeartbeat())

	d.Step(2000, types.EvidenceSeen, testTimeout, 0)
	require.Equal(t, types.StateAlive, d.State())
}

func TestDetector_Reentrancy(t *testing.T) {
	if runtime.GOMAXPROCS(0) < 2 {
		t.Skip("reentrancy detection requires parallelism")
	}

	const (
		goroutines = 8
		iterations = 100_000
	)

	d := NewDetector(0)
	start := make(chan struct{})

	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for range iterations {
				d.Step(0, types.EvidenceSeen, testTimeout, 0)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.True(t, d.IsFaulted(), "overlapping steps must latch the reentry fault")
	require.True(t, d.faultReentry.Load())
	require.False(t, d.faultTime.Load())
	require.Equal(t, types.StateDead, d.State())
	require.False(t, d.IsStepping(), "guard must be released once all steps return")
}

func TestDetector_InvariantFuzz(t *testing.T) {
	const iterations = 100_000

	// Fixed seeds keep failures reproducible.
	rng := rand.New(rand.NewPCG(0x1f0c35, 0x9ad1e5))
	d := NewDetector(0)

	var now uint64
	for range iterations {
		now += rng.Uint64N(500) + 1
		ev := types.EvidenceOf(rng.IntN(2) == 0)

		d.Step(now, ev, testTimeout, 0)
		verifyDetectorInvariants(t, d, now, testTimeout, ev)
	}
}

// verifyDetectorInvariants checks the detector's published invariants at a
// point where no step is in flight.
func verifyDetectorInvariants(t *testing.T, d *Detector, now, timeout uint64, ev types.Evidence) {
	t.Helper()

	st := d.State()
	switch st {
	case types.StateUnknown, types.StateAlive, types.StateDead:
	default:
		t.Fatalf("invalid state %d at tick %d", st, now)
	}

	if st == types.StateAlive {
		require.True(t, d.HasEvidence(), "alive without evidence at tick %d", now)
		require.LessOrEqual(t, now-d.LastHeartbeat(), timeout, "alive past the timeout at tick %d", now)
	}
	if d.IsFaulted() {
		require.Equal(t, types.StateDead, st, "faulted but not dead at tick %d", now)
	}
	require.False(t, d.IsStepping(), "guard held between steps at tick %d", now)

	if ev == types.EvidenceNotSeen && d.HasEvidence() && now-d.LastHeartbeat() > timeout {
		require.Equal(t, types.StateDead, st, "missed deadline not reported at tick %d", now)
	}
}

func TestDetector_WaitBoundReserved(t *testing.T) {
	// The grace bound is carried through the API but never changes the verdict.
	for _, waitBound := range []uint64{0, 1, 999, math.MaxUint64} {
		d := NewDetector(0)

		d.Step(0, types.EvidenceSeen, testTimeout, waitBound)
		require.Equal(t, types.StateAlive, d.State())

		d.Step(testTimeout, types.EvidenceNotSeen, testTimeout, waitBound)
		require.Equal(t, types.StateAlive, d.State())

		d.Step(testTimeout+1, types.EvidenceNotSeen, testTimeout, waitBound)
		require.Equal(t, types.StateDead, d.State())
	}
}
