package procmon

import (
	"sync/atomic"

	"github.com/gitxandert/process-monitor/types"
)

// Detector is a heartbeat liveness state machine for a single process.
//
// A Detector owns no goroutines and never blocks: callers drive it by calling
// Step at whatever cadence they evaluate liveness. Time is an opaque uint64
// tick counter supplied by the caller; the detector only ever subtracts ticks,
// so any monotonic unit works (the clock package provides sources).
//
// The machine is single-stepper: exactly one goroutine may call Step at a
// time. All fields are atomics so concurrent misuse cannot tear state; a
// second in-flight Step trips the reentry guard and latches a permanent
// fault instead of computing a wrong verdict.
//
// Faults are sticky. Once a time fault (untrustworthy age) or a reentry
// fault latches, the detector reports StateDead and ignores further Step
// calls until Reset.
type Detector struct {
	state       atomic.Int32  // types.State
	initTime    atomic.Uint64 // tick of creation or last Reset
	lastBeat    atomic.Uint64 // tick of the most recent observed heartbeat
	hasEvidence atomic.Bool   // a heartbeat has been observed since Reset

	faultTime    atomic.Bool // latched: age computation was untrustworthy
	faultReentry atomic.Bool // latched: concurrent Step detected
	inStep       atomic.Bool // transition guard, held for the duration of one Step
}

// NewDetector creates a detector in StateUnknown.
//
// Parameters:
//   - now: Current tick, recorded as the detector's epoch for aging an
//     entirely silent process
//
// Returns:
//   - *Detector: Detector ready for Step calls
func NewDetector(now uint64) *Detector {
	d := &Detector{}
	d.Reset(now)

	return d
}

// Reset returns the detector to its initial state at tick now.
//
// All evidence is discarded and both fault latches are cleared; Reset is the
// only way to recover a faulted detector. Reset must not be called
// concurrently with Step.
func (d *Detector) Reset(now uint64) {
	d.state.Store(int32(types.StateUnknown))
	d.initTime.Store(now)
	d.lastBeat.Store(0)
	d.hasEvidence.Store(false)
	d.faultTime.Store(false)
	d.faultReentry.Store(false)
	d.inStep.Store(false)
}

// Step advances the detector by one evaluation at tick now.
//
// The transition rule:
//   - EvidenceSeen records now as the latest heartbeat.
//   - With no heartbeat ever observed, the process stays StateUnknown no
//     matter how old it is.
//   - With evidence, the process is StateAlive while the age of the latest
//     heartbeat is at most timeout, and StateDead once it exceeds timeout.
//     A timeout death is not sticky: a later heartbeat revives the process.
//
// Ages are computed with wrapping subtraction. An age with the high bit set
// means the supplied tick ran backwards past the reference point; the
// detector latches a time fault and reports StateDead rather than trusting
// the clock again.
//
// A faulted detector returns immediately without evaluating anything.
//
// Parameters:
//   - now: Current tick
//   - ev: Whether a heartbeat was observed since the previous Step
//   - timeout: Liveness timeout in ticks; a heartbeat older than this is a
//     missed deadline
//   - waitBound: Reserved grace bound in ticks, carried through the API but
//     not consulted by the transition rule
func (d *Detector) Step(now uint64, ev types.Evidence, timeout, waitBound uint64) {
	_ = waitBound

	if d.IsFaulted() {
		return
	}

	// Claim the transition guard. Losing the claim means another Step is in
	// flight on this instance, which violates the single-stepper contract:
	// latch the fault and leave the guard for the in-flight owner to release.
	if d.inStep.Swap(true) {
		d.faultReentry.Store(true)
		d.state.Store(int32(types.StateDead))

		return
	}

	if ev == types.EvidenceSeen {
		d.lastBeat.Store(now)
		d.hasEvidence.Store(true)
	}

	if !d.hasEvidence.Load() {
		// Never heard from: Unknown, unless the clock itself is broken.
		if !ageValid(age(now, d.initTime.Load())) {
			d.faultTime.Store(true)
			d.state.Store(int32(types.StateDead))
		} else {
			d.state.Store(int32(types.StateUnknown))
		}
		d.finishStep()

		return
	}

	a := age(now, d.lastBeat.Load())
	switch {
	case !ageValid(a):
		d.faultTime.Store(true)
		d.state.Store(int32(types.StateDead))
	case a > timeout:
		d.state.Store(int32(types.StateDead))
	default:
		d.state.Store(int32(types.StateAlive))
	}
	d.finishStep()
}

// finishStep releases the transition guard. A reentry fault latched by a
// concurrent caller while this step was in flight must not be masked by this
// step's verdict, so Dead is re-asserted before the release.
func (d *Detector) finishStep() {
	if d.faultReentry.Load() {
		d.state.Store(int32(types.StateDead))
	}
	d.inStep.Store(false)
}

// State returns the current liveness verdict.
func (d *Detector) State() types.State {
	return types.State(d.state.Load())
}

// HasEvidence reports whether any heartbeat has been observed since the
// detector was created or last Reset.
func (d *Detector) HasEvidence() bool {
	return d.hasEvidence.Load()
}

// LastHeartbeat returns the tick of the most recent observed heartbeat,
// or zero if none has been observed.
func (d *Detector) LastHeartbeat() uint64 {
	return d.lastBeat.Load()
}

// IsFaulted reports whether a time or reentry fault has latched. A faulted
// detector stays StateDead until Reset.
func (d *Detector) IsFaulted() bool {
	return d.faultTime.Load() || d.faultReentry.Load()
}

// IsStepping reports whether a Step is currently in flight. Steady-state
// false; primarily useful to assert the guard invariant in tests.
func (d *Detector) IsStepping() bool {
	return d.inStep.Load()
}

// age returns now minus then with uint64 wraparound.
func age(now, then uint64) uint64 {
	return now - then
}

// ageValid reports whether an age is trustworthy. Wrapped subtraction of a
// rewound clock lands in the top half of the uint64 range.
func ageValid(a uint64) bool {
	return a < 1<<63
}
