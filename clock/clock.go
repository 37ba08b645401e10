package clock

import (
	"sync/atomic"
	"time"
)

// Clock supplies the tick values fed to liveness detectors.
//
// Ticks are opaque uint64 values; only differences between them are
// meaningful. Detectors latch a fault when ticks run backwards, so the
// monitor should be driven by a monotonic source in production. Manual
// exists for tests that need full control over time.
type Clock interface {
	// Now returns the current tick.
	Now() uint64
}

// Monotonic returns a Clock backed by the runtime's monotonic reading,
// ticking in nanoseconds since the clock was created. Immune to wall-clock
// adjustments.
func Monotonic() Clock {
	return &monotonicClock{base: time.Now()}
}

type monotonicClock struct {
	base time.Time
}

func (c *monotonicClock) Now() uint64 {
	return uint64(time.Since(c.base))
}

// Wall returns a Clock backed by the system wall clock in nanoseconds since
// the Unix epoch. Wall time can step backwards under NTP or manual
// adjustment, which a detector reports as a time fault; prefer Monotonic
// unless ticks must be comparable across machines.
func Wall() Clock {
	return wallClock{}
}

type wallClock struct{}

func (wallClock) Now() uint64 {
	return uint64(time.Now().UnixNano())
}

// Manual is a test clock whose tick only moves when told to.
//
// Safe for concurrent use.
type Manual struct {
	now atomic.Uint64
}

// NewManual creates a manual clock starting at the given tick.
func NewManual(start uint64) *Manual {
	m := &Manual{}
	m.now.Store(start)

	return m
}

// Now returns the current tick.
func (m *Manual) Now() uint64 {
	return m.now.Load()
}

// Set moves the clock to an absolute tick. Setting a tick earlier than the
// current one is allowed; detectors observe it as a rewound clock.
func (m *Manual) Set(now uint64) {
	m.now.Store(now)
}

// Advance moves the clock forward by delta ticks and returns the new tick.
func (m *Manual) Advance(delta uint64) uint64 {
	return m.now.Add(delta)
}

var _ Clock = (*Manual)(nil)
