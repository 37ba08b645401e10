package heartbeat

import (
	rand "math/rand/v2"
	"time"
)

// Watch retry tuning. Delays grow from retryBase toward retryCap with
// decorrelated jitter so monitor replicas restarting a failed watch do not
// hammer the server in lockstep.
const (
	retryBase = 200 * time.Millisecond
	retryCap  = 10 * time.Second
	retryMult = 2.0
)

// nextRetryDelay computes the delay before the next watch attempt using
// decorrelated jitter ("Full Jitter" variant) with a cap.
// See: https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
//
// prev is the previous delay; prev <= 0 starts the sequence at retryBase.
// When rng is nil the package-level PRNG is used.
func nextRetryDelay(prev time.Duration, rng *rand.Rand) time.Duration {
	if prev <= 0 {
		return retryBase
	}
	spread := time.Duration(float64(prev)*retryMult) - retryBase
	if spread <= 0 {
		spread = retryBase
	}
	var jitter int64
	if rng != nil {
		jitter = rng.Int64N(int64(spread))
	} else {
		jitter = rand.Int64N(int64(spread)) //nolint:gosec // non-crypto backoff jitter
	}
	next := retryBase + time.Duration(jitter)
	if next > retryCap {
		return retryCap
	}

	return next
}

// newRetryRNG returns a deterministic RNG only when a non-zero seed is provided.
// When seed == 0 it returns nil so callers use the package-level PRNG instead.
// This keeps production jitter inexpensive and avoids hidden time-based variability.
//
//nolint:gosec
func newRetryRNG(seed int64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	s1 := uint64(seed)
	s2 := s1 ^ 0x9e3779b97f4a7c15

	return rand.New(rand.NewPCG(s1, s2))
}
