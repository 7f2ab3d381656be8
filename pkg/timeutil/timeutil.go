package timeutil

import (
	"math"
	"math/rand"
	"time"
)

// DurationPtr is a helper function to create a pointer to a time.Duration
func DurationPtr(d time.Duration) *time.Duration {
	return &d
}

// ExponentialBackoffDelay computes the delay before the next retry attempt,
// given the attempt number (1-indexed), a jitter bound, a seeded RNG, and a
// BackoffParam describing the curve. The base delay grows as
// initial * multiplier^(attempt-1), capped at maxDuration, then a uniform
// random jitter in [0, jitter) is added.
func ExponentialBackoffDelay(attempt int, jitter time.Duration, rng rand.Rand, param BackoffParam) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	exponent := float64(attempt - 1)
	delay := float64(param.InitialDuration()) * math.Pow(param.Multiplier(), exponent)
	if max := float64(param.MaxDuration()); param.MaxDuration() > 0 && delay > max {
		delay = max
	}

	result := time.Duration(delay)
	if jitter > 0 {
		result += time.Duration(rng.Int63n(int64(jitter)))
	}
	return result
}

// MaxDuration returns the largest duration in durations, or zero if empty.
func MaxDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	max := durations[0]
	for _, d := range durations[1:] {
		if d > max {
			max = d
		}
	}
	return max
}

// ComputeJitter returns a pseudo-random duration in [0, max) using rng.
// A non-positive max returns zero.
func ComputeJitter(max time.Duration, rng rand.Rand) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rng.Int63n(int64(max)))
}
