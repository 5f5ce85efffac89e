package retry

import (
	"math"
	"math/rand"
	"time"

	"golang.org/x/exp/constraints"
)

// Backoff returns the wait before retry number attempt (starting at 0), or
// false once no more retries are allowed.
type Backoff interface {
	Next(attempt uint) (time.Duration, bool)
}

type noRetry struct{}

func NoRetry() Backoff {
	return noRetry{}
}

func (noRetry) Next(uint) (time.Duration, bool) {
	return 0, false
}

// Jitter picks a duration in [0, n).
type Jitter func(n int64) int64

type exponential struct {
	base     time.Duration
	max      time.Duration
	attempts uint
	jitter   Jitter
}

// Exponential is capped exponential backoff with full jitter. A nil jitter
// uses math/rand.
func Exponential(base time.Duration, max time.Duration, attempts uint, jitter Jitter) Backoff {
	if jitter == nil {
		jitter = func(n int64) int64 {
			if n <= 0 {
				return 0
			}
			return rand.Int63n(n)
		}
	}
	return &exponential{
		base:     base,
		max:      max,
		attempts: attempts,
		jitter:   jitter,
	}
}

func (e *exponential) Next(attempt uint) (time.Duration, bool) {
	if attempt >= e.attempts {
		return 0, false
	}

	window := int64(e.max)
	if attempt < 62 && int64(e.base) <= math.MaxInt64>>attempt {
		window = clamp(int64(e.base)<<attempt, 0, int64(e.max))
	}
	return time.Duration(e.jitter(window)), true
}

func clamp[T constraints.Ordered](v T, lo T, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
