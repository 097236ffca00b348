// Package algorithms holds the retry delay strategies used between attempts of
// a failing task.
package algorithms

import (
	"math/rand"
	"sync"
	"time"
)

// BackoffType selects the retry delay algorithm.
type BackoffType int

const (
	// BackoffExponential doubles the delay on every attempt.
	BackoffExponential BackoffType = iota
	// BackoffJittered randomises the exponential delay by a jitter factor.
	BackoffJittered
	// BackoffDecorrelated picks each delay from [initial, 3*previous].
	BackoffDecorrelated
)

// maxShift caps the exponent so the shift cannot overflow an int64.
const maxShift = 62

// Backoff computes the delay before a retry. Implementations may keep state
// between calls, so each retried task uses its own instance.
//
// attempt is 0-indexed: 0 is the first retry after the initial failure.
type Backoff interface {
	NextDelay(attempt int) time.Duration
}

// NewBackoff builds the strategy for the given type. Unknown types fall back
// to exponential.
func NewBackoff(kind BackoffType, initial, maxDelay time.Duration, jitter float64) Backoff {
	if maxDelay < initial {
		maxDelay = initial
	}

	switch kind {
	case BackoffJittered:
		return &jittered{
			initial: initial,
			max:     maxDelay,
			factor:  clamp(jitter, 0, 1),
			rng:     rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- jitter does not need crypto rand
		}
	case BackoffDecorrelated:
		return &decorrelated{
			initial: initial,
			max:     maxDelay,
			prev:    initial,
			rng:     rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- jitter does not need crypto rand
		}
	default:
		return exponential{initial: initial, max: maxDelay}
	}
}

type exponential struct {
	initial, max time.Duration
}

func (e exponential) NextDelay(attempt int) time.Duration {
	return exponentialDelay(attempt, e.initial, e.max)
}

// jittered scales the exponential delay by a random factor in [1-f, 1+f].
type jittered struct {
	initial, max time.Duration
	factor       float64

	mu  sync.Mutex
	rng *rand.Rand
}

func (j *jittered) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}
	base := exponentialDelay(attempt, j.initial, j.max)

	j.mu.Lock()
	scale := 1 + (j.rng.Float64()*2-1)*j.factor
	j.mu.Unlock()

	return clamp(time.Duration(float64(base)*scale), 0, j.max)
}

// decorrelated follows the "decorrelated jitter" scheme: each delay depends on
// the previous one rather than on the attempt number.
type decorrelated struct {
	initial, max time.Duration

	mu   sync.Mutex
	prev time.Duration
	rng  *rand.Rand
}

func (d *decorrelated) NextDelay(attempt int) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	if attempt <= 0 {
		d.prev = d.initial
		return d.initial
	}

	upper := min(3*d.prev, d.max)
	span := upper - d.initial
	if span <= 0 {
		d.prev = d.initial
		return d.initial
	}

	d.prev = d.initial + time.Duration(d.rng.Int63n(int64(span)))
	return d.prev
}

func exponentialDelay(attempt int, initial, maxDelay time.Duration) time.Duration {
	if attempt < 0 {
		return 0
	}
	if attempt >= maxShift {
		return maxDelay
	}

	factor := time.Duration(int64(1) << uint(attempt))
	if initial > 0 && factor > maxDelay/initial {
		return maxDelay
	}
	return min(initial*factor, maxDelay)
}

func clamp[T int64 | float64 | time.Duration](v, lo, hi T) T {
	return max(lo, min(v, hi))
}
