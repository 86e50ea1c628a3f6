// Package motion provides the procedural idle generators: breathing,
// blinking and idle gaze.
package motion

import (
	"math"
	"math/rand"
)

// Timer fires after a randomized interval drawn uniformly from [min,max].
// Elapsed resets to zero exactly at fire and the next interval is redrawn.
type Timer struct {
	min, max float64
	elapsed  float64
	interval float64
	rng      *rand.Rand
}

// NewTimer creates a timer with its first interval already drawn.
func NewTimer(min, max float64, rng *rand.Rand) *Timer {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	t := &Timer{rng: rng}
	t.SetRange(min, max)
	t.interval = t.draw()
	return t
}

// SetRange replaces the bounds. The current interval is kept; the new range
// applies from the next draw.
func (t *Timer) SetRange(min, max float64) {
	min, max = sanitize(min), sanitize(max)
	if max < min {
		min, max = max, min
	}
	t.min, t.max = min, max
}

// Advance adds dt and reports whether the timer fired.
func (t *Timer) Advance(dt float64) bool {
	dt = sanitize(dt)
	if dt == 0 {
		return false
	}
	t.elapsed += dt
	if t.elapsed < t.interval {
		return false
	}
	t.elapsed = 0
	t.interval = t.draw()
	return true
}

// Reset restarts the current interval from zero.
func (t *Timer) Reset() {
	t.elapsed = 0
}

func (t *Timer) Elapsed() float64  { return t.elapsed }
func (t *Timer) Interval() float64 { return t.interval }

// Bounds returns the configured range.
func (t *Timer) Bounds() (min, max float64) { return t.min, t.max }

func (t *Timer) draw() float64 {
	return uniform(t.rng, t.min, t.max)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}

// sanitize maps negative and non-finite values to zero.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
