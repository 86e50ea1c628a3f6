package motion

import (
	"math/rand"
)

// BlinkState is the eyelid state.
type BlinkState int

const (
	BlinkOpen BlinkState = iota
	BlinkClosing
)

func (s BlinkState) String() string {
	if s == BlinkClosing {
		return "closing"
	}
	return "open"
}

// Blink fires a pulse of 1 on a randomized schedule and holds it for a
// fixed duration. The hold is always shorter than the minimum interval so
// pulses never overlap.
type Blink struct {
	timer     *Timer
	hold      float64
	clock     float64
	state     BlinkState
	expiresAt float64
	fired     bool
}

// NewBlink creates a blink scheduler. A hold that is not strictly shorter
// than min is cut to half of min.
func NewBlink(min, max, hold float64, rng *rand.Rand) *Blink {
	b := &Blink{timer: NewTimer(min, max, rng)}
	b.setHold(hold)
	return b
}

func (b *Blink) setHold(hold float64) {
	min, _ := b.timer.Bounds()
	hold = sanitize(hold)
	if hold >= min {
		hold = min / 2
	}
	b.hold = hold
}

// Retune applies new bounds and hold. Takes effect from the next draw.
func (b *Blink) Retune(min, max, hold float64) {
	b.timer.SetRange(min, max)
	b.setHold(hold)
}

// Tick advances by dt and returns the blink pulse (1 closed, 0 open).
func (b *Blink) Tick(dt float64) float64 {
	dt = sanitize(dt)
	b.clock += dt
	b.fired = false

	if b.state == BlinkClosing && b.clock >= b.expiresAt {
		b.state = BlinkOpen
	}

	if b.timer.Advance(dt) {
		b.state = BlinkClosing
		b.expiresAt = b.clock + b.hold
		b.fired = true
	}

	return b.Value()
}

// Value returns the current pulse without advancing.
func (b *Blink) Value() float64 {
	if b.state == BlinkClosing {
		return 1
	}
	return 0
}

// State returns the current blink state.
func (b *Blink) State() BlinkState { return b.state }

// Fired reports whether the last Tick started a pulse.
func (b *Blink) Fired() bool { return b.fired }

// Hold returns the effective pulse duration.
func (b *Blink) Hold() float64 { return b.hold }

// Clock returns accumulated running time.
func (b *Blink) Clock() float64 { return b.clock }

// NextInterval returns the interval currently being waited on.
func (b *Blink) NextInterval() float64 { return b.timer.Interval() }
