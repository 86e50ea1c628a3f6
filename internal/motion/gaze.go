package motion

import (
	"math"
	"math/rand"
)

// Offset is a small head rotation in radians.
type Offset struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
}

// IdleGazeConfig tunes the idle glance scheduler.
type IdleGazeConfig struct {
	IntervalMin float64 // seconds between glances
	IntervalMax float64
	HoldMin     float64 // seconds a glance is held
	HoldMax     float64
	Amplitude   float64 // max |yaw|, pitch uses half
	Decay       float64 // per second, return speed after a hold
	LookBack    float64 // seconds an external target suppresses glances
}

// DefaultIdleGazeConfig returns gentle glances every few seconds.
func DefaultIdleGazeConfig() IdleGazeConfig {
	return IdleGazeConfig{
		IntervalMin: 3,
		IntervalMax: 8,
		HoldMin:     0.8,
		HoldMax:     2.5,
		Amplitude:   0.15,
		Decay:       3,
		LookBack:    2,
	}
}

// IdleGaze emits a randomized glance offset while nothing external is
// steering the head, holds it, then decays back to zero.
type IdleGaze struct {
	cfg   IdleGazeConfig
	timer *Timer
	rng   *rand.Rand

	clock        float64
	lastExternal float64
	seenExternal bool

	offset    Offset
	holding   bool
	holdUntil float64
	fired     bool
}

// NewIdleGaze creates an idle gaze scheduler.
func NewIdleGaze(cfg IdleGazeConfig, rng *rand.Rand) *IdleGaze {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &IdleGaze{
		cfg:   cfg,
		timer: NewTimer(cfg.IntervalMin, cfg.IntervalMax, rng),
		rng:   rng,
	}
}

// NoteExternal records that an external gaze target is active now.
// Any glance in progress is released immediately.
func (g *IdleGaze) NoteExternal() {
	g.lastExternal = g.clock
	g.seenExternal = true
	g.holding = false
	g.timer.Reset()
}

// Yielding reports whether an external target was seen within LookBack.
func (g *IdleGaze) Yielding() bool {
	return g.seenExternal && g.clock-g.lastExternal < g.cfg.LookBack
}

// Tick advances by dt and returns the current idle offset.
func (g *IdleGaze) Tick(dt float64) Offset {
	dt = sanitize(dt)
	g.clock += dt
	g.fired = false

	if g.holding && g.clock >= g.holdUntil {
		g.holding = false
	}
	if !g.holding {
		k := math.Exp(-sanitize(g.cfg.Decay) * dt)
		g.offset.Yaw *= k
		g.offset.Pitch *= k
	}

	if g.Yielding() {
		g.timer.Reset()
		return g.offset
	}
	if g.holding {
		return g.offset
	}

	if g.timer.Advance(dt) {
		amp := sanitize(g.cfg.Amplitude)
		g.offset = Offset{
			Yaw:   (g.rng.Float64()*2 - 1) * amp,
			Pitch: (g.rng.Float64()*2 - 1) * amp * 0.5,
		}
		g.holding = true
		g.holdUntil = g.clock + uniform(g.rng, sanitize(g.cfg.HoldMin), sanitize(g.cfg.HoldMax))
		g.fired = true
	}
	return g.offset
}

// Offset returns the current offset without advancing.
func (g *IdleGaze) Offset() Offset { return g.offset }

// Holding reports whether a glance is being held.
func (g *IdleGaze) Holding() bool { return g.holding }

// Fired reports whether the last Tick started a glance.
func (g *IdleGaze) Fired() bool { return g.fired }
