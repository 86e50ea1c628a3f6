package motion

import (
	"math"
	"math/rand"
)

// Breathing is a sine oscillator whose amplitude swells with arousal.
type Breathing struct {
	speed       float64 // Hz
	amplitude   float64
	arousalGain float64
	phase       float64
}

// NewBreathing draws the phase offset once so separate instances drift apart.
func NewBreathing(speed, amplitude, arousalGain float64, rng *rand.Rand) *Breathing {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	b := &Breathing{
		arousalGain: sanitize(arousalGain),
		phase:       rng.Float64() * 2 * math.Pi,
	}
	b.Retune(speed, amplitude)
	return b
}

// Retune changes speed and amplitude without touching the phase.
func (b *Breathing) Retune(speed, amplitude float64) {
	b.speed = sanitize(speed)
	b.amplitude = sanitize(amplitude)
}

// Phase returns the construction-time phase offset.
func (b *Breathing) Phase() float64 { return b.phase }

// Value returns the breath offset at running time t.
func (b *Breathing) Value(t, arousal float64) float64 {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		t = 0
	}
	if math.IsNaN(arousal) {
		arousal = 0
	}
	arousal = math.Max(0, math.Min(1, arousal))
	return b.amplitude * math.Sin(2*math.Pi*b.speed*t+b.phase) * (1 + arousal*b.arousalGain)
}

// Peak returns the largest magnitude Value can reach at the given arousal.
func (b *Breathing) Peak(arousal float64) float64 {
	arousal = math.Max(0, math.Min(1, arousal))
	return b.amplitude * (1 + arousal*b.arousalGain)
}
