package emotion

import (
	"math"
	"math/rand"
)

// DriftConfig controls the autonomous idle drift.
type DriftConfig struct {
	IdleAfter   float64 // seconds without an external target before drifting; <=0 disables
	IntervalMin float64 // seconds between drift steps
	IntervalMax float64
	Step        float64 // max per-axis change per step
	Bound       float64 // half-width of the box around neutral
}

// DefaultDriftConfig returns a subtle drift that starts after eight idle seconds.
func DefaultDriftConfig() DriftConfig {
	return DriftConfig{
		IdleAfter:   8,
		IntervalMin: 3,
		IntervalMax: 7,
		Step:        0.08,
		Bound:       0.2,
	}
}

// Model tracks current and target affect and eases one toward the other.
// It is owned by the frame loop and is not safe for concurrent use.
type Model struct {
	rate    float64
	current State
	target  State
	weights [presetCount]float64

	drift         DriftConfig
	rng           *rand.Rand
	sinceExternal float64
	driftIn       float64
	drifting      bool
}

// NewModel creates a model at rest on the neutral preset.
func NewModel(rate float64, drift DriftConfig, rng *rand.Rand) *Model {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	m := &Model{
		drift: drift,
		rng:   rng,
	}
	m.Retune(rate)
	m.weights[Neutral] = 1
	return m
}

// Retune replaces the smoothing rate (per second).
func (m *Model) Retune(rate float64) {
	if rate < 0 || math.IsNaN(rate) {
		rate = 0
	}
	m.rate = rate
}

// SetTarget sets an external target. Current is left untouched and any
// autonomous drift stops.
func (m *Model) SetTarget(valence, arousal float64) {
	m.target = State{Valence: valence, Arousal: arousal}.Clamp()
	m.sinceExternal = 0
	m.drifting = false
}

// Hold keeps the current target external without changing it. Call it
// every tick while an outside influence persists.
func (m *Model) Hold() {
	m.sinceExternal = 0
	m.drifting = false
}

// SetPreset targets a preset's position.
func (m *Model) SetPreset(p Preset) {
	s := p.State()
	m.SetTarget(s.Valence, s.Arousal)
}

// SetBlendWeights clamps and stores the given weights. Presets absent from
// w keep their prior weight.
func (m *Model) SetBlendWeights(w BlendWeights) {
	for p, v := range w {
		if !p.valid() {
			continue
		}
		m.weights[p] = clamp(v, 0, 1)
	}
}

// Weights returns a copy of all preset weights.
func (m *Model) Weights() BlendWeights {
	out := make(BlendWeights, presetCount)
	for p := Neutral; p < presetCount; p++ {
		out[p] = m.weights[p]
	}
	return out
}

// ResolveBlended returns the normalized weighted mixture of preset states.
// A zero total weight resolves to neutral.
func (m *Model) ResolveBlended() State {
	var total float64
	var mix State
	for p := Neutral; p < presetCount; p++ {
		w := m.weights[p]
		if w <= 0 {
			continue
		}
		total += w
		mix.Valence += presetStates[p].Valence * w
		mix.Arousal += presetStates[p].Arousal * w
	}
	if total == 0 {
		return presetStates[Neutral]
	}
	return State{Valence: mix.Valence / total, Arousal: mix.Arousal / total}.Clamp()
}

// Tick advances current toward target by rate*dt of the remaining gap.
// The step factor is clamped to [0,1] so the approach never overshoots.
func (m *Model) Tick(dt float64) {
	if dt <= 0 || math.IsNaN(dt) {
		return
	}

	m.tickDrift(dt)

	k := clamp(m.rate*dt, 0, 1)
	m.current.Valence += (m.target.Valence - m.current.Valence) * k
	m.current.Arousal += (m.target.Arousal - m.current.Arousal) * k
	m.current = m.current.Clamp()
}

func (m *Model) tickDrift(dt float64) {
	if m.drift.IdleAfter <= 0 {
		return
	}
	m.sinceExternal += dt
	if m.sinceExternal < m.drift.IdleAfter {
		return
	}
	if !m.drifting {
		m.drifting = true
		m.driftIn = m.drawDriftInterval()
		return
	}

	m.driftIn -= dt
	if m.driftIn > 0 {
		return
	}
	m.driftIn = m.drawDriftInterval()

	base := presetStates[Neutral]
	b := m.drift.Bound
	v := m.target.Valence + (m.rng.Float64()*2-1)*m.drift.Step
	a := m.target.Arousal + (m.rng.Float64()*2-1)*m.drift.Step
	m.target = State{
		Valence: clamp(v, base.Valence-b, base.Valence+b),
		Arousal: clamp(a, base.Arousal-b, base.Arousal+b),
	}.Clamp()
}

func (m *Model) drawDriftInterval() float64 {
	lo, hi := m.drift.IntervalMin, m.drift.IntervalMax
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + m.rng.Float64()*(hi-lo)
}

// Current returns the smoothed state.
func (m *Model) Current() State { return m.current }

// Target returns the state being approached.
func (m *Model) Target() State { return m.target }

// Drifting reports whether the target is currently autonomous.
func (m *Model) Drifting() bool { return m.drifting }
