// Package emotion holds the avatar's valence/arousal affect model.
package emotion

import (
	"fmt"
	"math"
	"strings"
)

// State is a point in valence/arousal space.
type State struct {
	Valence float64 `json:"valence"` // -1 (negative) to +1 (positive)
	Arousal float64 `json:"arousal"` // 0 (calm) to 1 (intense)
}

// Clamp returns s with both axes forced into their domains. NaN maps to 0.
func (s State) Clamp() State {
	return State{
		Valence: clamp(s.Valence, -1, 1),
		Arousal: clamp(s.Arousal, 0, 1),
	}
}

// Preset is one of the fixed named emotional poses.
type Preset int

const (
	Neutral Preset = iota
	Happy
	Sad
	Angry
	Relaxed
	Surprised
	presetCount
)

var presetNames = [presetCount]string{
	Neutral:   "neutral",
	Happy:     "happy",
	Sad:       "sad",
	Angry:     "angry",
	Relaxed:   "relaxed",
	Surprised: "surprised",
}

var presetStates = [presetCount]State{
	Neutral:   {Valence: 0, Arousal: 0},
	Happy:     {Valence: 0.8, Arousal: 0.6},
	Sad:       {Valence: -0.7, Arousal: 0.2},
	Angry:     {Valence: -0.6, Arousal: 0.9},
	Relaxed:   {Valence: 0.4, Arousal: 0.1},
	Surprised: {Valence: 0.2, Arousal: 1},
}

// Presets lists every preset in declaration order.
func Presets() []Preset {
	out := make([]Preset, 0, presetCount)
	for p := Neutral; p < presetCount; p++ {
		out = append(out, p)
	}
	return out
}

func (p Preset) valid() bool {
	return p >= Neutral && p < presetCount
}

func (p Preset) String() string {
	if !p.valid() {
		return fmt.Sprintf("preset(%d)", int(p))
	}
	return presetNames[p]
}

// State returns the preset's position. Unknown presets are neutral.
func (p Preset) State() State {
	if !p.valid() {
		return presetStates[Neutral]
	}
	return presetStates[p]
}

// ParsePreset looks a preset up by name.
func ParsePreset(name string) (Preset, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for p, n := range presetNames {
		if n == name {
			return Preset(p), true
		}
	}
	return Neutral, false
}

// BlendWeights assigns a weight in [0,1] to any subset of presets.
type BlendWeights map[Preset]float64

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
