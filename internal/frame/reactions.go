package frame

import (
	"math/rand"

	"github.com/normanking/avatarloop/internal/emotion"
	"github.com/normanking/avatarloop/internal/gesture"
)

// Target is a valence/arousal goal.
type Target struct {
	Valence float64 `json:"valence"`
	Arousal float64 `json:"arousal"`
}

// Reactions maps discrete inputs to emotion targets.
type Reactions struct {
	// Tap sets a fixed target. Nil picks valence +1 or -1 and a random
	// arousal on every tap.
	Tap       *Target
	DoubleTap Target
	Swipe     map[gesture.Direction]Target
	Wake      Target

	// Speaking is blended while the synthesizer talks; Finished is the
	// target once it stops.
	Speaking emotion.BlendWeights
	Finished Target

	ZoomMin float64
	ZoomMax float64
}

// DefaultReactions returns the stock reaction table.
func DefaultReactions() Reactions {
	surprised := emotion.Surprised.State()
	return Reactions{
		DoubleTap: Target{Valence: surprised.Valence, Arousal: surprised.Arousal},
		Swipe: map[gesture.Direction]Target{
			gesture.Up:    {Valence: 0.6, Arousal: 0.7},
			gesture.Down:  {Valence: -0.4, Arousal: 0.2},
			gesture.Left:  {Valence: 0.2, Arousal: 0.4},
			gesture.Right: {Valence: 0.2, Arousal: 0.4},
		},
		Wake: Target{Valence: 0.5, Arousal: 0.6},
		Speaking: emotion.BlendWeights{
			emotion.Neutral: 0.3,
			emotion.Happy:   0.6,
			emotion.Relaxed: 0.1,
		},
		Finished: Target{Valence: 0.1, Arousal: 0.2},
		ZoomMin:  0.5,
		ZoomMax:  3,
	}
}

// tapTarget resolves the tap reaction.
func (r Reactions) tapTarget(rng *rand.Rand) Target {
	if r.Tap != nil {
		return *r.Tap
	}
	valence := -1.0
	if rng.Float64() > 0.5 {
		valence = 1
	}
	return Target{Valence: valence, Arousal: rng.Float64()}
}

func (r Reactions) zoom(current, scale float64) float64 {
	z := current * scale
	lo, hi := r.ZoomMin, r.ZoomMax
	if lo <= 0 {
		lo = 0.1
	}
	if hi < lo {
		hi = lo
	}
	if z < lo {
		return lo
	}
	if z > hi {
		return hi
	}
	return z
}
