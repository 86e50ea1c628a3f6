package audio

import (
	"math"
)

// Follower converts amplitude buffers into a level in [0,1].
// The chain is RMS, then one-pole smoothing, then gain, then clamp;
// gain is applied after smoothing so it cannot amplify sample noise.
type Follower struct {
	alpha    float64
	gain     float64
	smoothed float64
	level    float64
}

// NewFollower creates a follower. alpha is clamped to (0,1], gain to >= 0.
func NewFollower(alpha, gain float64) *Follower {
	f := &Follower{}
	f.SetAlpha(alpha)
	f.SetGain(gain)
	return f
}

// SetAlpha updates the smoothing factor.
func (f *Follower) SetAlpha(alpha float64) {
	if math.IsNaN(alpha) || alpha <= 0 {
		alpha = 1e-3
	}
	if alpha > 1 {
		alpha = 1
	}
	f.alpha = alpha
}

// SetGain updates the post-smoothing gain.
func (f *Follower) SetGain(gain float64) {
	if math.IsNaN(gain) || gain < 0 {
		gain = 0
	}
	f.gain = gain
}

// Update feeds one buffer and returns the new level. A nil buffer means the
// source is unavailable: the follower resets and returns 0.
func (f *Follower) Update(samples []float32) float64 {
	if samples == nil {
		f.smoothed = 0
		f.level = 0
		return 0
	}

	rms := RMS(samples)
	f.smoothed = f.smoothed*(1-f.alpha) + rms*f.alpha

	level := f.smoothed * f.gain
	switch {
	case math.IsNaN(level) || level < 0:
		level = 0
	case level > 1:
		level = 1
	}
	f.level = level
	return level
}

// Poll pulls the latest buffer from src and updates. Unavailable yields 0.
func (f *Follower) Poll(src Source) float64 {
	if src == nil {
		return f.Update(nil)
	}
	samples, ok := src.Latest()
	if !ok {
		return f.Update(nil)
	}
	if samples == nil {
		samples = []float32{}
	}
	return f.Update(samples)
}

// Level returns the last computed level.
func (f *Follower) Level() float64 {
	return f.level
}

// RMS computes the root-mean-square of samples normalized to [-1,1].
// Out-of-range and non-finite samples are clamped.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		x := float64(s)
		switch {
		case math.IsNaN(x):
			x = 0
		case x > 1:
			x = 1
		case x < -1:
			x = -1
		}
		sum += x * x
	}
	return math.Sqrt(sum / float64(len(samples)))
}
