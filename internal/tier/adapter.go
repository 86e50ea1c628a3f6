package tier

import (
	"math"

	"github.com/rs/zerolog"
)

// WindowSize is the number of frame samples averaged before a decision.
const WindowSize = 60

// Adapter re-evaluates the active bundle from measured frame times.
// It only ever moves down.
type Adapter struct {
	bundle  Bundle
	samples [WindowSize]float64
	next    int
	filled  int
	logger  zerolog.Logger
}

// NewAdapter starts from the given bundle.
func NewAdapter(start Bundle, logger zerolog.Logger) *Adapter {
	return &Adapter{
		bundle: start,
		logger: logger.With().Str("component", "tier").Logger(),
	}
}

// Current returns the active bundle.
func (a *Adapter) Current() Bundle {
	return a.bundle
}

// Observe records the wall time of one executed frame. When the rolling
// average is below threshold it downgrades one tier and returns the new
// bundle with changed=true.
func (a *Adapter) Observe(frameSeconds float64) (Bundle, bool) {
	if frameSeconds <= 0 || math.IsNaN(frameSeconds) || math.IsInf(frameSeconds, 0) {
		return a.bundle, false
	}

	a.samples[a.next] = 1 / frameSeconds
	a.next = (a.next + 1) % WindowSize
	if a.filled < WindowSize {
		a.filled++
	}
	if a.filled < WindowSize {
		return a.bundle, false
	}

	if a.bundle.Tier == Low {
		return a.bundle, false
	}

	avg := a.Average()
	if avg >= a.threshold() {
		return a.bundle, false
	}

	from := a.bundle
	a.bundle = BundleFor(from.Tier - 1)
	a.reset()

	a.logger.Warn().
		Str("from", from.Tier.String()).
		Str("to", a.bundle.Tier.String()).
		Float64("avgFps", avg).
		Msg("Sustained low frame rate, lowering tier")

	return a.bundle, true
}

// Average returns the mean FPS over the filled part of the window.
func (a *Adapter) Average() float64 {
	if a.filled == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < a.filled; i++ {
		sum += a.samples[i]
	}
	return sum / float64(a.filled)
}

// threshold never exceeds 80% of the active target so a throttled tier
// running at its own target does not read as struggling.
func (a *Adapter) threshold() float64 {
	return math.Min(LowFPSThreshold, a.bundle.TargetFPS*0.8)
}

func (a *Adapter) reset() {
	a.next = 0
	a.filled = 0
}
