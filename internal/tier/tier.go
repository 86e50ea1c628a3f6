// Package tier maps device capability hints to a bundle of tuned animation constants.
package tier

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTier is returned by ParseTier for names outside the tier set.
var ErrUnknownTier = errors.New("unknown performance tier")

// Tier is a coarse device-capability class. Higher is more capable.
type Tier int

const (
	Low Tier = iota
	Medium
	High
	Ultra
)

// LowFPSThreshold is the measured frame rate below which a tier steps down.
const LowFPSThreshold = 30.0

func (t Tier) String() string {
	switch t {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Ultra:
		return "ultra"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier parses a tier name as written in config files.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return Low, nil
	case "medium":
		return Medium, nil
	case "high":
		return High, nil
	case "ultra":
		return Ultra, nil
	}
	return Low, fmt.Errorf("%w: %q", ErrUnknownTier, s)
}

// Hints are the device capability signals available at startup.
// Zero values mean "unknown".
type Hints struct {
	MemoryGB    float64 `json:"memory_gb"`
	Cores       int     `json:"cores"`
	MeasuredFPS float64 `json:"measured_fps"`
}

// Bundle is the immutable set of constants derived for one tier.
type Bundle struct {
	Tier            Tier
	TargetFPS       float64
	BreathSpeed     float64 // Hz
	BreathAmplitude float64
	BlinkMin        float64 // seconds
	BlinkMax        float64
	BlinkHold       float64
	EmotionRate     float64 // per second

	// Forwarded to the renderer only.
	MaxPixelRatio float64
	ShadowMapSize int
	Antialias     bool
}

// Interval returns the minimum time between executed ticks.
func (b Bundle) Interval() float64 {
	if b.TargetFPS <= 0 {
		return 0
	}
	return 1 / b.TargetFPS
}

var bundles = [...]Bundle{
	Low: {
		Tier: Low, TargetFPS: 30,
		BreathSpeed: 0.2, BreathAmplitude: 0.006,
		BlinkMin: 2.5, BlinkMax: 6, BlinkHold: 0.15,
		EmotionRate:   3,
		MaxPixelRatio: 1, ShadowMapSize: 0, Antialias: false,
	},
	Medium: {
		Tier: Medium, TargetFPS: 45,
		BreathSpeed: 0.22, BreathAmplitude: 0.008,
		BlinkMin: 2, BlinkMax: 6, BlinkHold: 0.15,
		EmotionRate:   4,
		MaxPixelRatio: 1.5, ShadowMapSize: 512, Antialias: false,
	},
	High: {
		Tier: High, TargetFPS: 60,
		BreathSpeed: 0.25, BreathAmplitude: 0.008,
		BlinkMin: 2, BlinkMax: 6, BlinkHold: 0.15,
		EmotionRate:   6,
		MaxPixelRatio: 2, ShadowMapSize: 1024, Antialias: true,
	},
	Ultra: {
		Tier: Ultra, TargetFPS: 60,
		BreathSpeed: 0.25, BreathAmplitude: 0.01,
		BlinkMin: 2, BlinkMax: 5, BlinkHold: 0.12,
		EmotionRate:   6,
		MaxPixelRatio: 2, ShadowMapSize: 2048, Antialias: true,
	},
}

// BundleFor returns the constant bundle for t. Out-of-range tiers resolve to Low.
func BundleFor(t Tier) Bundle {
	if t < Low || t > Ultra {
		return bundles[Low]
	}
	return bundles[t]
}

// Detect classifies the hints and returns the matching bundle.
// Missing hints land on Low. A measured frame rate under LowFPSThreshold
// lowers the result by one tier.
func Detect(h Hints) Bundle {
	t := classify(h)
	if h.MeasuredFPS > 0 && h.MeasuredFPS < LowFPSThreshold && t > Low {
		t--
	}
	return BundleFor(t)
}

func classify(h Hints) Tier {
	mem, cores := h.MemoryGB, h.Cores
	switch {
	case mem <= 0 || cores <= 0:
		return Low
	case mem >= 8 && cores >= 8:
		return Ultra
	case mem >= 4 && cores >= 4:
		return High
	case mem >= 2 && cores >= 2:
		return Medium
	default:
		return Low
	}
}
