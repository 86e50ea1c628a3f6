// Package audio turns raw amplitude buffers into a smoothed mouth-open level.
package audio

import (
	"errors"
)

// Common errors
var (
	ErrDeviceNotFound = errors.New("audio device not found")
	ErrInvalidFormat  = errors.New("invalid audio format")
	ErrEmptyClip      = errors.New("audio clip has no samples")
)

// Source kinds selectable from config.
const (
	SourceNone    = "none"
	SourcePush    = "push"
	SourceFile    = "file"
	SourceCapture = "capture"
)

// Source exposes the most recent amplitude buffer. ok is false when the
// source is unavailable (never granted, stopped, or finished).
type Source interface {
	Latest() (samples []float32, ok bool)
}

// Config holds envelope and source configuration.
type Config struct {
	Source     string  `json:"source"`      // none, push, file, capture
	Alpha      float64 `json:"alpha"`       // one-pole smoothing factor (0,1]
	Gain       float64 `json:"gain"`        // applied after smoothing
	SampleRate int     `json:"sample_rate"` // capture rate, default 16000
	FrameSize  int     `json:"frame_size"`  // samples per capture read
	WAVPath    string  `json:"wav_path"`    // clip for the file source
	Loop       bool    `json:"loop"`        // loop the clip
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Source:     SourcePush,
		Alpha:      0.35,
		Gain:       4,
		SampleRate: 16000,
		FrameSize:  512,
		Loop:       true,
	}
}

// unavailable is a Source that never has data.
type unavailable struct{}

func (unavailable) Latest() ([]float32, bool) { return nil, false }

// Unavailable returns a Source that always reports no data.
func Unavailable() Source { return unavailable{} }
