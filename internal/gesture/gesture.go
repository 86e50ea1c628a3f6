// Package gesture classifies raw pointer sequences into discrete gestures.
package gesture

// Kind is the gesture class.
type Kind int

const (
	None Kind = iota
	Tap
	DoubleTap
	Swipe
	Pinch
)

func (k Kind) String() string {
	switch k {
	case Tap:
		return "tap"
	case DoubleTap:
		return "double_tap"
	case Swipe:
		return "swipe"
	case Pinch:
		return "pinch"
	default:
		return "none"
	}
}

// Direction is a swipe direction in screen terms.
type Direction int

const (
	DirNone Direction = iota
	Up
	Down
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "none"
	}
}

// Gesture is one classified edge event.
type Gesture struct {
	Kind      Kind
	Direction Direction // Swipe only
	Scale     float64   // Pinch only, ratio since the previous pinch event
	X, Y      float64   // normalized position where it happened
	At        float64   // event time, seconds
}

// Config holds the classification thresholds.
type Config struct {
	DistanceThreshold float64 // px; below is a tap, above is a swipe
	TapMaxDuration    float64 // seconds
	DoubleTapWindow   float64 // seconds between taps
}

// DefaultConfig returns thresholds tuned for touch screens.
func DefaultConfig() Config {
	return Config{
		DistanceThreshold: 10,
		TapMaxDuration:    0.3,
		DoubleTapWindow:   0.35,
	}
}
