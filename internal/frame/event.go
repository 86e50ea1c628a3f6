package frame

import (
	"sync"
	"time"

	"github.com/normanking/avatarloop/internal/gesture"
	"github.com/normanking/avatarloop/internal/speech"
)

// Clock is the monotonic time source for the loop.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock. time.Now carries a monotonic reading,
// so differences are immune to wall-clock jumps.
func SystemClock() Clock { return systemClock{} }

// EventKind identifies an async input to the loop.
type EventKind int

const (
	EventPointerDown EventKind = iota
	EventPointerMove
	EventPointerUp
	EventPointerCancel
	EventBlur
	EventResize
	EventVisibility
	EventFocus
	EventLoadStarted
	EventLoaded
	EventFailed
	EventRestart
	EventSpeechResult
	EventSpeakingStarted
	EventSpeakingEnded
	EventTune
)

func (k EventKind) lifecycle() bool {
	switch k {
	case EventVisibility, EventFocus, EventLoadStarted, EventLoaded, EventFailed, EventRestart:
		return true
	}
	return false
}

func (k EventKind) pointer() bool {
	switch k {
	case EventPointerDown, EventPointerMove, EventPointerUp:
		return true
	}
	return false
}

// Event is one async input. Fields are used according to Kind.
type Event struct {
	Kind EventKind

	// Pointer
	ID   int
	X, Y float64
	At   float64 // seconds; zero is stamped with the loop clock on Post

	// Resize
	Width, Height float64

	// Visibility, Focus
	On bool

	// Failed
	Err error

	// SpeechResult
	Speech speech.Result

	// Tune
	Tune *Tuning
}

// Tuning carries runtime-adjustable settings, typically from a config reload.
type Tuning struct {
	AudioGain *float64
	Gesture   *gesture.Config
	Reactions *Reactions
}

// inbox collects events from other goroutines until the next frame.
type inbox struct {
	mu     sync.Mutex
	events []Event
	limit  int
}

// push appends e. Pointer moves are dropped when the inbox is full; every
// other kind is always kept.
func (b *inbox) push(e Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.limit > 0 && len(b.events) >= b.limit && e.Kind == EventPointerMove {
		return false
	}
	b.events = append(b.events, e)
	return true
}

func (b *inbox) drain() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return nil
	}
	out := b.events
	b.events = nil
	return out
}
