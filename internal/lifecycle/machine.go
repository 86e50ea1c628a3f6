// Package lifecycle tracks the application's coarse mode and gates the frame loop.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrLoadTimeout is the failure recorded when loading takes too long.
var ErrLoadTimeout = errors.New("avatar load timed out")

// State is the application mode.
type State int

const (
	Booting State = iota
	Loading
	Ready
	Suspended
	Error
)

func (s State) String() string {
	switch s {
	case Booting:
		return "booting"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Suspended:
		return "suspended"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TransitionFunc observes a state change.
type TransitionFunc func(from, to State)

// Machine is the lifecycle state machine. Every operation returns whether
// the state changed; invalid or repeated requests are no-ops.
// It is owned by the frame loop and is not safe for concurrent use.
type Machine struct {
	state   State
	visible bool
	focused bool
	err     error
	hooks   []TransitionFunc
	logger  zerolog.Logger
}

// NewMachine starts in Booting, visible and focused.
func NewMachine(logger zerolog.Logger) *Machine {
	return &Machine{
		state:   Booting,
		visible: true,
		focused: true,
		logger:  logger.With().Str("component", "lifecycle").Logger(),
	}
}

// OnTransition registers a hook called after every state change.
func (m *Machine) OnTransition(fn TransitionFunc) {
	m.hooks = append(m.hooks, fn)
}

func (m *Machine) State() State { return m.state }

// Err returns the failure that moved the machine to Error.
func (m *Machine) Err() error { return m.err }

// Running reports whether generators should tick.
func (m *Machine) Running() bool { return m.state == Ready }

// Visible reports whether the surface is both visible and focused.
func (m *Machine) Visible() bool { return m.visible && m.focused }

// StartLoading moves Booting to Loading.
func (m *Machine) StartLoading() bool {
	if m.state != Booting {
		return m.reject("start loading")
	}
	return m.transition(Loading)
}

// MarkReady finishes loading. If the surface is hidden at that moment the
// machine goes straight to Suspended.
func (m *Machine) MarkReady() bool {
	if m.state != Loading {
		return m.reject("mark ready")
	}
	if !m.Visible() {
		return m.transition(Suspended)
	}
	return m.transition(Ready)
}

// Suspend moves Ready to Suspended.
func (m *Machine) Suspend() bool {
	if m.state != Ready {
		return false
	}
	return m.transition(Suspended)
}

// Resume moves Suspended to Ready.
func (m *Machine) Resume() bool {
	if m.state != Suspended {
		return false
	}
	return m.transition(Ready)
}

// SetVisible records page visibility and suspends or resumes accordingly.
func (m *Machine) SetVisible(visible bool) bool {
	m.visible = visible
	return m.follow()
}

// SetFocused records window focus and suspends or resumes accordingly.
func (m *Machine) SetFocused(focused bool) bool {
	m.focused = focused
	return m.follow()
}

func (m *Machine) follow() bool {
	if m.Visible() {
		return m.Resume()
	}
	return m.Suspend()
}

// Fail moves any state to Error. The first error is kept.
func (m *Machine) Fail(err error) bool {
	if m.state == Error {
		return false
	}
	if err == nil {
		err = errors.New("unknown failure")
	}
	m.err = err
	m.logger.Error().Err(err).Str("from", m.state.String()).Msg("Lifecycle failed")
	return m.transition(Error)
}

// Restart leaves Error and begins again from Booting.
func (m *Machine) Restart() bool {
	if m.state != Error {
		return m.reject("restart")
	}
	m.err = nil
	return m.transition(Booting)
}

func (m *Machine) transition(to State) bool {
	from := m.state
	if from == to {
		return false
	}
	m.state = to
	m.logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("Lifecycle transition")
	for _, fn := range m.hooks {
		fn(from, to)
	}
	return true
}

func (m *Machine) reject(op string) bool {
	m.logger.Debug().Str("state", m.state.String()).Str("op", op).Msg("Ignoring lifecycle request")
	return false
}
