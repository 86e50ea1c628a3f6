// Package bridge connects renderer clients to the frame loop over WebSocket.
// Frames and host chrome updates flow out; pointer, lifecycle, speech and
// audio input flow in.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/normanking/avatarloop/internal/avatar3d"
	"github.com/normanking/avatarloop/internal/frame"
	"github.com/normanking/avatarloop/internal/speech"
	"github.com/normanking/avatarloop/internal/tier"
)

// ErrUnknownMessage is returned for an inbound type the bridge does not handle.
var ErrUnknownMessage = errors.New("unknown message type")

// Inbound message types.
const (
	MsgHello      = "hello"
	MsgPointer    = "pointer"
	MsgBlur       = "blur"
	MsgVisibility = "visibility"
	MsgFocus      = "focus"
	MsgResize     = "resize"
	MsgLoading    = "loading"
	MsgLoaded     = "loaded"
	MsgFailed     = "failed"
	MsgRestart    = "restart"
	MsgSpeech     = "speech"
	MsgSay        = "say"
)

// Outbound message types.
const (
	MsgWelcome = "welcome"
	MsgFrame   = "frame"
	MsgTier    = "tier"
	MsgChrome  = "chrome"
)

// Inbound is the union of every client message. Fields are read by Type.
type Inbound struct {
	Type string `json:"type"`

	// hello
	Bones []string `json:"bones,omitempty"`

	// pointer: phase is down, move, up or cancel; t is milliseconds
	Phase string  `json:"phase,omitempty"`
	ID    int     `json:"id,omitempty"`
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
	T     float64 `json:"t,omitempty"`

	// hello, resize
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`

	// visibility, focus
	Visible *bool `json:"visible,omitempty"`
	Focused *bool `json:"focused,omitempty"`

	// failed
	Error string `json:"error,omitempty"`

	// speech, say
	Text  string `json:"text,omitempty"`
	Final bool   `json:"final,omitempty"`
}

// Events translates a client message into loop events. hello and say
// carry no loop event of their own and are handled by the hub.
func (m Inbound) Events() ([]frame.Event, error) {
	switch m.Type {
	case MsgHello:
		evs := []frame.Event{{Kind: frame.EventVisibility, On: true}}
		if m.Width > 0 && m.Height > 0 {
			evs = append(evs, frame.Event{Kind: frame.EventResize, Width: m.Width, Height: m.Height})
		}
		return evs, nil
	case MsgPointer:
		kind, err := pointerKind(m.Phase)
		if err != nil {
			return nil, err
		}
		return []frame.Event{{Kind: kind, ID: m.ID, X: m.X, Y: m.Y, At: m.T / 1000}}, nil
	case MsgBlur:
		return []frame.Event{{Kind: frame.EventBlur}}, nil
	case MsgVisibility:
		return []frame.Event{{Kind: frame.EventVisibility, On: m.Visible == nil || *m.Visible}}, nil
	case MsgFocus:
		return []frame.Event{{Kind: frame.EventFocus, On: m.Focused == nil || *m.Focused}}, nil
	case MsgResize:
		return []frame.Event{{Kind: frame.EventResize, Width: m.Width, Height: m.Height}}, nil
	case MsgLoading:
		return []frame.Event{{Kind: frame.EventLoadStarted}}, nil
	case MsgLoaded:
		return []frame.Event{{Kind: frame.EventLoaded}}, nil
	case MsgFailed:
		msg := m.Error
		if msg == "" {
			msg = "renderer failed"
		}
		return []frame.Event{{Kind: frame.EventFailed, Err: errors.New(msg)}}, nil
	case MsgRestart:
		return []frame.Event{{Kind: frame.EventRestart}}, nil
	case MsgSpeech:
		return []frame.Event{{
			Kind:   frame.EventSpeechResult,
			Speech: speech.Result{Text: m.Text, Final: m.Final},
		}}, nil
	case MsgSay:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, m.Type)
	}
}

func pointerKind(phase string) (frame.EventKind, error) {
	switch phase {
	case "down":
		return frame.EventPointerDown, nil
	case "move":
		return frame.EventPointerMove, nil
	case "up":
		return frame.EventPointerUp, nil
	case "cancel":
		return frame.EventPointerCancel, nil
	default:
		return 0, fmt.Errorf("%w: pointer phase %q", ErrUnknownMessage, phase)
	}
}

// RenderSettings are the tier constants only the renderer needs.
type RenderSettings struct {
	Tier          string  `json:"tier"`
	TargetFPS     float64 `json:"target_fps"`
	MaxPixelRatio float64 `json:"max_pixel_ratio"`
	ShadowMapSize int     `json:"shadow_map_size"`
	Antialias     bool    `json:"antialias"`
}

func renderSettings(b tier.Bundle) RenderSettings {
	return RenderSettings{
		Tier:          b.Tier.String(),
		TargetFPS:     b.TargetFPS,
		MaxPixelRatio: b.MaxPixelRatio,
		ShadowMapSize: b.ShadowMapSize,
		Antialias:     b.Antialias,
	}
}

// Chrome is a host chrome instruction: show or hide a status button, or
// raise a blocking alert.
type Chrome struct {
	Action string `json:"action"` // status, hide, alert
	Text   string `json:"text,omitempty"`
	Close  bool   `json:"close,omitempty"`
}

// Outbound is every server message.
type Outbound struct {
	Type     string          `json:"type"`
	ClientID string          `json:"client_id,omitempty"`
	Frame    *avatar3d.Frame `json:"frame,omitempty"`
	Render   *RenderSettings `json:"render,omitempty"`
	Chrome   *Chrome         `json:"chrome,omitempty"`
}

func encode(m Outbound) ([]byte, error) {
	return json.Marshal(m)
}
