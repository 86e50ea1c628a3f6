package bridge

import (
	"github.com/normanking/avatarloop/internal/bus"
	"github.com/normanking/avatarloop/internal/tier"
)

// chromeFor maps a lifecycle state name to the host chrome instruction.
// A nil result leaves the chrome as it is.
func (h *Hub) chromeFor(state, errText string) *Chrome {
	switch state {
	case "booting", "loading":
		return &Chrome{Action: "status", Text: h.opts.LoadingText}
	case "ready":
		return &Chrome{Action: "hide"}
	case "error":
		text := "Failed to load avatar"
		if errText != "" {
			text += ": " + errText
		}
		return &Chrome{Action: "alert", Text: text, Close: true}
	default:
		return nil
	}
}

// onLifecycle runs on a bus goroutine, so stale transitions are dropped by
// their sequence number.
func (h *Hub) onLifecycle(e bus.Event) {
	to, _ := e.Data["to"].(string)
	seq, _ := e.Data["seq"].(uint64)
	errText, _ := e.Data["error"].(string)

	chrome := h.chromeFor(to, errText)
	if chrome == nil {
		return
	}

	h.mu.Lock()
	if seq != 0 && seq <= h.chromeSeq {
		h.mu.Unlock()
		return
	}
	h.chromeSeq = seq
	h.chrome = chrome
	h.mu.Unlock()

	h.logger.Debug().Str("state", to).Str("action", chrome.Action).Msg("Host chrome update")
	h.broadcast(Outbound{Type: MsgChrome, Chrome: chrome})
}

func (h *Hub) onTier(e bus.Event) {
	name, _ := e.Data["tier"].(string)
	t, err := tier.ParseTier(name)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Ignoring tier change")
		return
	}
	render := renderSettings(tier.BundleFor(t))

	h.mu.Lock()
	h.render = render
	h.mu.Unlock()

	h.broadcast(Outbound{Type: MsgTier, Render: &render})
}
