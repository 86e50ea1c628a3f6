package audio

import (
	"sync"
)

// PushSource holds the latest snapshot delivered by an external analyser,
// typically the renderer over the bridge.
type PushSource struct {
	mu     sync.RWMutex
	latest []float32
	ok     bool
}

// NewPushSource returns a source that is unavailable until the first Push.
func NewPushSource() *PushSource {
	return &PushSource{}
}

// Push stores a copy of samples as the latest snapshot.
func (p *PushSource) Push(samples []float32) {
	cp := make([]float32, len(samples))
	copy(cp, samples)

	p.mu.Lock()
	p.latest = cp
	p.ok = true
	p.mu.Unlock()
}

// PushPCM decodes raw PCM bytes and stores them.
func (p *PushSource) PushPCM(data []byte, bitDepth int) {
	p.Push(DecodePCM(data, bitDepth))
}

// MarkUnavailable drops the snapshot, e.g. when permission is revoked.
func (p *PushSource) MarkUnavailable() {
	p.mu.Lock()
	p.latest = nil
	p.ok = false
	p.mu.Unlock()
}

func (p *PushSource) Latest() ([]float32, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, p.ok
}
