// Package avatar3d defines the parameter batch written to the avatar each
// frame and maps animation state onto it.
package avatar3d

import (
	"encoding/json"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// Bone names written by the loop.
const (
	BoneHead  = "head"
	BoneChest = "chest"
)

// BonePose is a small local rotation and positional offset for one bone.
type BonePose struct {
	Rotation mgl32.Quat
	Offset   mgl32.Vec3
}

func (b BonePose) MarshalJSON() ([]byte, error) {
	q := b.Rotation
	return json.Marshal(struct {
		Rotation [4]float32 `json:"rotation"`
		Offset   [3]float32 `json:"offset"`
	}{
		Rotation: [4]float32{q.V[0], q.V[1], q.V[2], q.W},
		Offset:   [3]float32(b.Offset),
	})
}

// Frame is one batch of normalized parameters.
type Frame struct {
	Seq         uint64              `json:"seq"`
	DeltaTime   float64             `json:"dt"`
	Expressions map[string]float64  `json:"expressions"`
	Bones       map[string]BonePose `json:"bones,omitempty"`
	Zoom        float64             `json:"zoom"`
}

// Sink accepts frames. Unknown parameter names must be ignored.
type Sink interface {
	Submit(Frame)
}

// BoneReporter is implemented by sinks that know which bones the loaded
// model actually has. Bones it does not have are dropped before submit.
type BoneReporter interface {
	HasBone(name string) bool
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Frame)

func (f SinkFunc) Submit(fr Frame) { f(fr) }

// MultiSink fans a frame out to several sinks.
type MultiSink []Sink

func (m MultiSink) Submit(fr Frame) {
	for _, s := range m {
		s.Submit(fr)
	}
}

// DropMissingBones removes bones the reporter does not know about.
func DropMissingBones(fr Frame, r BoneReporter) Frame {
	if r == nil || len(fr.Bones) == 0 {
		return fr
	}
	kept := make(map[string]BonePose, len(fr.Bones))
	for name, pose := range fr.Bones {
		if r.HasBone(name) {
			kept[name] = pose
		}
	}
	fr.Bones = kept
	return fr
}

// RecordingSink keeps every submitted frame.
type RecordingSink struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *RecordingSink) Submit(fr Frame) {
	r.mu.Lock()
	r.frames = append(r.frames, fr)
	r.mu.Unlock()
}

// Frames returns a copy of the recorded frames.
func (r *RecordingSink) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Frame, len(r.frames))
	copy(out, r.frames)
	return out
}

// Last returns the most recent frame.
func (r *RecordingSink) Last() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return Frame{}, false
	}
	return r.frames[len(r.frames)-1], true
}
