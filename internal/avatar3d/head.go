package avatar3d

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// HeadTracker eases the head toward a look direction.
type HeadTracker struct {
	maxAngle float64
	speed    float64 // per second
	current  mgl32.Quat
}

// NewHeadTracker creates a tracker facing forward.
func NewHeadTracker(maxAngle, speed float64) *HeadTracker {
	return &HeadTracker{
		maxAngle: math.Abs(maxAngle),
		speed:    math.Max(0, speed),
		current:  mgl32.QuatIdent(),
	}
}

// Target converts a normalized look direction (x right, y up, both in
// [-1,1]) into a head rotation bounded by the max angle.
func (h *HeadTracker) Target(x, y float64) mgl32.Quat {
	pitch := clamp(y, -1, 1) * h.maxAngle
	yaw := clamp(x, -1, 1) * h.maxAngle
	return mgl32.AnglesToQuat(float32(pitch), float32(yaw), 0, mgl32.XYZ)
}

// Update slerps toward target and returns the new orientation.
func (h *HeadTracker) Update(target mgl32.Quat, dt float64) mgl32.Quat {
	if dt <= 0 || math.IsNaN(dt) {
		return h.current
	}
	t := 1 - math.Exp(-h.speed*dt)
	h.current = mgl32.QuatSlerp(h.current, target, float32(t)).Normalize()
	return h.current
}

// Current returns the head orientation.
func (h *HeadTracker) Current() mgl32.Quat { return h.current }

// Reset faces forward immediately.
func (h *HeadTracker) Reset() { h.current = mgl32.QuatIdent() }
