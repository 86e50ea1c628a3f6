package avatar3d

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/normanking/avatarloop/internal/emotion"
	"github.com/normanking/avatarloop/internal/motion"
)

// LookTarget is a normalized external look direction.
type LookTarget struct {
	X, Y   float64
	Active bool
}

// Inputs is everything the mapper needs for one frame.
type Inputs struct {
	Emotion emotion.State
	Blink   float64
	Mouth   float64
	Breath  float64
	Idle    motion.Offset
	Look    LookTarget
	Zoom    float64
}

// StateMapper turns animation state into a sink frame.
type StateMapper struct {
	head     *HeadTracker
	maxAngle float64
	seq      uint64
}

func NewStateMapper(head *HeadTracker, maxAngle float64) *StateMapper {
	if head == nil {
		head = NewHeadTracker(maxAngle, 6)
	}
	return &StateMapper{head: head, maxAngle: maxAngle}
}

// Build produces the next frame.
func (m *StateMapper) Build(in Inputs, dt float64) Frame {
	var w ExpressionWeights
	m.applyEmotion(&w, in.Emotion)
	w.Set(ExprAa, in.Mouth)
	w.Set(ExprBlink, in.Blink)

	lookX, lookY := m.lookDirection(in)
	m.applyGaze(&w, lookX, lookY)

	head := m.head.Update(m.head.Target(lookX, lookY), dt)

	m.seq++
	zoom := in.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	return Frame{
		Seq:         m.seq,
		DeltaTime:   dt,
		Expressions: w.Map(),
		Bones: map[string]BonePose{
			BoneHead:  {Rotation: head},
			BoneChest: {Rotation: mgl32.QuatIdent(), Offset: mgl32.Vec3{0, float32(in.Breath), 0}},
		},
		Zoom: zoom,
	}
}

// lookDirection prefers the external target; otherwise the idle offset,
// expressed as a fraction of the max angle.
func (m *StateMapper) lookDirection(in Inputs) (x, y float64) {
	if in.Look.Active {
		return clamp(in.Look.X, -1, 1), clamp(in.Look.Y, -1, 1)
	}
	if m.maxAngle <= 0 {
		return 0, 0
	}
	return clamp(in.Idle.Yaw/m.maxAngle, -1, 1), clamp(in.Idle.Pitch/m.maxAngle, -1, 1)
}

func (m *StateMapper) applyEmotion(w *ExpressionWeights, s emotion.State) {
	v, a := s.Valence, s.Arousal

	if v > 0 {
		w.Set(ExprHappy, v*0.8)
	} else {
		w.Set(ExprSad, -v*0.6)
	}

	if a > 0.7 {
		w.Set(ExprAngry, a*0.5)
	}

	if a < 0.3 && v >= 0 {
		w.Set(ExprRelaxed, (0.3-a)/0.3*0.5)
	}

	if a > 0.85 && v >= 0 {
		w.Set(ExprSurprised, (a-0.85)/0.15*0.6)
	}
}

func (m *StateMapper) applyGaze(w *ExpressionWeights, x, y float64) {
	if x > 0 {
		w.Set(ExprLookRight, x*0.8)
	} else {
		w.Set(ExprLookLeft, -x*0.8)
	}
	if y > 0 {
		w.Set(ExprLookUp, y*0.6)
	} else {
		w.Set(ExprLookDown, -y*0.6)
	}
}

// Head exposes the tracker, e.g. to reset it after a resume.
func (m *StateMapper) Head() *HeadTracker { return m.head }
