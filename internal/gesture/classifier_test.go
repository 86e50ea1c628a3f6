package gesture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClassifier() *Classifier {
	c := NewClassifier(DefaultConfig())
	c.Resize(400, 800)
	return c
}

func kinds(gs []Gesture) []Kind {
	out := make([]Kind, len(gs))
	for i, g := range gs {
		out[i] = g.Kind
	}
	return out
}

func TestClassifier_SingleTap(t *testing.T) {
	c := newClassifier()
	c.Down(1, 200, 400, 0)
	c.Up(1, 200, 400, 0.05)

	gs := c.Take()
	require.Len(t, gs, 1)
	assert.Equal(t, Tap, gs[0].Kind)
	assert.Equal(t, 0.0, gs[0].X)
	assert.Equal(t, 0.0, gs[0].Y)

	assert.Empty(t, c.Take(), "edge events are delivered once")
}

func TestClassifier_DoubleTapConsumesPriorTap(t *testing.T) {
	c := newClassifier()
	c.Down(1, 100, 100, 0)
	c.Up(1, 100, 100, 0.05)
	assert.Equal(t, []Kind{Tap}, kinds(c.Take()))

	c.Down(1, 100, 100, 0.2)
	c.Up(1, 100, 100, 0.25)
	assert.Equal(t, []Kind{DoubleTap}, kinds(c.Take()))

	// a third tap right after starts a new pair instead of another double
	c.Down(1, 100, 100, 0.3)
	c.Up(1, 100, 100, 0.35)
	assert.Equal(t, []Kind{Tap}, kinds(c.Take()))
}

func TestClassifier_TapsOutsideWindow(t *testing.T) {
	c := newClassifier()
	c.Down(1, 100, 100, 0)
	c.Up(1, 100, 100, 0.05)
	c.Down(1, 100, 100, 1)
	c.Up(1, 100, 100, 1.05)
	assert.Equal(t, []Kind{Tap, Tap}, kinds(c.Take()))
}

func TestClassifier_LongPressIsNotATap(t *testing.T) {
	c := newClassifier()
	c.Down(1, 100, 100, 0)
	c.Up(1, 100, 100, 0.8)
	assert.Empty(t, c.Take())
}

func TestClassifier_SwipeDirections(t *testing.T) {
	tests := []struct {
		name   string
		dx, dy float64
		want   Direction
	}{
		{name: "right", dx: 50, dy: 5, want: Right},
		{name: "left", dx: -50, dy: 10, want: Left},
		{name: "up", dx: 3, dy: -40, want: Up},
		{name: "down", dx: -8, dy: 60, want: Down},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClassifier()
			c.Down(1, 200, 400, 0)
			c.Move(1, 200+tt.dx, 400+tt.dy, 0.05)
			c.Up(1, 200+tt.dx, 400+tt.dy, 0.1)

			gs := c.Take()
			require.Len(t, gs, 1)
			assert.Equal(t, Swipe, gs[0].Kind)
			assert.Equal(t, tt.want, gs[0].Direction)
		})
	}
}

func TestClassifier_SwipeDirectionFixedAtCrossing(t *testing.T) {
	c := newClassifier()
	c.Down(1, 200, 400, 0)
	c.Move(1, 215, 401, 0.02)
	c.Move(1, 215, 300, 0.04)
	c.Move(1, 100, 200, 0.06)
	c.Up(1, 100, 200, 0.08)

	gs := c.Take()
	require.Len(t, gs, 1)
	assert.Equal(t, Right, gs[0].Direction)
}

func TestClassifier_SmallJitterStillTaps(t *testing.T) {
	c := newClassifier()
	c.Down(1, 200, 400, 0)
	c.Move(1, 204, 403, 0.02)
	c.Up(1, 204, 403, 0.05)
	assert.Equal(t, []Kind{Tap}, kinds(c.Take()))
}

func TestClassifier_PinchScale(t *testing.T) {
	c := newClassifier()
	c.Down(1, 150, 400, 0)
	c.Down(2, 250, 400, 0.01)
	assert.Empty(t, c.Take())

	c.Move(1, 125, 400, 0.05)
	c.Move(2, 275, 400, 0.05)

	gs := c.Take()
	require.Len(t, gs, 1)
	assert.Equal(t, Pinch, gs[0].Kind)
	assert.InDelta(t, 1.5, gs[0].Scale, 1e-9)

	// reference was re-captured, so shrinking back to 100 is 100/150
	c.Move(1, 150, 400, 0.1)
	c.Move(2, 250, 400, 0.1)
	gs = c.Take()
	require.Len(t, gs, 1)
	assert.InDelta(t, 100.0/150.0, gs[0].Scale, 1e-9)

	assert.Empty(t, c.Take(), "no change, no event")

	c.Up(1, 150, 400, 0.2)
	c.Up(2, 250, 400, 0.21)
	assert.Empty(t, c.Take(), "lifting pinch fingers must not produce a tap")
}

func TestClassifier_PinchEndingWithinOneBatch(t *testing.T) {
	c := newClassifier()
	c.Down(1, 150, 400, 0)
	c.Down(2, 250, 400, 0.01)
	assert.Empty(t, c.Take())

	// the final spread and both lifts land before the next Take
	c.Move(1, 125, 400, 0.05)
	c.Move(2, 275, 400, 0.05)
	c.Up(1, 125, 400, 0.06)
	c.Up(2, 275, 400, 0.07)

	gs := c.Take()
	require.Len(t, gs, 1)
	assert.Equal(t, Pinch, gs[0].Kind)
	assert.InDelta(t, 1.5, gs[0].Scale, 1e-9)
	assert.Empty(t, c.Take())
}

func TestClassifier_SwipeOrPinchBreaksDoubleTap(t *testing.T) {
	t.Run("swipe", func(t *testing.T) {
		c := newClassifier()
		c.Down(1, 200, 400, 0)
		c.Up(1, 200, 400, 0.03)
		c.Down(1, 200, 400, 0.08)
		c.Move(1, 260, 400, 0.1)
		c.Up(1, 260, 400, 0.12)
		c.Down(1, 200, 400, 0.2)
		c.Up(1, 200, 400, 0.23)
		assert.Equal(t, []Kind{Tap, Swipe, Tap}, kinds(c.Take()))
	})

	t.Run("pinch", func(t *testing.T) {
		c := newClassifier()
		c.Down(1, 200, 400, 0)
		c.Up(1, 200, 400, 0.03)
		c.Down(1, 150, 400, 0.08)
		c.Down(2, 250, 400, 0.09)
		c.Up(1, 150, 400, 0.12)
		c.Up(2, 250, 400, 0.13)
		c.Down(1, 200, 400, 0.2)
		c.Up(1, 200, 400, 0.23)
		assert.Equal(t, []Kind{Tap, Tap}, kinds(c.Take()))
	})
}

func TestClassifier_PinchDiscardsPendingTap(t *testing.T) {
	c := newClassifier()
	c.Down(1, 100, 100, 0)
	c.Down(2, 200, 100, 0.02)
	c.Up(2, 200, 100, 0.04)
	c.Up(1, 100, 100, 0.05)
	assert.Empty(t, c.Take())
}

func TestClassifier_BlurResetsEverything(t *testing.T) {
	c := newClassifier()
	c.Down(1, 100, 100, 0)
	c.Up(1, 100, 100, 0.05)
	require.Equal(t, []Kind{Tap}, kinds(c.Take()))

	c.Down(1, 100, 100, 0.1)
	c.Blur()
	_, _, active := c.Pointer()
	assert.False(t, active)

	// the release after blur belongs to no gesture
	c.Up(1, 100, 100, 0.12)
	assert.Empty(t, c.Take())

	// and the tap before blur is forgotten, so this is a plain tap
	c.Down(1, 100, 100, 0.2)
	c.Up(1, 100, 100, 0.22)
	assert.Equal(t, []Kind{Tap}, kinds(c.Take()))
}

func TestClassifier_CancelMidSwipe(t *testing.T) {
	c := newClassifier()
	c.Down(1, 100, 100, 0)
	c.Move(1, 105, 100, 0.01)
	c.Cancel()
	c.Move(1, 300, 100, 0.02)
	assert.Empty(t, c.Take())
}

func TestClassifier_Pointer(t *testing.T) {
	c := newClassifier()
	x, y, active := c.Pointer()
	assert.False(t, active)
	assert.Zero(t, x)
	assert.Zero(t, y)

	c.Down(1, 400, 0, 0)
	x, y, active = c.Pointer()
	assert.True(t, active)
	assert.Equal(t, 1.0, x)
	assert.Equal(t, 1.0, y)

	c.Move(1, 100, 600, 0.1)
	x, y, _ = c.Pointer()
	assert.InDelta(t, -0.5, x, 1e-9)
	assert.InDelta(t, -0.5, y, 1e-9)

	c.Move(1, -50, 5000, 0.2)
	x, y, _ = c.Pointer()
	assert.Equal(t, -1.0, x)
	assert.Equal(t, -1.0, y)
}

func TestClassifier_UnknownPointerIgnored(t *testing.T) {
	c := newClassifier()
	c.Move(9, 1, 1, 0)
	c.Up(9, 1, 1, 0)
	assert.Empty(t, c.Take())
	assert.False(t, c.Active())
}
