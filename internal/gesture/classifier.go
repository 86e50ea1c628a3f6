package gesture

import (
	"math"
)

type state int

const (
	stateIdle state = iota
	stateTouching
	stateSwiping
	statePinching
	stateReleasing // a pinch ended; wait for every contact to lift
)

type point struct{ x, y float64 }

// Classifier is a pointer state machine. It is driven by the frame loop
// and is not safe for concurrent use.
type Classifier struct {
	cfg   Config
	state state

	pointers map[int]point
	order    []int // contact ids in press order

	start     point
	startTime float64

	pinchRef float64

	lastTap    float64
	hasLastTap bool

	width, height float64

	pending []Gesture
}

// NewClassifier creates an idle classifier.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{
		cfg:      cfg,
		pointers: make(map[int]point, 2),
	}
}

// SetConfig replaces thresholds. In-progress gestures keep running.
func (c *Classifier) SetConfig(cfg Config) { c.cfg = cfg }

// Resize sets the surface size used to normalize positions.
func (c *Classifier) Resize(width, height float64) {
	if width < 0 || math.IsNaN(width) {
		width = 0
	}
	if height < 0 || math.IsNaN(height) {
		height = 0
	}
	c.width, c.height = width, height
}

// Down records a new contact.
func (c *Classifier) Down(id int, x, y, t float64) {
	if _, ok := c.pointers[id]; ok {
		return
	}

	switch c.state {
	case stateIdle:
		c.track(id, x, y)
		c.state = stateTouching
		c.start = point{x, y}
		c.startTime = t
	case stateTouching, stateSwiping:
		c.track(id, x, y)
		c.state = statePinching
		c.pinchRef = c.contactDistance()
		c.hasLastTap = false
	default:
		// third finger, or a finger landing while a pinch winds down
	}
}

// Move updates a contact's position.
func (c *Classifier) Move(id int, x, y, t float64) {
	if _, ok := c.pointers[id]; !ok {
		return
	}
	c.pointers[id] = point{x, y}

	if c.state != stateTouching || id != c.primary() {
		return
	}

	dx, dy := x-c.start.x, y-c.start.y
	if math.Hypot(dx, dy) <= c.cfg.DistanceThreshold {
		return
	}

	c.state = stateSwiping
	c.hasLastTap = false
	nx, ny := c.normalize(point{x, y})
	c.emit(Gesture{Kind: Swipe, Direction: direction(dx, dy), X: nx, Y: ny, At: t})
}

// Up releases a contact and classifies taps.
func (c *Classifier) Up(id int, x, y, t float64) {
	if _, ok := c.pointers[id]; !ok {
		return
	}
	c.pointers[id] = point{x, y}

	switch c.state {
	case stateTouching:
		if id == c.primary() {
			c.classifyRelease(x, y, t)
		}
	case statePinching:
		// movement since the last Take still counts
		c.flushPinch()
		c.state = stateReleasing
	}

	c.untrack(id)
	if len(c.pointers) == 0 {
		c.state = stateIdle
	}
}

func (c *Classifier) classifyRelease(x, y, t float64) {
	dist := math.Hypot(x-c.start.x, y-c.start.y)
	if dist > c.cfg.DistanceThreshold || t-c.startTime > c.cfg.TapMaxDuration {
		return
	}

	nx, ny := c.normalize(point{x, y})
	if c.hasLastTap && t-c.lastTap <= c.cfg.DoubleTapWindow {
		c.hasLastTap = false
		c.emit(Gesture{Kind: DoubleTap, X: nx, Y: ny, At: t})
		return
	}

	c.lastTap = t
	c.hasLastTap = true
	c.emit(Gesture{Kind: Tap, X: nx, Y: ny, At: t})
}

// Cancel drops every contact and any in-progress classification,
// including the remembered single tap.
func (c *Classifier) Cancel() {
	c.state = stateIdle
	c.pointers = make(map[int]point, 2)
	c.order = c.order[:0]
	c.pinchRef = 0
	c.hasLastTap = false
}

// Blur is a focus loss; it behaves like Cancel.
func (c *Classifier) Blur() { c.Cancel() }

// Take returns the gestures classified since the last call. While a pinch
// is active it also reports the scale change since the previous call and
// re-captures the reference distance.
func (c *Classifier) Take() []Gesture {
	if c.state == statePinching {
		c.flushPinch()
	}

	if len(c.pending) == 0 {
		return nil
	}
	out := c.pending
	c.pending = nil
	return out
}

// flushPinch emits the scale change since the reference distance was
// captured and re-captures it.
func (c *Classifier) flushPinch() {
	if len(c.order) < 2 {
		return
	}
	d := c.contactDistance()
	if c.pinchRef <= 0 {
		c.pinchRef = d
		return
	}
	if scale := d / c.pinchRef; math.Abs(scale-1) > 1e-6 {
		a, b := c.pointers[c.order[0]], c.pointers[c.order[1]]
		nx, ny := c.normalize(point{(a.x + b.x) / 2, (a.y + b.y) / 2})
		c.emit(Gesture{Kind: Pinch, Scale: scale, X: nx, Y: ny})
		c.pinchRef = d
	}
}

// Pointer returns the primary contact in normalized coordinates: x right
// and y up, both in [-1,1]. With no contact it returns (0, 0, false).
func (c *Classifier) Pointer() (x, y float64, active bool) {
	if len(c.order) == 0 {
		return 0, 0, false
	}
	x, y = c.normalize(c.pointers[c.primary()])
	return x, y, true
}

// Active reports whether any contact is down.
func (c *Classifier) Active() bool { return len(c.order) > 0 }

func (c *Classifier) normalize(p point) (float64, float64) {
	if c.width <= 0 || c.height <= 0 {
		return 0, 0
	}
	x := (p.x/c.width - 0.5) * 2
	y := -(p.y/c.height - 0.5) * 2
	return clamp(x), clamp(y)
}

func (c *Classifier) emit(g Gesture) {
	c.pending = append(c.pending, g)
}

func (c *Classifier) track(id int, x, y float64) {
	c.pointers[id] = point{x, y}
	c.order = append(c.order, id)
}

func (c *Classifier) untrack(id int) {
	delete(c.pointers, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Classifier) primary() int {
	if len(c.order) == 0 {
		return -1
	}
	return c.order[0]
}

func (c *Classifier) contactDistance() float64 {
	if len(c.order) < 2 {
		return 0
	}
	a, b := c.pointers[c.order[0]], c.pointers[c.order[1]]
	return math.Hypot(a.x-b.x, a.y-b.y)
}

// direction picks the axis of greatest displacement. Screen y grows downward.
func direction(dx, dy float64) Direction {
	if math.Abs(dx) >= math.Abs(dy) {
		if dx < 0 {
			return Left
		}
		return Right
	}
	if dy < 0 {
		return Up
	}
	return Down
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}
