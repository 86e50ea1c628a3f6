// Package frame drives the per-frame animation update: it drains async
// input, gates on the lifecycle, throttles to the tier's frame rate and
// writes one parameter batch to the avatar per executed tick.
package frame

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/avatarloop/internal/audio"
	"github.com/normanking/avatarloop/internal/avatar3d"
	"github.com/normanking/avatarloop/internal/bus"
	"github.com/normanking/avatarloop/internal/emotion"
	"github.com/normanking/avatarloop/internal/gesture"
	"github.com/normanking/avatarloop/internal/lifecycle"
	"github.com/normanking/avatarloop/internal/metrics"
	"github.com/normanking/avatarloop/internal/motion"
	"github.com/normanking/avatarloop/internal/speech"
	"github.com/normanking/avatarloop/internal/tier"
)

// Config holds the loop's tunables.
type Config struct {
	MaxDelta    float64 // seconds; executed ticks never see a larger dt
	LoadTimeout float64 // seconds in Loading before failing; <=0 disables
	InboxLimit  int

	BreathArousalGain float64
	HeadMaxAngle      float64 // radians
	HeadSpeed         float64

	Drift       emotion.DriftConfig
	Gaze        motion.IdleGazeConfig
	Gesture     gesture.Config
	AudioAlpha  float64
	AudioGain   float64
	WakePhrases []string
	FillerWords []string
	Reactions   Reactions
}

// DefaultConfig returns the stock loop settings.
func DefaultConfig() Config {
	ac := audio.DefaultConfig()
	return Config{
		MaxDelta:          0.1,
		LoadTimeout:       30,
		InboxLimit:        1024,
		BreathArousalGain: 0.5,
		HeadMaxAngle:      0.3,
		HeadSpeed:         6,
		Drift:             emotion.DefaultDriftConfig(),
		Gaze:              motion.DefaultIdleGazeConfig(),
		Gesture:           gesture.DefaultConfig(),
		AudioAlpha:        ac.Alpha,
		AudioGain:         ac.Gain,
		Reactions:         DefaultReactions(),
	}
}

// Deps are the loop's collaborators. Sink is required.
type Deps struct {
	Sink    avatar3d.Sink
	Source  audio.Source // nil means no audio
	Clock   Clock
	Rand    *rand.Rand
	Bus     *bus.EventBus
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

// Status is a snapshot of the loop, safe to read from any goroutine.
type Status struct {
	Lifecycle lifecycle.State `json:"-"`
	State     string          `json:"state"`
	Tier      string          `json:"tier"`
	TargetFPS float64         `json:"target_fps"`
	Valence   float64         `json:"valence"`
	Arousal   float64         `json:"arousal"`
	Mouth     float64         `json:"mouth"`
	Speaking  bool            `json:"speaking"`
	Frames    uint64          `json:"frames"`
	Error     string          `json:"error,omitempty"`
}

// Scheduler is the frame loop. Frame and Run must be called from a single
// goroutine; Post is safe from anywhere.
type Scheduler struct {
	cfg    Config
	logger zerolog.Logger
	clock  Clock
	rng    *rand.Rand
	sink   avatar3d.Sink
	source audio.Source
	bus    *bus.EventBus
	m      *metrics.Metrics

	inbox   inbox
	pending []Event

	life      *lifecycle.Machine
	adapter   *tier.Adapter
	bundle    tier.Bundle
	emotion   *emotion.Model
	breathing *motion.Breathing
	blink     *motion.Blink
	gaze      *motion.IdleGaze
	follower  *audio.Follower
	gestures  *gesture.Classifier
	gate      *speech.Gate
	mapper    *avatar3d.StateMapper

	start        time.Time
	lastTick     time.Time // throttle reference, keeps the remainder
	prevExec     time.Time // previous executed tick, for dt
	resetClock   bool
	loadingSince time.Time
	runTime      float64
	zoom         float64
	speaking     bool
	utterances   int // overlapping Speak calls still playing
	frames       uint64
	transitions  uint64

	statusMu sync.RWMutex
	status   Status
}

// New builds a loop for the given starting bundle.
func New(bundle tier.Bundle, cfg Config, deps Deps) (*Scheduler, error) {
	if deps.Sink == nil {
		return nil, fmt.Errorf("frame: sink is required")
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.MaxDelta <= 0 {
		cfg.MaxDelta = 0.1
	}

	logger := deps.Logger.With().Str("component", "frame").Logger()
	rng := deps.Rand

	s := &Scheduler{
		cfg:       cfg,
		logger:    logger,
		clock:     deps.Clock,
		rng:       rng,
		sink:      deps.Sink,
		source:    deps.Source,
		bus:       deps.Bus,
		m:         deps.Metrics,
		inbox:     inbox{limit: cfg.InboxLimit},
		life:      lifecycle.NewMachine(deps.Logger),
		adapter:   tier.NewAdapter(bundle, deps.Logger),
		bundle:    bundle,
		emotion:   emotion.NewModel(bundle.EmotionRate, cfg.Drift, rng),
		breathing: motion.NewBreathing(bundle.BreathSpeed, bundle.BreathAmplitude, cfg.BreathArousalGain, rng),
		blink:     motion.NewBlink(bundle.BlinkMin, bundle.BlinkMax, bundle.BlinkHold, rng),
		gaze:      motion.NewIdleGaze(cfg.Gaze, rng),
		follower:  audio.NewFollower(cfg.AudioAlpha, cfg.AudioGain),
		gestures:  gesture.NewClassifier(cfg.Gesture),
		gate:      speech.NewGate(cfg.WakePhrases, cfg.FillerWords),
		mapper:    avatar3d.NewStateMapper(avatar3d.NewHeadTracker(cfg.HeadMaxAngle, cfg.HeadSpeed), cfg.HeadMaxAngle),
		start:     deps.Clock.Now(),
		zoom:      1,
	}
	s.life.OnTransition(s.onTransition)

	if s.m != nil {
		s.m.Tier.Set(float64(bundle.Tier))
		s.m.Lifecycle.Set(float64(s.life.State()))
	}
	s.publishStatus()
	return s, nil
}

// Post queues an event for the next frame. Pointer events without a
// timestamp are stamped with the loop clock.
func (s *Scheduler) Post(e Event) {
	if e.Kind.pointer() && e.At == 0 {
		e.At = s.clock.Now().Sub(s.start).Seconds()
	}
	if !s.inbox.push(e) && s.m != nil {
		s.m.InboxDropped.Inc()
	}
}

// Speak runs text through synth on its own goroutine. Start and end are
// delivered to the loop as events.
func (s *Scheduler) Speak(ctx context.Context, synth speech.Synthesizer, text string) {
	go func() {
		err := synth.Speak(ctx, text, speech.Callbacks{
			OnStart: func() { s.Post(Event{Kind: EventSpeakingStarted}) },
			OnEnd:   func(error) { s.Post(Event{Kind: EventSpeakingEnded}) },
		})
		if err != nil {
			s.logger.Warn().Err(err).Msg("Speech synthesis failed")
		}
	}()
}

// Run calls Frame on every refresh signal until ctx is done.
func (s *Scheduler) Run(ctx context.Context, refresh <-chan time.Time) error {
	s.logger.Info().
		Str("tier", s.bundle.Tier.String()).
		Float64("targetFps", s.bundle.TargetFPS).
		Msg("Frame loop started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Uint64("frames", s.frames).Msg("Frame loop stopped")
			return ctx.Err()
		case <-refresh:
			s.Frame()
		}
	}
}

// Frame handles one display refresh and reports whether a tick executed.
func (s *Scheduler) Frame() bool {
	now := s.clock.Now()
	s.drain()
	defer s.publishStatus()

	if s.life.State() == lifecycle.Loading && s.cfg.LoadTimeout > 0 &&
		now.Sub(s.loadingSince).Seconds() > s.cfg.LoadTimeout {
		s.life.Fail(fmt.Errorf("after %.0fs: %w", s.cfg.LoadTimeout, lifecycle.ErrLoadTimeout))
	}

	if !s.life.Running() {
		s.skip(metrics.SkipNotReady)
		return false
	}

	if s.resetClock {
		s.resetClock = false
		s.lastTick = now
		s.prevExec = now
		s.skip(metrics.SkipThrottled)
		return false
	}

	elapsed := now.Sub(s.lastTick).Seconds()
	interval := s.bundle.Interval()
	if elapsed < interval {
		s.skip(metrics.SkipThrottled)
		return false
	}
	if interval > 0 {
		s.lastTick = now.Add(-seconds(math.Mod(elapsed, interval)))
	} else {
		s.lastTick = now
	}

	wall := now.Sub(s.prevExec).Seconds()
	s.prevExec = now
	dt := math.Min(wall, s.cfg.MaxDelta)

	if !s.tick(dt) {
		return false
	}

	if b, changed := s.adapter.Observe(wall); changed {
		s.applyBundle(b)
	}
	return true
}

// tick runs one update. A panic inside is logged and the frame skipped.
func (s *Scheduler) tick(dt float64) (ok bool) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn().Interface("panic", r).Msg("Frame update failed")
			s.skip(metrics.SkipPanic)
			ok = false
		}
	}()

	s.applyPending()

	if s.speaking || s.gestures.Active() {
		s.emotion.Hold()
	}
	s.emotion.Tick(dt)

	s.runTime += dt
	current := s.emotion.Current()
	breath := s.breathing.Value(s.runTime, current.Arousal)
	blink := s.blink.Tick(dt)

	look := s.lookTarget()
	if look.Active {
		s.gaze.NoteExternal()
	}
	idle := s.gaze.Tick(dt)

	mouth := s.follower.Poll(s.source)

	for _, g := range s.gestures.Take() {
		s.react(g)
	}

	fr := s.mapper.Build(avatar3d.Inputs{
		Emotion: current,
		Blink:   blink,
		Mouth:   mouth,
		Breath:  breath,
		Idle:    idle,
		Look:    look,
		Zoom:    s.zoom,
	}, dt)
	if r, ok := s.sink.(avatar3d.BoneReporter); ok {
		fr = avatar3d.DropMissingBones(fr, r)
	}
	s.sink.Submit(fr)
	s.frames++

	if s.m != nil {
		s.m.FramesExecuted.Inc()
		s.m.AudioLevel.Set(mouth)
		s.m.TickDuration.Observe(time.Since(started).Seconds())
	}
	return true
}

// lookTarget is the pointer while a contact is down, otherwise straight
// ahead while speaking.
func (s *Scheduler) lookTarget() avatar3d.LookTarget {
	if x, y, active := s.gestures.Pointer(); active {
		return avatar3d.LookTarget{X: x, Y: y, Active: true}
	}
	if s.speaking {
		return avatar3d.LookTarget{Active: true}
	}
	return avatar3d.LookTarget{}
}

// drain applies lifecycle events now and defers the rest to the next
// executed tick.
func (s *Scheduler) drain() {
	for _, e := range s.inbox.drain() {
		if e.Kind.lifecycle() {
			s.applyLifecycle(e)
			continue
		}
		s.pending = append(s.pending, e)
	}
	if limit := s.cfg.InboxLimit; limit > 0 && len(s.pending) > limit {
		dropped := len(s.pending) - limit
		s.pending = append(s.pending[:0], s.pending[dropped:]...)
		if s.m != nil {
			s.m.InboxDropped.Add(float64(dropped))
		}
	}
}

func (s *Scheduler) applyLifecycle(e Event) {
	switch e.Kind {
	case EventVisibility:
		s.life.SetVisible(e.On)
	case EventFocus:
		s.life.SetFocused(e.On)
		if !e.On {
			s.pending = append(s.pending, Event{Kind: EventBlur})
		}
	case EventLoadStarted:
		s.life.StartLoading()
	case EventLoaded:
		s.life.MarkReady()
	case EventFailed:
		s.life.Fail(e.Err)
	case EventRestart:
		s.life.Restart()
	}
}

func (s *Scheduler) applyPending() {
	events := s.pending
	s.pending = nil
	for _, e := range events {
		switch e.Kind {
		case EventPointerDown:
			s.gestures.Down(e.ID, e.X, e.Y, e.At)
		case EventPointerMove:
			s.gestures.Move(e.ID, e.X, e.Y, e.At)
		case EventPointerUp:
			s.gestures.Up(e.ID, e.X, e.Y, e.At)
		case EventPointerCancel:
			s.gestures.Cancel()
		case EventBlur:
			s.gestures.Blur()
		case EventResize:
			s.gestures.Resize(e.Width, e.Height)
		case EventSpeechResult:
			s.onSpeech(e.Speech)
		case EventSpeakingStarted:
			s.utterances++
			if s.utterances > 1 {
				continue
			}
			s.speaking = true
			s.emotion.SetBlendWeights(s.cfg.Reactions.Speaking)
			blended := s.emotion.ResolveBlended()
			s.emotion.SetTarget(blended.Valence, blended.Arousal)
			s.publish(bus.EventTypeSpeakingStart, nil)
		case EventSpeakingEnded:
			if s.utterances > 0 {
				s.utterances--
			}
			if s.utterances > 0 {
				continue
			}
			s.speaking = false
			s.emotion.SetBlendWeights(restWeights())
			t := s.cfg.Reactions.Finished
			s.emotion.SetTarget(t.Valence, t.Arousal)
			s.publish(bus.EventTypeSpeakingStop, nil)
		case EventTune:
			s.applyTuning(e.Tune)
		}
	}
}

func restWeights() emotion.BlendWeights {
	w := make(emotion.BlendWeights)
	for _, p := range emotion.Presets() {
		w[p] = 0
	}
	w[emotion.Neutral] = 1
	return w
}

func (s *Scheduler) onSpeech(r speech.Result) {
	phrase, ok := s.gate.Accept(r)
	if !ok {
		if r.Final {
			s.publish(bus.EventTypeSpeechRejected, map[string]any{"text": r.Text})
		}
		return
	}
	t := s.cfg.Reactions.Wake
	s.emotion.SetTarget(t.Valence, t.Arousal)
	s.gaze.NoteExternal()
	s.logger.Debug().Str("phrase", phrase).Msg("Wake phrase")
	s.publish(bus.EventTypeWakePhrase, map[string]any{"phrase": phrase})
}

func (s *Scheduler) react(g gesture.Gesture) {
	r := s.cfg.Reactions
	switch g.Kind {
	case gesture.Tap:
		t := r.tapTarget(s.rng)
		s.emotion.SetTarget(t.Valence, t.Arousal)
	case gesture.DoubleTap:
		s.emotion.SetTarget(r.DoubleTap.Valence, r.DoubleTap.Arousal)
	case gesture.Swipe:
		if t, ok := r.Swipe[g.Direction]; ok {
			s.emotion.SetTarget(t.Valence, t.Arousal)
		}
	case gesture.Pinch:
		s.zoom = r.zoom(s.zoom, g.Scale)
	}

	if s.m != nil {
		s.m.Gestures.WithLabelValues(g.Kind.String()).Inc()
	}
	s.publish(bus.EventTypeGesture, map[string]any{
		"kind":      g.Kind.String(),
		"direction": g.Direction.String(),
		"scale":     g.Scale,
		"x":         g.X,
		"y":         g.Y,
	})
}

func (s *Scheduler) applyTuning(t *Tuning) {
	if t == nil {
		return
	}
	if t.AudioGain != nil {
		s.follower.SetGain(*t.AudioGain)
		s.cfg.AudioGain = *t.AudioGain
	}
	if t.Gesture != nil {
		s.gestures.SetConfig(*t.Gesture)
		s.cfg.Gesture = *t.Gesture
	}
	if t.Reactions != nil {
		s.cfg.Reactions = *t.Reactions
	}
	s.logger.Info().Msg("Applied runtime tuning")
}

func (s *Scheduler) applyBundle(b tier.Bundle) {
	s.bundle = b
	s.emotion.Retune(b.EmotionRate)
	s.breathing.Retune(b.BreathSpeed, b.BreathAmplitude)
	s.blink.Retune(b.BlinkMin, b.BlinkMax, b.BlinkHold)
	if s.m != nil {
		s.m.Tier.Set(float64(b.Tier))
	}
	s.publish(bus.EventTypeTierChanged, map[string]any{
		"tier":       b.Tier.String(),
		"target_fps": b.TargetFPS,
	})
}

func (s *Scheduler) onTransition(from, to lifecycle.State) {
	switch to {
	case lifecycle.Loading:
		s.loadingSince = s.clock.Now()
	case lifecycle.Ready:
		s.resetClock = true
	case lifecycle.Suspended:
		s.gestures.Cancel()
		s.dropPointerEvents()
	}
	if s.m != nil {
		s.m.Lifecycle.Set(float64(to))
	}
	s.transitions++
	data := map[string]any{"from": from.String(), "to": to.String(), "seq": s.transitions}
	if to == lifecycle.Error && s.life.Err() != nil {
		data["error"] = s.life.Err().Error()
	}
	s.publish(bus.EventTypeLifecycleChanged, data)
}

// dropPointerEvents discards queued pointer input so a gesture cannot span
// a suspension.
func (s *Scheduler) dropPointerEvents() {
	kept := s.pending[:0]
	for _, e := range s.pending {
		if e.Kind.pointer() {
			continue
		}
		kept = append(kept, e)
	}
	s.pending = kept
}

func (s *Scheduler) skip(reason string) {
	if s.m != nil {
		s.m.FramesSkipped.WithLabelValues(reason).Inc()
	}
}

func (s *Scheduler) publish(t bus.EventType, data map[string]any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{Type: t, Data: data})
}

func (s *Scheduler) publishStatus() {
	cur := s.emotion.Current()
	st := Status{
		Lifecycle: s.life.State(),
		State:     s.life.State().String(),
		Tier:      s.bundle.Tier.String(),
		TargetFPS: s.bundle.TargetFPS,
		Valence:   cur.Valence,
		Arousal:   cur.Arousal,
		Mouth:     s.follower.Level(),
		Speaking:  s.speaking,
		Frames:    s.frames,
	}
	if err := s.life.Err(); err != nil {
		st.Error = err.Error()
	}
	s.statusMu.Lock()
	s.status = st
	s.statusMu.Unlock()
}

// Status returns the snapshot taken after the last frame.
func (s *Scheduler) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// Bundle returns the active tier bundle. Loop goroutine only.
func (s *Scheduler) Bundle() tier.Bundle { return s.bundle }

// Emotion exposes the model. Loop goroutine only.
func (s *Scheduler) Emotion() *emotion.Model { return s.emotion }

// Lifecycle exposes the state machine. Loop goroutine only.
func (s *Scheduler) Lifecycle() *lifecycle.Machine { return s.life }

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
