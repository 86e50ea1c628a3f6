package frame

import (
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/avatarloop/internal/avatar3d"
	"github.com/normanking/avatarloop/internal/emotion"
	"github.com/normanking/avatarloop/internal/lifecycle"
	"github.com/normanking/avatarloop/internal/metrics"
	"github.com/normanking/avatarloop/internal/speech"
	"github.com/normanking/avatarloop/internal/tier"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	s       *Scheduler
	clock   *fakeClock
	sink    *avatar3d.RecordingSink
	metrics *metrics.Metrics
}

func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.Drift.IdleAfter = 0
	cfg.Reactions.Tap = &Target{Valence: 1, Arousal: 0.5}
	return cfg
}

func newHarness(t *testing.T, bundle tier.Bundle, cfg Config) *harness {
	t.Helper()
	h := &harness{
		clock:   newFakeClock(),
		sink:    &avatar3d.RecordingSink{},
		metrics: metrics.New(nil),
	}
	s, err := New(bundle, cfg, Deps{
		Sink:    h.sink,
		Clock:   h.clock,
		Rand:    rand.New(rand.NewSource(1)),
		Metrics: h.metrics,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	h.s = s
	return h
}

// ready loads the avatar and absorbs the clock-reset frame.
func (h *harness) ready(t *testing.T) {
	t.Helper()
	h.s.Post(Event{Kind: EventLoadStarted})
	h.s.Post(Event{Kind: EventLoaded})
	assert.False(t, h.s.Frame())
	require.Equal(t, lifecycle.Ready, h.s.Lifecycle().State())
}

func (h *harness) step(d time.Duration) bool {
	h.clock.Advance(d)
	return h.s.Frame()
}

func TestNew_RequiresSink(t *testing.T) {
	_, err := New(tier.BundleFor(tier.Low), DefaultConfig(), Deps{})
	assert.Error(t, err)
}

func TestScheduler_NoWorkUntilReady(t *testing.T) {
	h := newHarness(t, tier.BundleFor(tier.High), quietConfig())

	for i := 0; i < 5; i++ {
		assert.False(t, h.step(100*time.Millisecond))
	}
	assert.Empty(t, h.sink.Frames())
	assert.Equal(t, 5.0, testutil.ToFloat64(h.metrics.FramesSkipped.WithLabelValues(metrics.SkipNotReady)))

	h.ready(t)
	assert.True(t, h.step(20*time.Millisecond))
	assert.Len(t, h.sink.Frames(), 1)
}

func TestScheduler_SuspendedDoesNoWorkAndResumeClampsDelta(t *testing.T) {
	h := newHarness(t, tier.BundleFor(tier.High), quietConfig())
	h.ready(t)
	require.True(t, h.step(20*time.Millisecond))

	h.s.Post(Event{Kind: EventVisibility, On: false})
	for i := 0; i < 10; i++ {
		assert.False(t, h.step(time.Second))
	}
	assert.Equal(t, lifecycle.Suspended, h.s.Lifecycle().State())
	assert.Len(t, h.sink.Frames(), 1)

	h.s.Post(Event{Kind: EventVisibility, On: true})
	h.clock.Advance(time.Hour)
	assert.False(t, h.s.Frame(), "the resume frame only resets the clock")

	require.True(t, h.step(30*time.Millisecond))
	last, ok := h.sink.Last()
	require.True(t, ok)
	assert.InDelta(t, 0.03, last.DeltaTime, 1e-9)
	assert.LessOrEqual(t, last.DeltaTime, 0.1)
}

func TestScheduler_DeltaClamped(t *testing.T) {
	h := newHarness(t, tier.BundleFor(tier.High), quietConfig())
	h.ready(t)

	require.True(t, h.step(2*time.Second))
	last, _ := h.sink.Last()
	assert.Equal(t, 0.1, last.DeltaTime)
}

func TestScheduler_ThrottleKeepsRemainder(t *testing.T) {
	h := newHarness(t, tier.BundleFor(tier.Low), quietConfig())
	h.ready(t)

	executed := 0
	for i := 0; i < 200; i++ {
		if h.step(10 * time.Millisecond) {
			executed++
		}
	}
	// 30 fps over two seconds of 100 Hz refreshes; dropping the remainder
	// would yield 50.
	assert.InDelta(t, 60, executed, 2)
	assert.Positive(t, testutil.ToFloat64(h.metrics.FramesSkipped.WithLabelValues(metrics.SkipThrottled)))
}

func TestScheduler_EmotionClosedForm(t *testing.T) {
	bundle := tier.BundleFor(tier.High)
	h := newHarness(t, bundle, quietConfig())
	h.ready(t)

	h.s.Emotion().SetTarget(1, 0)
	for i := 0; i < 50; i++ {
		require.True(t, h.step(100*time.Millisecond))
	}

	want := 1 - math.Pow(1-bundle.EmotionRate*0.1, 50)
	assert.InDelta(t, want, h.s.Emotion().Current().Valence, 1e-9)
}

func TestScheduler_GestureAppliesToNextEmotionTick(t *testing.T) {
	h := newHarness(t, tier.BundleFor(tier.High), quietConfig())
	h.ready(t)

	h.s.Post(Event{Kind: EventPointerDown, ID: 1, X: 100, Y: 100, At: 1.0})
	h.s.Post(Event{Kind: EventPointerUp, ID: 1, X: 101, Y: 100, At: 1.1})

	require.True(t, h.step(50*time.Millisecond))
	first, _ := h.sink.Last()
	assert.Zero(t, first.Expressions["happy"], "emotion ticks before gestures are read")
	assert.Equal(t, emotion.State{Valence: 1, Arousal: 0.5}, h.s.Emotion().Target())

	require.True(t, h.step(50*time.Millisecond))
	second, _ := h.sink.Last()
	assert.Greater(t, second.Expressions["happy"], 0.0)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Gestures.WithLabelValues("tap")))
}

func TestScheduler_EventsWaitForExecutedTick(t *testing.T) {
	h := newHarness(t, tier.BundleFor(tier.Low), quietConfig())
	h.ready(t)
	require.True(t, h.step(40*time.Millisecond))

	h.s.Post(Event{Kind: EventPointerDown, ID: 1, X: 10, Y: 10, At: 2.0})
	h.s.Post(Event{Kind: EventPointerUp, ID: 1, X: 10, Y: 10, At: 2.05})
	assert.False(t, h.step(5*time.Millisecond))
	assert.Equal(t, emotion.State{}, h.s.Emotion().Target())

	assert.True(t, h.step(40*time.Millisecond))
	assert.Equal(t, 1.0, h.s.Emotion().Target().Valence)
}

func TestScheduler_SuspendDropsPointerInput(t *testing.T) {
	h := newHarness(t, tier.BundleFor(tier.High), quietConfig())
	h.ready(t)

	h.s.Post(Event{Kind: EventPointerDown, ID: 1, X: 10, Y: 10, At: 1})
	h.s.Post(Event{Kind: EventFocus, On: false})
	h.s.Post(Event{Kind: EventPointerUp, ID: 1, X: 10, Y: 10, At: 1.05})
	assert.False(t, h.step(20*time.Millisecond))

	h.s.Post(Event{Kind: EventFocus, On: true})
	h.step(20 * time.Millisecond)
	require.True(t, h.step(20*time.Millisecond))
	assert.Equal(t, emotion.State{}, h.s.Emotion().Target())
}

func TestScheduler_PanicSkipsFrame(t *testing.T) {
	clock := newFakeClock()
	m := metrics.New(nil)
	calls := 0
	sink := avatar3d.SinkFunc(func(avatar3d.Frame) {
		calls++
		if calls == 1 {
			panic("renderer went away")
		}
	})
	s, err := New(tier.BundleFor(tier.High), quietConfig(), Deps{Sink: sink, Clock: clock, Metrics: m, Logger: zerolog.Nop()})
	require.NoError(t, err)

	s.Post(Event{Kind: EventLoadStarted})
	s.Post(Event{Kind: EventLoaded})
	s.Frame()

	clock.Advance(20 * time.Millisecond)
	assert.False(t, s.Frame())
	clock.Advance(20 * time.Millisecond)
	assert.True(t, s.Frame())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesSkipped.WithLabelValues(metrics.SkipPanic)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesExecuted))
}

func TestScheduler_LoadTimeout(t *testing.T) {
	cfg := quietConfig()
	cfg.LoadTimeout = 5
	h := newHarness(t, tier.BundleFor(tier.High), cfg)

	h.s.Post(Event{Kind: EventLoadStarted})
	h.step(time.Second)
	assert.Equal(t, lifecycle.Loading, h.s.Lifecycle().State())

	h.step(6 * time.Second)
	assert.Equal(t, lifecycle.Error, h.s.Lifecycle().State())
	assert.ErrorIs(t, h.s.Lifecycle().Err(), lifecycle.ErrLoadTimeout)
	assert.Equal(t, "error", h.s.Status().State)

	h.s.Post(Event{Kind: EventLoaded})
	h.step(time.Second)
	assert.Equal(t, lifecycle.Error, h.s.Lifecycle().State(), "error is sticky")

	h.s.Post(Event{Kind: EventRestart})
	h.step(time.Second)
	assert.Equal(t, lifecycle.Booting, h.s.Lifecycle().State())
}

func TestScheduler_TierDowngrade(t *testing.T) {
	h := newHarness(t, tier.BundleFor(tier.High), quietConfig())
	h.ready(t)

	for i := 0; i < tier.WindowSize-1; i++ {
		require.True(t, h.step(50*time.Millisecond))
	}
	assert.Equal(t, tier.High, h.s.Bundle().Tier)

	require.True(t, h.step(50*time.Millisecond))
	assert.Equal(t, tier.Medium, h.s.Bundle().Tier)
	assert.Equal(t, float64(tier.Medium), testutil.ToFloat64(h.metrics.Tier))
}

func TestScheduler_Speech(t *testing.T) {
	cfg := quietConfig()
	cfg.WakePhrases = []string{"hey nova"}
	h := newHarness(t, tier.BundleFor(tier.High), cfg)
	h.ready(t)

	h.s.Post(Event{Kind: EventSpeechResult, Speech: speech.Result{Text: "Hey Nova", Final: false}})
	h.step(20 * time.Millisecond)
	assert.Equal(t, emotion.State{}, h.s.Emotion().Target())

	h.s.Post(Event{Kind: EventSpeechResult, Speech: speech.Result{Text: "Hey Nova", Final: true}})
	h.step(20 * time.Millisecond)
	wake := cfg.Reactions.Wake
	assert.Equal(t, emotion.State{Valence: wake.Valence, Arousal: wake.Arousal}, h.s.Emotion().Target())

	h.s.Post(Event{Kind: EventSpeakingStarted})
	h.step(20 * time.Millisecond)
	assert.True(t, h.s.Status().Speaking)
	assert.Equal(t, h.s.Emotion().ResolveBlended(), h.s.Emotion().Target())
	assert.Greater(t, h.s.Emotion().Target().Valence, 0.3)

	h.s.Post(Event{Kind: EventSpeakingEnded})
	h.step(20 * time.Millisecond)
	done := cfg.Reactions.Finished
	assert.False(t, h.s.Status().Speaking)
	assert.Equal(t, emotion.State{Valence: done.Valence, Arousal: done.Arousal}, h.s.Emotion().Target())
	assert.Equal(t, 1.0, h.s.Emotion().Weights()[emotion.Neutral])
}

func TestScheduler_OverlappingUtterances(t *testing.T) {
	cfg := quietConfig()
	h := newHarness(t, tier.BundleFor(tier.High), cfg)
	h.ready(t)

	h.s.Post(Event{Kind: EventSpeakingStarted})
	h.step(20 * time.Millisecond)
	h.s.Post(Event{Kind: EventSpeakingStarted})
	h.step(20 * time.Millisecond)
	speakingTarget := h.s.Emotion().Target()

	h.s.Post(Event{Kind: EventSpeakingEnded})
	h.step(20 * time.Millisecond)
	assert.True(t, h.s.Status().Speaking, "second utterance still playing")
	assert.Equal(t, speakingTarget, h.s.Emotion().Target())

	h.s.Post(Event{Kind: EventSpeakingEnded})
	h.step(20 * time.Millisecond)
	done := cfg.Reactions.Finished
	assert.False(t, h.s.Status().Speaking)
	assert.Equal(t, emotion.State{Valence: done.Valence, Arousal: done.Arousal}, h.s.Emotion().Target())

	// a stray end does not underflow into a stuck speaking state
	h.s.Post(Event{Kind: EventSpeakingEnded})
	h.step(20 * time.Millisecond)
	h.s.Post(Event{Kind: EventSpeakingStarted})
	h.step(20 * time.Millisecond)
	h.s.Post(Event{Kind: EventSpeakingEnded})
	h.step(20 * time.Millisecond)
	assert.False(t, h.s.Status().Speaking)
}

func TestScheduler_DriftWaitsForSilence(t *testing.T) {
	cfg := quietConfig()
	cfg.Drift = emotion.DefaultDriftConfig()
	h := newHarness(t, tier.BundleFor(tier.High), cfg)
	h.ready(t)

	h.s.Post(Event{Kind: EventSpeakingStarted})
	h.step(20 * time.Millisecond)
	speakingTarget := h.s.Emotion().Target()

	// sixteen seconds of one long utterance
	for i := 0; i < 800; i++ {
		h.step(20 * time.Millisecond)
	}
	assert.False(t, h.s.Emotion().Drifting())
	assert.Equal(t, speakingTarget, h.s.Emotion().Target())

	h.s.Post(Event{Kind: EventSpeakingEnded})
	for i := 0; i < 800; i++ {
		h.step(20 * time.Millisecond)
	}
	require.True(t, h.s.Emotion().Drifting(), "silence lets drift resume")

	// a finger on the avatar holds the target too
	h.s.Post(Event{Kind: EventPointerDown, ID: 1, X: 100, Y: 100})
	for i := 0; i < 800; i++ {
		h.step(20 * time.Millisecond)
	}
	assert.False(t, h.s.Emotion().Drifting())
}

func TestScheduler_PinchEndingInOneFrame(t *testing.T) {
	h := newHarness(t, tier.BundleFor(tier.High), quietConfig())
	h.ready(t)

	h.s.Post(Event{Kind: EventPointerDown, ID: 1, X: 150, Y: 100, At: 1})
	h.s.Post(Event{Kind: EventPointerDown, ID: 2, X: 250, Y: 100, At: 1})
	h.step(20 * time.Millisecond)

	h.s.Post(Event{Kind: EventPointerMove, ID: 1, X: 125, Y: 100, At: 1.05})
	h.s.Post(Event{Kind: EventPointerMove, ID: 2, X: 275, Y: 100, At: 1.05})
	h.s.Post(Event{Kind: EventPointerUp, ID: 1, X: 125, Y: 100, At: 1.06})
	h.s.Post(Event{Kind: EventPointerUp, ID: 2, X: 275, Y: 100, At: 1.06})
	h.step(20 * time.Millisecond)

	last, _ := h.sink.Last()
	assert.InDelta(t, 1.5, last.Zoom, 1e-9)
}

func TestScheduler_PinchZoomAndTuning(t *testing.T) {
	h := newHarness(t, tier.BundleFor(tier.High), quietConfig())
	h.ready(t)

	h.s.Post(Event{Kind: EventPointerDown, ID: 1, X: 100, Y: 100, At: 1})
	h.s.Post(Event{Kind: EventPointerDown, ID: 2, X: 200, Y: 100, At: 1})
	h.step(20 * time.Millisecond)
	h.s.Post(Event{Kind: EventPointerMove, ID: 2, X: 300, Y: 100, At: 1.1})
	h.step(20 * time.Millisecond)

	last, _ := h.sink.Last()
	assert.InDelta(t, 2.0, last.Zoom, 1e-9)

	gain := 0.5
	h.s.Post(Event{Kind: EventTune, Tune: &Tuning{AudioGain: &gain}})
	h.step(20 * time.Millisecond)
	assert.Equal(t, 0.5, h.s.cfg.AudioGain)
}

func TestReactions_TapTargetRandom(t *testing.T) {
	r := DefaultReactions()
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 20; i++ {
		got := r.tapTarget(rng)
		assert.Equal(t, 1.0, math.Abs(got.Valence))
		assert.GreaterOrEqual(t, got.Arousal, 0.0)
		assert.Less(t, got.Arousal, 1.0)
	}
}

func TestReactions_ZoomClamped(t *testing.T) {
	r := DefaultReactions()
	assert.Equal(t, r.ZoomMax, r.zoom(2, 10))
	assert.Equal(t, r.ZoomMin, r.zoom(1, 0.01))
	assert.InDelta(t, 1.5, r.zoom(1, 1.5), 1e-12)
}

func TestInbox_DropsMovesWhenFull(t *testing.T) {
	b := inbox{limit: 2}
	assert.True(t, b.push(Event{Kind: EventPointerMove}))
	assert.True(t, b.push(Event{Kind: EventPointerMove}))
	assert.False(t, b.push(Event{Kind: EventPointerMove}))
	assert.True(t, b.push(Event{Kind: EventVisibility}))
	assert.Len(t, b.drain(), 3)
	assert.Nil(t, b.drain())
}
