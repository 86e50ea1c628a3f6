// Package metrics exposes Prometheus instruments for the animation loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Skip reasons for FramesSkipped.
const (
	SkipNotReady  = "not_ready"
	SkipThrottled = "throttled"
	SkipPanic     = "panic"
)

// Metrics groups every instrument. Construct one per registry.
type Metrics struct {
	FramesExecuted prometheus.Counter
	FramesSkipped  *prometheus.CounterVec
	TickDuration   prometheus.Histogram
	Tier           prometheus.Gauge
	Lifecycle      prometheus.Gauge
	AudioLevel     prometheus.Gauge
	Gestures       *prometheus.CounterVec
	InboxDropped   prometheus.Counter
	BridgeClients  prometheus.Gauge
	BridgeDropped  prometheus.Counter
}

// New registers the instruments on reg. A nil reg uses a private registry,
// which keeps tests independent.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		FramesExecuted: f.NewCounter(prometheus.CounterOpts{
			Name: "avatarloop_frames_executed_total",
			Help: "Ticks that ran the full update and submitted a frame",
		}),
		FramesSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "avatarloop_frames_skipped_total",
			Help: "Display callbacks that did no animation work",
		}, []string{"reason"}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "avatarloop_tick_duration_seconds",
			Help:    "Time spent inside one executed tick",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
		}),
		Tier: f.NewGauge(prometheus.GaugeOpts{
			Name: "avatarloop_performance_tier",
			Help: "Active performance tier (0 low .. 3 ultra)",
		}),
		Lifecycle: f.NewGauge(prometheus.GaugeOpts{
			Name: "avatarloop_lifecycle_state",
			Help: "Lifecycle state (0 booting, 1 loading, 2 ready, 3 suspended, 4 error)",
		}),
		AudioLevel: f.NewGauge(prometheus.GaugeOpts{
			Name: "avatarloop_audio_level",
			Help: "Last mouth-open level from the envelope follower",
		}),
		Gestures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "avatarloop_gestures_total",
			Help: "Classified gestures by kind",
		}, []string{"kind"}),
		InboxDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "avatarloop_inbox_dropped_total",
			Help: "Async events dropped because the inbox was full",
		}),
		BridgeClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "avatarloop_bridge_clients",
			Help: "Connected renderer clients",
		}),
		BridgeDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "avatarloop_bridge_frames_dropped_total",
			Help: "Frames not delivered to a slow renderer client",
		}),
	}
}
