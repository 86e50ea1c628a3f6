package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/normanking/avatarloop/internal/audio"
	"github.com/normanking/avatarloop/internal/audio/capture"
	"github.com/normanking/avatarloop/internal/bridge"
	"github.com/normanking/avatarloop/internal/bus"
	"github.com/normanking/avatarloop/internal/config"
	"github.com/normanking/avatarloop/internal/frame"
	"github.com/normanking/avatarloop/internal/logging"
	"github.com/normanking/avatarloop/internal/metrics"
	"github.com/normanking/avatarloop/internal/speech"
	"github.com/normanking/avatarloop/internal/tier"
)

var (
	runListen   string
	runHeadless bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Serve renderers and drive the animation loop",
	Long: `Start the renderer WebSocket server and the frame loop.

Renderers connect to the WebSocket path, report their bones and loading
progress, forward pointer and speech input, and receive one parameter batch
per executed frame. Metrics are served in Prometheus format.

Example:
  avatarloop run
  avatarloop run --listen :8765 --headless`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runListen, "listen", "l", "", "listen address (overrides bridge.listen)")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "mark the avatar loaded without a renderer")
}

func serve(ctx context.Context) error {
	store, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := store.Config()

	logs, err := logging.New(&logging.Config{
		LogDir:  cfg.Log.Dir,
		Level:   logging.LogLevel(cfg.Log.Level),
		Console: cfg.Log.Console,
		File:    cfg.Log.File,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logs.Close()
	logger := logs.Component("main")
	if store.File() != "" {
		logger.Info().Str("file", store.File()).Msg("Loaded configuration")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	events := bus.NewEventBus()

	bundle := cfg.Bundle(tier.HostHints())
	logger.Info().
		Str("tier", bundle.Tier.String()).
		Float64("target_fps", bundle.TargetFPS).
		Msg("Selected performance tier")

	source, push, closeSource, err := openSource(ctx, cfg, events, logs.Component("audio"))
	if err != nil {
		return err
	}
	defer closeSource()

	hubOpts := bridge.Options{
		Bundle:         bundle,
		SendBuffer:     cfg.Bridge.SendBuffer,
		PCMBitDepth:    cfg.Audio.PCMBitDepth,
		LoadingText:    cfg.Bridge.LoadingText,
		AllowedOrigins: cfg.Bridge.AllowedOrigins,
		Bus:            events,
		Metrics:        m,
		Logger:         logs.Zerolog(),
	}
	if push != nil {
		hubOpts.Audio = push
	}
	hub := bridge.NewHub(nil, hubOpts)
	defer hub.Close()

	sched, err := frame.New(bundle, cfg.FrameConfig(), frame.Deps{
		Sink:    hub,
		Source:  source,
		Bus:     events,
		Metrics: m,
		Logger:  logs.Zerolog(),
	})
	if err != nil {
		return err
	}
	hub.Attach(sched)

	synth := speech.NewCommandSynthesizer(cfg.SynthConfig(), logs.Zerolog())
	if !synth.IsAvailable() {
		logger.Warn().Msg("Speech synthesizer not found; say requests will fail")
	}
	hub.SetOnSay(func(text string) { sched.Speak(ctx, synth, text) })

	store.Watch(func(next *config.Config, err error) {
		if err != nil {
			logger.Warn().Err(err).Msg("Ignoring invalid configuration change")
			return
		}
		logger.Info().Msg("Configuration reloaded")
		sched.Post(frame.Event{Kind: frame.EventTune, Tune: next.Tuning()})
	})

	listen := cfg.Bridge.Listen
	if runListen != "" {
		listen = runListen
	}
	srv := &http.Server{
		Addr:              listen,
		Handler:           routes(cfg, hub, sched, logs, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info().Str("addr", listen).Str("ws", cfg.Bridge.WSPath).Msg("Renderer bridge listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("serve: %w", err)
		}
	}()

	if runHeadless {
		sched.Post(frame.Event{Kind: frame.EventLoadStarted})
		sched.Post(frame.Event{Kind: frame.EventLoaded})
	}

	ticker := time.NewTicker(refreshInterval(cfg.Scheduler.RefreshRate))
	defer ticker.Stop()
	go func() {
		errCh <- sched.Run(ctx, ticker.C)
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Warn().Err(serr).Msg("HTTP shutdown failed")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openSource builds the configured audio source. push is non-nil when
// renderer clients feed the audio.
func openSource(ctx context.Context, cfg *config.Config, events *bus.EventBus, logger zerolog.Logger) (audio.Source, *audio.PushSource, func(), error) {
	noop := func() {}

	switch cfg.Audio.Source {
	case audio.SourcePush:
		p := audio.NewPushSource()
		return p, p, noop, nil

	case audio.SourceFile:
		f, err := audio.LoadWAV(cfg.Audio.WAVPath, cfg.Audio.FrameSize, cfg.Audio.Loop)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("load %s: %w", cfg.Audio.WAVPath, err)
		}
		f.Play()
		logger.Info().Str("path", cfg.Audio.WAVPath).Dur("duration", f.Duration()).Msg("Playing audio clip")
		return f, nil, f.Stop, nil

	case audio.SourceCapture:
		c := capture.New(cfg.AudioConfig(), logger)
		if err := c.Start(ctx); err != nil {
			// the avatar keeps animating with a closed mouth
			logger.Warn().Err(err).Msg("Microphone unavailable")
			events.Publish(bus.Event{
				Type: bus.EventTypeAudioUnavailable,
				Data: map[string]any{"error": err.Error()},
			})
			return audio.Unavailable(), nil, noop, nil
		}
		return c, nil, func() { _ = c.Close() }, nil
	}
	return audio.Unavailable(), nil, noop, nil
}

func routes(cfg *config.Config, hub *bridge.Hub, sched *frame.Scheduler, logs *logging.Logger, reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(cfg.Bridge.WSPath, hub)
	mux.Handle(cfg.Bridge.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc(cfg.Bridge.StatusPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sched.Status())
	})
	mux.HandleFunc("/logs", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		writeJSON(w, logs.GetHistory(limit))
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func refreshInterval(hz float64) time.Duration {
	if hz <= 0 {
		hz = 60
	}
	return time.Duration(float64(time.Second) / hz)
}
