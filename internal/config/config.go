// Package config provides configuration management for avatarloop
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/normanking/avatarloop/internal/audio"
	"github.com/normanking/avatarloop/internal/emotion"
	"github.com/normanking/avatarloop/internal/frame"
	"github.com/normanking/avatarloop/internal/gesture"
	"github.com/normanking/avatarloop/internal/motion"
	"github.com/normanking/avatarloop/internal/speech"
	"github.com/normanking/avatarloop/internal/tier"
)

// EnvPrefix prefixes every environment override, e.g. AVATARLOOP_AUDIO_GAIN.
const EnvPrefix = "AVATARLOOP"

var (
	ErrNotFound = errors.New("config file not found")
	ErrInvalid  = errors.New("invalid config")
)

// Config holds all application configuration
type Config struct {
	Device    DeviceConfig    `mapstructure:"device"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Emotion   EmotionConfig   `mapstructure:"emotion"`
	Audio     AudioConfig     `mapstructure:"audio"`
	Gesture   GestureConfig   `mapstructure:"gesture"`
	Gaze      GazeConfig      `mapstructure:"gaze"`
	Head      HeadConfig      `mapstructure:"head"`
	Speech    SpeechConfig    `mapstructure:"speech"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
	Log       LogConfig       `mapstructure:"log"`
}

// DeviceConfig overrides capability hints. Tier, when set, skips detection.
type DeviceConfig struct {
	Tier        string  `mapstructure:"tier"`
	MemoryGB    float64 `mapstructure:"memory_gb"`
	Cores       int     `mapstructure:"cores"`
	MeasuredFPS float64 `mapstructure:"measured_fps"`
}

// SchedulerConfig configures the frame loop
type SchedulerConfig struct {
	RefreshRate float64       `mapstructure:"refresh_rate"` // Hz of the refresh signal
	MaxDelta    float64       `mapstructure:"max_delta"`    // seconds
	LoadTimeout time.Duration `mapstructure:"load_timeout"`
	InboxLimit  int           `mapstructure:"inbox_limit"`
}

// TargetConfig is a valence/arousal pair
type TargetConfig struct {
	Valence float64 `mapstructure:"valence"`
	Arousal float64 `mapstructure:"arousal"`
}

// ReactionsConfig maps inputs to emotion targets
type ReactionsConfig struct {
	RandomTap  bool               `mapstructure:"random_tap"`
	Tap        TargetConfig       `mapstructure:"tap"`
	DoubleTap  TargetConfig       `mapstructure:"double_tap"`
	SwipeUp    TargetConfig       `mapstructure:"swipe_up"`
	SwipeDown  TargetConfig       `mapstructure:"swipe_down"`
	SwipeLeft  TargetConfig       `mapstructure:"swipe_left"`
	SwipeRight TargetConfig       `mapstructure:"swipe_right"`
	Wake       TargetConfig       `mapstructure:"wake"`
	Finished   TargetConfig       `mapstructure:"finished"`
	Speaking   map[string]float64 `mapstructure:"speaking"` // preset name -> weight
	ZoomMin    float64            `mapstructure:"zoom_min"`
	ZoomMax    float64            `mapstructure:"zoom_max"`
}

// EmotionConfig configures idle drift and reactions
type EmotionConfig struct {
	DriftIdleAfter    float64         `mapstructure:"drift_idle_after"`
	DriftIntervalMin  float64         `mapstructure:"drift_interval_min"`
	DriftIntervalMax  float64         `mapstructure:"drift_interval_max"`
	DriftStep         float64         `mapstructure:"drift_step"`
	DriftBound        float64         `mapstructure:"drift_bound"`
	BreathArousalGain float64         `mapstructure:"breath_arousal_gain"`
	Reactions         ReactionsConfig `mapstructure:"reactions"`
}

// AudioConfig configures the audio level source
type AudioConfig struct {
	Source      string  `mapstructure:"source"` // none, push, file, capture
	Alpha       float64 `mapstructure:"alpha"`
	Gain        float64 `mapstructure:"gain"`
	SampleRate  int     `mapstructure:"sample_rate"`
	FrameSize   int     `mapstructure:"frame_size"`
	WAVPath     string  `mapstructure:"wav_path"`
	Loop        bool    `mapstructure:"loop"`
	PCMBitDepth int     `mapstructure:"pcm_bit_depth"` // for pushed client audio
}

// GestureConfig configures pointer classification
type GestureConfig struct {
	DistanceThreshold float64 `mapstructure:"distance_threshold"` // pixels
	TapMaxDuration    float64 `mapstructure:"tap_max_duration"`   // seconds
	DoubleTapWindow   float64 `mapstructure:"double_tap_window"`  // seconds
}

// GazeConfig configures idle glances
type GazeConfig struct {
	IntervalMin float64 `mapstructure:"interval_min"`
	IntervalMax float64 `mapstructure:"interval_max"`
	HoldMin     float64 `mapstructure:"hold_min"`
	HoldMax     float64 `mapstructure:"hold_max"`
	Amplitude   float64 `mapstructure:"amplitude"` // radians
	Decay       float64 `mapstructure:"decay"`
	LookBack    float64 `mapstructure:"look_back"`
}

// HeadConfig configures pointer head tracking
type HeadConfig struct {
	MaxAngle float64 `mapstructure:"max_angle"` // radians
	Speed    float64 `mapstructure:"speed"`
}

// SpeechConfig configures the wake gate and the synthesizer
type SpeechConfig struct {
	WakePhrases []string `mapstructure:"wake_phrases"`
	FillerWords []string `mapstructure:"filler_words"`
	Binary      string   `mapstructure:"binary"`
	Voice       string   `mapstructure:"voice"`
	Rate        int      `mapstructure:"rate"`
}

// BridgeConfig configures the renderer server
type BridgeConfig struct {
	Listen         string   `mapstructure:"listen"`
	WSPath         string   `mapstructure:"ws_path"`
	MetricsPath    string   `mapstructure:"metrics_path"`
	StatusPath     string   `mapstructure:"status_path"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	SendBuffer     int      `mapstructure:"send_buffer"`
	LoadingText    string   `mapstructure:"loading_text"`
}

// LogConfig configures logging
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Dir     string `mapstructure:"dir"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	fc := frame.DefaultConfig()
	drift := emotion.DefaultDriftConfig()
	gaze := motion.DefaultIdleGazeConfig()
	gc := gesture.DefaultConfig()
	ac := audio.DefaultConfig()
	r := fc.Reactions

	speaking := make(map[string]float64, len(r.Speaking))
	for p, w := range r.Speaking {
		speaking[p.String()] = w
	}
	target := func(t frame.Target) TargetConfig { return TargetConfig{Valence: t.Valence, Arousal: t.Arousal} }

	return &Config{
		Scheduler: SchedulerConfig{
			RefreshRate: 60,
			MaxDelta:    fc.MaxDelta,
			LoadTimeout: time.Duration(fc.LoadTimeout * float64(time.Second)),
			InboxLimit:  fc.InboxLimit,
		},
		Emotion: EmotionConfig{
			DriftIdleAfter:    drift.IdleAfter,
			DriftIntervalMin:  drift.IntervalMin,
			DriftIntervalMax:  drift.IntervalMax,
			DriftStep:         drift.Step,
			DriftBound:        drift.Bound,
			BreathArousalGain: fc.BreathArousalGain,
			Reactions: ReactionsConfig{
				RandomTap:  true,
				DoubleTap:  target(r.DoubleTap),
				SwipeUp:    target(r.Swipe[gesture.Up]),
				SwipeDown:  target(r.Swipe[gesture.Down]),
				SwipeLeft:  target(r.Swipe[gesture.Left]),
				SwipeRight: target(r.Swipe[gesture.Right]),
				Wake:       target(r.Wake),
				Finished:   target(r.Finished),
				Speaking:   speaking,
				ZoomMin:    r.ZoomMin,
				ZoomMax:    r.ZoomMax,
			},
		},
		Audio: AudioConfig{
			Source:      ac.Source,
			Alpha:       ac.Alpha,
			Gain:        ac.Gain,
			SampleRate:  ac.SampleRate,
			FrameSize:   ac.FrameSize,
			Loop:        ac.Loop,
			PCMBitDepth: 16,
		},
		Gesture: GestureConfig{
			DistanceThreshold: gc.DistanceThreshold,
			TapMaxDuration:    gc.TapMaxDuration,
			DoubleTapWindow:   gc.DoubleTapWindow,
		},
		Gaze: GazeConfig{
			IntervalMin: gaze.IntervalMin,
			IntervalMax: gaze.IntervalMax,
			HoldMin:     gaze.HoldMin,
			HoldMax:     gaze.HoldMax,
			Amplitude:   gaze.Amplitude,
			Decay:       gaze.Decay,
			LookBack:    gaze.LookBack,
		},
		Head: HeadConfig{
			MaxAngle: fc.HeadMaxAngle,
			Speed:    fc.HeadSpeed,
		},
		Speech: SpeechConfig{
			WakePhrases: []string{"hey avatar"},
			FillerWords: speech.DefaultFillerWords,
		},
		Bridge: BridgeConfig{
			Listen:      "127.0.0.1:8765",
			WSPath:      "/ws",
			MetricsPath: "/metrics",
			StatusPath:  "/status",
			SendBuffer:  8,
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
			File:    true,
		},
	}
}

// setDefaults registers every key so environment overrides resolve even
// when the file omits them. Save reuses it to write a complete file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("device.tier", cfg.Device.Tier)
	v.SetDefault("device.memory_gb", cfg.Device.MemoryGB)
	v.SetDefault("device.cores", cfg.Device.Cores)
	v.SetDefault("device.measured_fps", cfg.Device.MeasuredFPS)

	v.SetDefault("scheduler.refresh_rate", cfg.Scheduler.RefreshRate)
	v.SetDefault("scheduler.max_delta", cfg.Scheduler.MaxDelta)
	v.SetDefault("scheduler.load_timeout", cfg.Scheduler.LoadTimeout.String())
	v.SetDefault("scheduler.inbox_limit", cfg.Scheduler.InboxLimit)

	e := cfg.Emotion
	v.SetDefault("emotion.drift_idle_after", e.DriftIdleAfter)
	v.SetDefault("emotion.drift_interval_min", e.DriftIntervalMin)
	v.SetDefault("emotion.drift_interval_max", e.DriftIntervalMax)
	v.SetDefault("emotion.drift_step", e.DriftStep)
	v.SetDefault("emotion.drift_bound", e.DriftBound)
	v.SetDefault("emotion.breath_arousal_gain", e.BreathArousalGain)
	r := e.Reactions
	v.SetDefault("emotion.reactions.random_tap", r.RandomTap)
	for key, t := range map[string]TargetConfig{
		"tap": r.Tap, "double_tap": r.DoubleTap,
		"swipe_up": r.SwipeUp, "swipe_down": r.SwipeDown,
		"swipe_left": r.SwipeLeft, "swipe_right": r.SwipeRight,
		"wake": r.Wake, "finished": r.Finished,
	} {
		v.SetDefault("emotion.reactions."+key+".valence", t.Valence)
		v.SetDefault("emotion.reactions."+key+".arousal", t.Arousal)
	}
	v.SetDefault("emotion.reactions.speaking", r.Speaking)
	v.SetDefault("emotion.reactions.zoom_min", r.ZoomMin)
	v.SetDefault("emotion.reactions.zoom_max", r.ZoomMax)

	a := cfg.Audio
	v.SetDefault("audio.source", a.Source)
	v.SetDefault("audio.alpha", a.Alpha)
	v.SetDefault("audio.gain", a.Gain)
	v.SetDefault("audio.sample_rate", a.SampleRate)
	v.SetDefault("audio.frame_size", a.FrameSize)
	v.SetDefault("audio.wav_path", a.WAVPath)
	v.SetDefault("audio.loop", a.Loop)
	v.SetDefault("audio.pcm_bit_depth", a.PCMBitDepth)

	v.SetDefault("gesture.distance_threshold", cfg.Gesture.DistanceThreshold)
	v.SetDefault("gesture.tap_max_duration", cfg.Gesture.TapMaxDuration)
	v.SetDefault("gesture.double_tap_window", cfg.Gesture.DoubleTapWindow)

	g := cfg.Gaze
	v.SetDefault("gaze.interval_min", g.IntervalMin)
	v.SetDefault("gaze.interval_max", g.IntervalMax)
	v.SetDefault("gaze.hold_min", g.HoldMin)
	v.SetDefault("gaze.hold_max", g.HoldMax)
	v.SetDefault("gaze.amplitude", g.Amplitude)
	v.SetDefault("gaze.decay", g.Decay)
	v.SetDefault("gaze.look_back", g.LookBack)

	v.SetDefault("head.max_angle", cfg.Head.MaxAngle)
	v.SetDefault("head.speed", cfg.Head.Speed)

	s := cfg.Speech
	v.SetDefault("speech.wake_phrases", s.WakePhrases)
	v.SetDefault("speech.filler_words", s.FillerWords)
	v.SetDefault("speech.binary", s.Binary)
	v.SetDefault("speech.voice", s.Voice)
	v.SetDefault("speech.rate", s.Rate)

	b := cfg.Bridge
	v.SetDefault("bridge.listen", b.Listen)
	v.SetDefault("bridge.ws_path", b.WSPath)
	v.SetDefault("bridge.metrics_path", b.MetricsPath)
	v.SetDefault("bridge.status_path", b.StatusPath)
	v.SetDefault("bridge.allowed_origins", b.AllowedOrigins)
	v.SetDefault("bridge.send_buffer", b.SendBuffer)
	v.SetDefault("bridge.loading_text", b.LoadingText)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.dir", cfg.Log.Dir)
	v.SetDefault("log.console", cfg.Log.Console)
	v.SetDefault("log.file", cfg.Log.File)
}

// Store owns a viper instance and the last successfully decoded Config.
type Store struct {
	v    *viper.Viper
	mu   sync.RWMutex
	cur  *Config
	file string
}

// Open reads configuration from path and the environment. An empty path
// searches ~/.avatarloop and the working directory for config.yaml and
// falls back to defaults when none exists. An explicit path must exist.
func Open(path string) (*Store, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(expandPath(path))
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			// defaults and environment only
		case path != "" && errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return &Store{v: v, cur: cfg, file: v.ConfigFileUsed()}, nil
}

// Load is Open followed by Config.
func Load(path string) (*Config, error) {
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	return s.Config(), nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Log.Dir = expandPath(cfg.Log.Dir)
	cfg.Audio.WAVPath = expandPath(cfg.Audio.WAVPath)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Config returns the current configuration.
func (s *Store) Config() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// File returns the config file in use, or "" when running on defaults.
func (s *Store) File() string { return s.file }

// Watch reloads the file on change and calls fn with the result. A file
// that fails to decode or validate is reported with err and the previous
// configuration stays current. Without a file Watch does nothing.
func (s *Store) Watch(fn func(cfg *Config, err error)) {
	if s.file == "" {
		return
	}
	s.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(s.v)
		if err != nil {
			fn(nil, err)
			return
		}
		s.mu.Lock()
		s.cur = cfg
		s.mu.Unlock()
		fn(cfg, nil)
	})
	s.v.WatchConfig()
}

// Validate checks ranges that would otherwise be silently clamped.
func (c *Config) Validate() error {
	var problems []string
	if c.Device.Tier != "" {
		if _, err := tier.ParseTier(c.Device.Tier); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if c.Scheduler.RefreshRate <= 0 {
		problems = append(problems, "scheduler.refresh_rate must be positive")
	}
	if c.Scheduler.MaxDelta <= 0 {
		problems = append(problems, "scheduler.max_delta must be positive")
	}
	if c.Audio.Alpha <= 0 || c.Audio.Alpha > 1 {
		problems = append(problems, "audio.alpha must be in (0,1]")
	}
	if c.Audio.Gain < 0 {
		problems = append(problems, "audio.gain must not be negative")
	}
	switch c.Audio.Source {
	case audio.SourceNone, audio.SourcePush, audio.SourceCapture:
	case audio.SourceFile:
		if c.Audio.WAVPath == "" {
			problems = append(problems, "audio.wav_path is required for the file source")
		}
	default:
		problems = append(problems, fmt.Sprintf("audio.source %q is not one of none, push, file, capture", c.Audio.Source))
	}
	for name := range c.Emotion.Reactions.Speaking {
		if _, ok := emotion.ParsePreset(name); !ok {
			problems = append(problems, fmt.Sprintf("emotion.reactions.speaking: unknown preset %q", name))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Hints returns the device capability hints.
func (c *Config) Hints() tier.Hints {
	return tier.Hints{
		MemoryGB:    c.Device.MemoryGB,
		Cores:       c.Device.Cores,
		MeasuredFPS: c.Device.MeasuredFPS,
	}
}

// Bundle returns the override tier's bundle, or detects one from hints.
func (c *Config) Bundle(detected tier.Hints) tier.Bundle {
	if c.Device.Tier != "" {
		if t, err := tier.ParseTier(c.Device.Tier); err == nil {
			return tier.BundleFor(t)
		}
	}
	h := detected
	if c.Device.MemoryGB > 0 {
		h.MemoryGB = c.Device.MemoryGB
	}
	if c.Device.Cores > 0 {
		h.Cores = c.Device.Cores
	}
	if c.Device.MeasuredFPS > 0 {
		h.MeasuredFPS = c.Device.MeasuredFPS
	}
	return tier.Detect(h)
}

// FrameConfig converts to the loop's settings.
func (c *Config) FrameConfig() frame.Config {
	fc := frame.DefaultConfig()
	fc.MaxDelta = c.Scheduler.MaxDelta
	fc.LoadTimeout = c.Scheduler.LoadTimeout.Seconds()
	fc.InboxLimit = c.Scheduler.InboxLimit
	fc.BreathArousalGain = c.Emotion.BreathArousalGain
	fc.HeadMaxAngle = c.Head.MaxAngle
	fc.HeadSpeed = c.Head.Speed
	fc.Drift = emotion.DriftConfig{
		IdleAfter:   c.Emotion.DriftIdleAfter,
		IntervalMin: c.Emotion.DriftIntervalMin,
		IntervalMax: c.Emotion.DriftIntervalMax,
		Step:        c.Emotion.DriftStep,
		Bound:       c.Emotion.DriftBound,
	}
	fc.Gaze = motion.IdleGazeConfig{
		IntervalMin: c.Gaze.IntervalMin,
		IntervalMax: c.Gaze.IntervalMax,
		HoldMin:     c.Gaze.HoldMin,
		HoldMax:     c.Gaze.HoldMax,
		Amplitude:   c.Gaze.Amplitude,
		Decay:       c.Gaze.Decay,
		LookBack:    c.Gaze.LookBack,
	}
	fc.Gesture = c.GestureConfig()
	fc.AudioAlpha = c.Audio.Alpha
	fc.AudioGain = c.Audio.Gain
	fc.WakePhrases = c.Speech.WakePhrases
	fc.FillerWords = c.Speech.FillerWords
	fc.Reactions = c.Reactions()
	return fc
}

// GestureConfig converts the gesture thresholds.
func (c *Config) GestureConfig() gesture.Config {
	return gesture.Config{
		DistanceThreshold: c.Gesture.DistanceThreshold,
		TapMaxDuration:    c.Gesture.TapMaxDuration,
		DoubleTapWindow:   c.Gesture.DoubleTapWindow,
	}
}

// Reactions converts the reaction table.
func (c *Config) Reactions() frame.Reactions {
	r := c.Emotion.Reactions
	target := func(t TargetConfig) frame.Target { return frame.Target{Valence: t.Valence, Arousal: t.Arousal} }

	out := frame.Reactions{
		DoubleTap: target(r.DoubleTap),
		Swipe: map[gesture.Direction]frame.Target{
			gesture.Up:    target(r.SwipeUp),
			gesture.Down:  target(r.SwipeDown),
			gesture.Left:  target(r.SwipeLeft),
			gesture.Right: target(r.SwipeRight),
		},
		Wake:     target(r.Wake),
		Finished: target(r.Finished),
		Speaking: make(emotion.BlendWeights, len(r.Speaking)),
		ZoomMin:  r.ZoomMin,
		ZoomMax:  r.ZoomMax,
	}
	if !r.RandomTap {
		tap := target(r.Tap)
		out.Tap = &tap
	}
	for name, w := range r.Speaking {
		if p, ok := emotion.ParsePreset(name); ok {
			out.Speaking[p] = w
		}
	}
	return out
}

// Tuning returns the settings that can change while running.
func (c *Config) Tuning() *frame.Tuning {
	gain := c.Audio.Gain
	gc := c.GestureConfig()
	reactions := c.Reactions()
	return &frame.Tuning{AudioGain: &gain, Gesture: &gc, Reactions: &reactions}
}

// AudioConfig converts the audio source settings.
func (c *Config) AudioConfig() *audio.Config {
	return &audio.Config{
		Source:     c.Audio.Source,
		Alpha:      c.Audio.Alpha,
		Gain:       c.Audio.Gain,
		SampleRate: c.Audio.SampleRate,
		FrameSize:  c.Audio.FrameSize,
		WAVPath:    c.Audio.WAVPath,
		Loop:       c.Audio.Loop,
	}
}

// SynthConfig converts the synthesizer settings.
func (c *Config) SynthConfig() speech.SynthConfig {
	return speech.SynthConfig{
		Binary: c.Speech.Binary,
		Voice:  c.Speech.Voice,
		Rate:   c.Speech.Rate,
	}
}

// Save writes cfg as YAML to path.
func Save(cfg *Config, path string) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	v := viper.New()
	setDefaults(v, cfg)
	return v.WriteConfigAs(path)
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".avatarloop"), nil
}

func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
