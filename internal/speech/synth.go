package speech

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/rs/zerolog"
)

// ErrEmptyText is returned when there is nothing to say.
var ErrEmptyText = errors.New("empty text")

// Callbacks receive synthesis progress. OnEnd is always called exactly
// once after OnStart, with the failure if any.
type Callbacks struct {
	OnStart func()
	OnEnd   func(err error)
}

func (c Callbacks) start() {
	if c.OnStart != nil {
		c.OnStart()
	}
}

func (c Callbacks) end(err error) {
	if c.OnEnd != nil {
		c.OnEnd(err)
	}
}

// Synthesizer speaks text. Speak blocks until playback ends.
type Synthesizer interface {
	Speak(ctx context.Context, text string, cb Callbacks) error
}

// SynthConfig configures CommandSynthesizer.
type SynthConfig struct {
	Binary string `json:"binary"` // say, espeak-ng; empty picks by OS
	Voice  string `json:"voice"`
	Rate   int    `json:"rate"` // words per minute, 0 keeps the tool default
}

// CommandSynthesizer shells out to the platform speech tool.
type CommandSynthesizer struct {
	cfg    SynthConfig
	logger zerolog.Logger

	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
}

// NewCommandSynthesizer creates a synthesizer for cfg.
func NewCommandSynthesizer(cfg SynthConfig, logger zerolog.Logger) *CommandSynthesizer {
	if cfg.Binary == "" {
		cfg.Binary = defaultBinary(runtime.GOOS)
	}
	return &CommandSynthesizer{
		cfg:      cfg,
		logger:   logger.With().Str("component", "synth").Str("binary", cfg.Binary).Logger(),
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

func defaultBinary(goos string) string {
	if goos == "darwin" {
		return "say"
	}
	return "espeak-ng"
}

// IsAvailable reports whether the speech tool is on PATH.
func (s *CommandSynthesizer) IsAvailable() bool {
	_, err := s.lookPath(s.cfg.Binary)
	return err == nil
}

// Args builds the command line for text.
func (s *CommandSynthesizer) Args(text string) []string {
	var args []string
	if s.cfg.Voice != "" {
		args = append(args, "-v", s.cfg.Voice)
	}
	if s.cfg.Rate > 0 {
		flag := "-s"
		if s.cfg.Binary == "say" {
			flag = "-r"
		}
		args = append(args, flag, strconv.Itoa(s.cfg.Rate))
	}
	// "--" keeps text starting with a dash from being read as a flag
	return append(args, "--", text)
}

// Speak runs the tool. A missing tool still fires both callbacks so the
// avatar returns to rest; the failure is only logged.
func (s *CommandSynthesizer) Speak(ctx context.Context, text string, cb Callbacks) error {
	if text == "" {
		return ErrEmptyText
	}

	cb.start()

	if !s.IsAvailable() {
		s.logger.Warn().Msg("Speech tool not found, skipping playback")
		cb.end(nil)
		return nil
	}

	s.logger.Debug().Int("textLen", len(text)).Msg("Speaking")
	err := s.run(ctx, s.cfg.Binary, s.Args(text)...)
	if err != nil {
		err = fmt.Errorf("%s: %w", s.cfg.Binary, err)
		s.logger.Warn().Err(err).Msg("Speech playback failed")
	}
	cb.end(err)
	return err
}
