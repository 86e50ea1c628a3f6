// Package capture reads microphone frames through PortAudio. It is kept
// apart from package audio so only the binary links the C library.
package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/normanking/avatarloop/internal/audio"
)

// Source reads the default input device and keeps the last frame.
// Any device failure leaves it unavailable rather than erroring the loop.
type Source struct {
	sampleRate int
	frameSize  int
	logger     zerolog.Logger

	mu     sync.RWMutex
	latest []float32
	ok     bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an idle capture source.
func New(cfg *audio.Config, logger zerolog.Logger) *Source {
	if cfg == nil {
		cfg = audio.DefaultConfig()
	}
	rate, frame := cfg.SampleRate, cfg.FrameSize
	if rate <= 0 {
		rate = 16000
	}
	if frame <= 0 {
		frame = 512
	}
	return &Source{
		sampleRate: rate,
		frameSize:  frame,
		logger:     logger.With().Str("component", "audio-capture").Logger(),
	}
}

// Start opens the default input stream and begins reading in the background.
func (c *Source) Start(ctx context.Context) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}

	buf := make([]float32, c.frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(c.sampleRate), len(buf), buf)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("%w: %v", audio.ErrDeviceNotFound, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("start capture: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	c.logger.Info().
		Int("sampleRate", c.sampleRate).
		Int("frameSize", c.frameSize).
		Msg("Microphone capture started")

	go c.readLoop(ctx, stream, buf)
	return nil
}

func (c *Source) readLoop(ctx context.Context, stream *portaudio.Stream, buf []float32) {
	defer close(c.done)
	defer portaudio.Terminate()
	defer stream.Close()
	defer stream.Stop()

	for {
		select {
		case <-ctx.Done():
			c.setUnavailable()
			return
		default:
		}

		if err := stream.Read(); err != nil {
			c.logger.Warn().Err(err).Msg("Capture read failed, lip-sync falls back to silence")
			c.setUnavailable()
			return
		}

		frame := make([]float32, len(buf))
		copy(frame, buf)

		c.mu.Lock()
		c.latest = frame
		c.ok = true
		c.mu.Unlock()
	}
}

func (c *Source) setUnavailable() {
	c.mu.Lock()
	c.latest = nil
	c.ok = false
	c.mu.Unlock()
}

var _ audio.Source = (*Source)(nil)

func (c *Source) Latest() ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest, c.ok
}

// Close stops capture and waits for the reader to exit.
func (c *Source) Close() error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	<-c.done
	c.logger.Info().Msg("Microphone capture stopped")
	return nil
}
