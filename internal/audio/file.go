package audio

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-audio/wav"
)

// FileSource plays a decoded WAV clip against a clock and serves the window
// under the playback cursor.
type FileSource struct {
	mu         sync.Mutex
	samples    []float32
	sampleRate int
	window     int
	loop       bool
	started    time.Time
	running    bool
	now        func() time.Time
}

// LoadWAV decodes a WAV file into a FileSource.
func LoadWAV(path string, window int, loop bool) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()
	return DecodeWAV(f, window, loop)
}

// DecodeWAV decodes WAV data from r. Multi-channel audio is downmixed.
func DecodeWAV(r io.ReadSeeker, window int, loop bool) (*FileSource, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidFormat
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, ErrEmptyClip
	}

	samples := intsToFloat(buf.Data, int(dec.BitDepth))
	channels, rate := 1, int(dec.SampleRate)
	if buf.Format != nil {
		if buf.Format.NumChannels > 0 {
			channels = buf.Format.NumChannels
		}
		if buf.Format.SampleRate > 0 {
			rate = buf.Format.SampleRate
		}
	}
	samples = downmix(samples, channels)
	if rate <= 0 {
		rate = 16000
	}

	return NewFileSource(samples, rate, window, loop), nil
}

// NewFileSource wraps already-decoded mono samples.
func NewFileSource(samples []float32, sampleRate, window int, loop bool) *FileSource {
	if window <= 0 {
		window = 512
	}
	return &FileSource{
		samples:    samples,
		sampleRate: sampleRate,
		window:     window,
		loop:       loop,
		now:        time.Now,
	}
}

// SetTimeProvider replaces the clock. For testing.
func (s *FileSource) SetTimeProvider(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Play (re)starts playback from the beginning.
func (s *FileSource) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = s.now()
	s.running = true
}

// Stop halts playback; Latest becomes unavailable.
func (s *FileSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

// Duration returns the clip length.
func (s *FileSource) Duration() time.Duration {
	if s.sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(s.samples)) / float64(s.sampleRate) * float64(time.Second))
}

func (s *FileSource) Latest() ([]float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || len(s.samples) == 0 {
		return nil, false
	}

	pos := int(s.now().Sub(s.started).Seconds() * float64(s.sampleRate))
	if pos < 0 {
		pos = 0
	}
	if pos >= len(s.samples) {
		if !s.loop {
			s.running = false
			return nil, false
		}
		pos %= len(s.samples)
	}

	end := pos + s.window
	if end > len(s.samples) {
		end = len(s.samples)
	}
	return s.samples[pos:end], true
}
