package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(n int, amp float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = amp * float32(math.Sin(2*math.Pi*float64(i)/32))
	}
	return out
}

func TestRMS(t *testing.T) {
	assert.Zero(t, RMS(nil))
	assert.Zero(t, RMS(make([]float32, 128)))
	assert.InDelta(t, 1.0, RMS([]float32{1, -1, 1, -1}), 1e-9)
	assert.InDelta(t, 0.5/math.Sqrt2, RMS(sine(1024, 0.5)), 1e-3)
	assert.InDelta(t, 1.0, RMS([]float32{4, -9}), 1e-9, "out of range samples are clamped")
}

func TestFollower_SilenceDecaysToZero(t *testing.T) {
	gains := []float64{0, 1, 10, 1000}
	for _, g := range gains {
		f := NewFollower(0.3, g)
		for i := 0; i < 20; i++ {
			f.Update(sine(256, 1))
		}

		prev := f.Level()
		zeros := make([]float32, 256)
		for i := 0; i < 400; i++ {
			lvl := f.Update(zeros)
			assert.GreaterOrEqual(t, lvl, 0.0)
			assert.LessOrEqual(t, lvl, 1.0)
			assert.LessOrEqual(t, lvl, prev+1e-12)
			prev = lvl
		}
		assert.InDelta(t, 0, prev, 1e-6, "gain %v", g)
	}
}

func TestFollower_NeverExceedsOne(t *testing.T) {
	f := NewFollower(1, 1e6)
	for i := 0; i < 10; i++ {
		lvl := f.Update([]float32{1, -1, 1, -1})
		assert.Equal(t, 1.0, lvl)
	}
}

func TestFollower_SmoothsBeforeGain(t *testing.T) {
	f := NewFollower(0.5, 2)
	lvl := f.Update([]float32{0.2, -0.2})
	// rms 0.2, smoothed 0.1, gained 0.2
	assert.InDelta(t, 0.2, lvl, 1e-6)
	lvl = f.Update([]float32{0.2, -0.2})
	assert.InDelta(t, 0.3, lvl, 1e-6)
}

func TestFollower_UnavailableReturnsZero(t *testing.T) {
	f := NewFollower(0.5, 2)
	f.Update(sine(64, 1))
	require.Positive(t, f.Level())

	assert.Zero(t, f.Update(nil))
	assert.Zero(t, f.Poll(nil))
	assert.Zero(t, f.Poll(Unavailable()))

	p := NewPushSource()
	assert.Zero(t, f.Poll(p), "push source is unavailable before the first push")
	p.Push(sine(64, 1))
	assert.Positive(t, f.Poll(p))
	p.MarkUnavailable()
	assert.Zero(t, f.Poll(p))
}

func TestPushSource_PCM(t *testing.T) {
	p := NewPushSource()
	// two int16 samples: 16384 (0.5) and -16384 (-0.5)
	p.PushPCM([]byte{0x00, 0x40, 0x00, 0xC0}, 16)
	got, ok := p.Latest()
	require.True(t, ok)
	assert.InDeltaSlice(t, []float32{0.5, -0.5}, got, 1e-6)
}

func TestDecodePCM(t *testing.T) {
	assert.Equal(t, []float32{0, -1}, DecodePCM([]byte{128, 0}, 8))
	bits := math.Float32bits(0.25)
	got := DecodePCM([]byte{byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24)}, 32)
	assert.Equal(t, []float32{0.25}, got)
	assert.Empty(t, DecodePCM(nil, 16))
}

func writeTestWAV(t *testing.T, samples []int, rate, channels int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	err = enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	})
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

func TestFileSource_PlaysWindowUnderCursor(t *testing.T) {
	const rate = 1000
	data := make([]int, rate)
	for i := range data {
		if i >= rate/2 {
			data[i] = 16384
		}
	}
	path := writeTestWAV(t, data, rate, 1)

	src, err := LoadWAV(path, 100, false)
	require.NoError(t, err)
	assert.Equal(t, time.Second, src.Duration())

	now := time.Unix(0, 0)
	src.SetTimeProvider(func() time.Time { return now })

	_, ok := src.Latest()
	assert.False(t, ok, "unavailable before Play")

	src.Play()
	win, ok := src.Latest()
	require.True(t, ok)
	assert.Len(t, win, 100)
	assert.Zero(t, RMS(win))

	now = now.Add(600 * time.Millisecond)
	win, ok = src.Latest()
	require.True(t, ok)
	assert.InDelta(t, 0.5, RMS(win), 1e-3)

	now = now.Add(time.Second)
	_, ok = src.Latest()
	assert.False(t, ok, "clip finished")
}

func TestFileSource_LoopsAndDownmixes(t *testing.T) {
	const rate = 100
	data := make([]int, 0, rate*2)
	for i := 0; i < rate; i++ {
		data = append(data, 16384, -16384)
	}
	path := writeTestWAV(t, data, rate, 2)

	src, err := LoadWAV(path, 10, true)
	require.NoError(t, err)

	now := time.Unix(0, 0)
	src.SetTimeProvider(func() time.Time { return now })
	src.Play()

	now = now.Add(2500 * time.Millisecond)
	win, ok := src.Latest()
	require.True(t, ok)
	assert.Zero(t, RMS(win), "stereo opposites cancel when downmixed")
}

func TestDecodeWAV_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not riff"), 0o644))
	_, err := LoadWAV(path, 10, false)
	assert.Error(t, err)

	_, err = LoadWAV(filepath.Join(t.TempDir(), "missing.wav"), 10, false)
	assert.Error(t, err)
}
