package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/avatarloop/internal/emotion"
	"github.com/normanking/avatarloop/internal/gesture"
	"github.com/normanking/avatarloop/internal/tier"
)

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
device:
  tier: medium
scheduler:
  load_timeout: 10s
audio:
  source: none
  gain: 2.5
speech:
  wake_phrases: ["hey nova"]
emotion:
  reactions:
    random_tap: false
    tap:
      valence: 0.3
      arousal: 0.4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "medium", cfg.Device.Tier)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.LoadTimeout)
	assert.Equal(t, 2.5, cfg.Audio.Gain)
	assert.Equal(t, "none", cfg.Audio.Source)
	assert.Equal(t, []string{"hey nova"}, cfg.Speech.WakePhrases)

	// untouched keys keep defaults
	def := DefaultConfig()
	assert.Equal(t, def.Audio.Alpha, cfg.Audio.Alpha)
	assert.Equal(t, def.Gesture, cfg.Gesture)
	assert.Equal(t, def.Bridge.Listen, cfg.Bridge.Listen)

	assert.Equal(t, tier.Medium, cfg.Bundle(tier.Hints{MemoryGB: 16, Cores: 16}).Tier)

	fc := cfg.FrameConfig()
	assert.Equal(t, 10.0, fc.LoadTimeout)
	require.NotNil(t, fc.Reactions.Tap)
	assert.Equal(t, 0.3, fc.Reactions.Tap.Valence)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeFile(t, t.TempDir(), "audio:\n  gain: 2\n")
	t.Setenv("AVATARLOOP_AUDIO_GAIN", "6")
	t.Setenv("AVATARLOOP_BRIDGE_LISTEN", ":9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6.0, cfg.Audio.Gain)
	assert.Equal(t, ":9999", cfg.Bridge.Listen)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad tier", body: "device:\n  tier: extreme\n"},
		{name: "bad alpha", body: "audio:\n  alpha: 1.5\n"},
		{name: "negative gain", body: "audio:\n  gain: -1\n"},
		{name: "unknown source", body: "audio:\n  source: radio\n"},
		{name: "file without path", body: "audio:\n  source: file\n"},
		{name: "unknown preset", body: "emotion:\n  reactions:\n    speaking:\n      smug: 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, t.TempDir(), tt.body))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestDefaultConfig_RoundTripsThroughConversion(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	r := cfg.Reactions()
	assert.Nil(t, r.Tap, "random tap by default")
	assert.Equal(t, 0.6, r.Speaking[emotion.Happy])
	assert.Equal(t, 0.7, r.Swipe[gesture.Up].Arousal)

	tuning := cfg.Tuning()
	require.NotNil(t, tuning.AudioGain)
	assert.Equal(t, cfg.Audio.Gain, *tuning.AudioGain)
	assert.Equal(t, cfg.GestureConfig(), *tuning.Gesture)

	assert.Equal(t, tier.Low, cfg.Bundle(tier.Hints{}).Tier)
	assert.Equal(t, tier.Ultra, cfg.Bundle(tier.Hints{MemoryGB: 8, Cores: 8}).Tier)
}

func TestSave_WritesLoadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Audio.Gain = 3
	cfg.Speech.WakePhrases = []string{"hello avatar"}
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3.0, loaded.Audio.Gain)
	assert.Equal(t, []string{"hello avatar"}, loaded.Speech.WakePhrases)
	assert.Equal(t, cfg.Scheduler.LoadTimeout, loaded.Scheduler.LoadTimeout)
	assert.Equal(t, cfg.Emotion.Reactions.Speaking, loaded.Emotion.Reactions.Speaking)
}

func TestStore_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "audio:\n  gain: 2\n")

	s, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, s.File())

	got := make(chan *Config, 4)
	s.Watch(func(cfg *Config, err error) {
		if err == nil {
			got <- cfg
		}
	})

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("audio:\n  gain: 5\n"), 0644))

	select {
	case cfg := <-got:
		assert.Equal(t, 5.0, cfg.Audio.Gain)
		assert.Equal(t, 5.0, s.Config().Audio.Gain)
	case <-time.After(5 * time.Second):
		t.Fatal("config change not observed")
	}
}
