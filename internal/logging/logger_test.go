package logging

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_LevelAndHistory(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&Config{Level: LevelInfo, MaxHistory: 2, Out: &buf})
	require.NoError(t, err)

	l.Debug("frame", "hidden", nil)
	l.Info("frame", "started", map[string]interface{}{"tier": "high", "fps": 60})
	l.Warn("bridge", "slow client", nil)
	l.Error("lifecycle", "load failed", errors.New("timeout"), nil)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"app":"avatarloop"`)
	assert.Contains(t, out, `"component":"frame"`)
	assert.Contains(t, out, `"error":"timeout"`)

	hist := l.GetHistory(0)
	require.Len(t, hist, 2, "history keeps the newest entries")
	assert.Equal(t, "slow client", hist[0].Message)
	assert.Equal(t, "error", hist[1].Level)
	assert.Equal(t, "error=timeout", hist[1].Data)

	assert.Len(t, l.GetHistory(1), 1)
}

func TestLogger_Component(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&Config{Level: LevelDebug, Out: &buf})
	require.NoError(t, err)

	c := l.Component("gesture")
	c.Debug().Str("kind", "tap").Msg("Gesture")
	assert.Contains(t, buf.String(), `"component":"gesture"`)
	assert.Contains(t, buf.String(), `"kind":"tap"`)
}

func TestLogger_File(t *testing.T) {
	dir := t.TempDir()
	l, err := New(&Config{LogDir: dir, Level: LevelInfo, File: true})
	require.NoError(t, err)

	l.Info("test", "written", nil)
	require.NoError(t, l.Close())

	path := l.GetLogPath()
	assert.True(t, strings.HasPrefix(path, dir))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written")
	assert.Contains(t, string(data), "Logger shutting down")
}

func TestFormatData_Sorted(t *testing.T) {
	assert.Equal(t, "a=1, b=x", formatData(map[string]interface{}{"b": "x", "a": 1}))
	assert.Empty(t, formatData(nil))
}
