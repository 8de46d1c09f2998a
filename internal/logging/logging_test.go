package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), "level %q", tt.in)
	}
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.log")

	logger, cleanup, err := Setup(Config{
		Level:         "info",
		FilePath:      path,
		MaxSizeMB:     1,
		MaxFiles:      2,
		WriteToStderr: false,
	})
	require.NoError(t, err)

	logger.Info("catalog loaded", "variables", 49000)
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"catalog loaded"`)
	assert.Contains(t, string(data), `"variables":49000`)
}

func TestSetup_DebugSuppressedAtInfoLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.log")

	logger, cleanup, err := Setup(Config{
		Level:         "info",
		FilePath:      path,
		MaxSizeMB:     1,
		MaxFiles:      2,
		WriteToStderr: false,
	})
	require.NoError(t, err)

	logger.Debug("noise")
	logger.Warn("signal")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "noise")
	assert.Contains(t, string(data), "signal")
}

func TestRotatingWriter_RotatesAtMaxSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.log")

	w, err := NewRotatingWriter(path, 1, 3)
	require.NoError(t, err)
	defer w.Close()

	// Force the threshold low enough to trigger rotation without 1MB of writes.
	w.maxSize = 64

	line := strings.Repeat("x", 40) + "\n"
	for i := 0; i < 4; i++ {
		_, err := w.Write([]byte(line))
		require.NoError(t, err)
	}

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err, "rotated file should exist")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, 10, cfg.MaxSizeMB)
	assert.True(t, cfg.WriteToStderr)
	assert.Equal(t, "debug", DebugConfig().Level)
}
