package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/phrazzld/tasktracker-api/internal/config"
	"github.com/phrazzld/tasktracker-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWithWriter(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	tests := []struct {
		name       string
		level      string
		debugShown bool
		infoShown  bool
	}{
		{"debug", "debug", true, true},
		{"info", "INFO", false, true},
		{"error", "error", false, false},
		{"invalid falls back to info", "verbose", false, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			l, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: tc.level}, &buf)
			require.NoError(t, err)
			require.NotNil(t, l)

			l.Debug("debug message")
			assert.Equal(t, tc.debugShown, bytes.Contains(buf.Bytes(), []byte("debug message")))

			buf.Reset()
			slog.Info("info message")
			assert.Equal(t, tc.infoShown, bytes.Contains(buf.Bytes(), []byte("info message")))
		})
	}
}

func TestSetupWritesJSON(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	var buf bytes.Buffer
	l, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: "info"}, &buf)
	require.NoError(t, err)

	l.Info("sweep finished", "succeeded", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sweep finished", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "tasktracker-api", entry["service"])
	assert.EqualValues(t, 3, entry["succeeded"])
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	scoped := slog.New(slog.NewJSONHandler(&buf, nil)).With("trace_id", "abc")
	fallback := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))

	ctx := logger.WithLogger(context.Background(), scoped)
	assert.Same(t, scoped, logger.FromContext(ctx))
	assert.Same(t, scoped, logger.FromContextOrDefault(ctx, fallback))

	assert.Same(t, fallback, logger.FromContextOrDefault(context.Background(), fallback))
	assert.Same(t, slog.Default(), logger.FromContext(context.Background()))
	assert.Same(t, slog.Default(), logger.FromContextOrDefault(context.Background(), nil))
}

func TestParseLevel(t *testing.T) {
	level, ok := logger.ParseLevel("Warn")
	assert.True(t, ok)
	assert.Equal(t, slog.LevelWarn, level)

	level, ok = logger.ParseLevel("loud")
	assert.False(t, ok)
	assert.Equal(t, slog.LevelInfo, level)
}
