package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := NewSlog(slog.New(handler))

	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "count", 3)
	logger.Warn("warn message")
	logger.Error("error message", "error", "boom")

	out := buf.String()
	require.Contains(t, out, "debug message")
	require.Contains(t, out, "info message")
	require.Contains(t, out, "count=3")
	require.Contains(t, out, "warn message")
	require.Contains(t, out, "error message")
}

func TestSlogDefault(t *testing.T) {
	require.NotNil(t, NewSlogDefault())
}

func TestNopLogger(t *testing.T) {
	n := NewNop()

	require.NotPanics(t, func() {
		n.Debug("ignored")
		n.Info("ignored", "k", "v")
		n.Warn("ignored")
		n.Error("ignored")
		n.Fatal("ignored, does not exit")
	})
}
