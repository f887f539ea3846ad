package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrettyHandlerHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("Handle INFO level log", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{})

		record := slog.NewRecord(time.Now(), slog.LevelInfo, "built index", 0)
		record.AddAttrs(slog.Int("count", 42))

		require.NoError(t, handler.Handle(ctx, record))
		output := buf.String()
		assert.Contains(t, output, "INFO:")
		assert.Contains(t, output, "built index")
		assert.Contains(t, output, `"count":42`)
	})

	t.Run("Handle without attributes", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{})

		record := slog.NewRecord(time.Now(), slog.LevelWarn, "skipped", 0)
		require.NoError(t, handler.Handle(ctx, record))
		assert.Contains(t, buf.String(), "WARN:")
		assert.Contains(t, buf.String(), "{}")
	})

	t.Run("Errors are rendered as strings", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{})

		record := slog.NewRecord(time.Now(), slog.LevelError, "failed", 0)
		record.AddAttrs(slog.Any("error", errors.New("quota exceeded")))
		require.NoError(t, handler.Handle(ctx, record))
		assert.Contains(t, buf.String(), "quota exceeded")
	})
}

func TestPrettyHandlerWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, PrettyHandlerOptions{}))

	logger.With("snapshot", "01ABC").WithGroup("embed").Info("batch", "size", 16)

	output := buf.String()
	assert.Contains(t, output, `"snapshot":"01ABC"`)
	assert.Contains(t, output, `"embed.size":16`)
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New("warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
