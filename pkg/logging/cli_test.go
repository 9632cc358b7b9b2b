package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCLILogger(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{"debug level", "debug"},
		{"info level", "info"},
		{"warn level", "warn"},
		{"error level", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewCLILogger(tt.level)
			require.NotNil(t, logger)
			logger.Info("test message")
		})
	}
}

func TestCLIHandler_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCLIHandler(&buf, slog.LevelInfo))

	logger.Info("test info message")
	logger.Error("test error message")

	// a buffer is not a terminal, no escape codes
	output := buf.String()
	assert.Contains(t, output, "test info message\n")
	assert.Contains(t, output, "test error message\n")
	assert.NotContains(t, output, colorRed)
	assert.NotContains(t, output, colorYellow)
}

func TestCLIHandler_ColorBySeverity(t *testing.T) {
	var buf bytes.Buffer
	h := NewCLIHandler(&buf, slog.LevelDebug)
	h.color = true
	logger := slog.New(h)

	logger.Info("info line")
	logger.Warn("warn line")
	logger.Error("error line")

	output := buf.String()
	assert.Contains(t, output, "info line\n")
	assert.NotContains(t, output, colorRed+"info line")
	assert.Contains(t, output, colorYellow+"warn line"+colorReset)
	assert.Contains(t, output, colorRed+"error line"+colorReset)
}

func TestCLIHandler_Attrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCLIHandler(&buf, slog.LevelInfo))

	logger.Info("scored", "user", "alice", "count", 3)

	output := buf.String()
	assert.Contains(t, output, "user=alice")
	assert.Contains(t, output, "count=3")
}

func TestCLIHandler_AttrsQuoted(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCLIHandler(&buf, slog.LevelInfo))

	logger.Info("saved", "title", "The Long Goodbye")

	assert.Contains(t, buf.String(), `title="The Long Goodbye"`)
}

func TestCLIHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(NewCLIHandler(&buf, slog.LevelInfo))
	logger := base.With("user", "alice")

	logger.Info("ranked", "count", 2)
	base.Info("plain")

	output := buf.String()
	assert.Contains(t, output, "ranked user=alice count=2")
	// attrs bound to the child never leak back to the base
	assert.Contains(t, output, "plain\n")
	assert.NotContains(t, output, "plain user=alice")
}

func TestCLIHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCLIHandler(&buf, slog.LevelWarn))

	logger.Info("should not appear")
	assert.Empty(t, buf.String())

	logger.Warn("should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestCLIHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCLIHandler(&buf, slog.LevelInfo)).WithGroup("import")

	logger.Info("loading")
	logger.WithGroup("items").Info("parsed")

	output := buf.String()
	assert.Contains(t, output, "import: loading")
	assert.Contains(t, output, "import.items: parsed")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("WARN"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel(" warning "))
	assert.Equal(t, slog.LevelError, ParseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("bogus"))
}
