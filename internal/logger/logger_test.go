package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("create logger with console output", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger, err := New(Config{
			Level:   "info",
			Console: true,
			Out:     buf,
		})
		require.NoError(t, err)
		defer logger.Close()

		logger.Info().Str("song", "bohemian-rhapsody").Msg("processing song")
		assert.Contains(t, buf.String(), `"song":"bohemian-rhapsody"`)
	})

	t.Run("create logger with file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "automation.log")

		logger, err := New(Config{
			Level: "debug",
			File:  logFile,
		})
		require.NoError(t, err)

		logger.Debug().Msg("test message")
		require.NoError(t, logger.Close())

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "test message")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		logger, err := New(Config{Level: "loud"})
		require.NoError(t, err)
		assert.Equal(t, zerolog.InfoLevel, logger.GetZerolog().GetLevel())
	})

	t.Run("create logger with redaction", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger, err := New(Config{
			Level:     "info",
			Console:   true,
			Out:       buf,
			Redaction: true,
		})
		require.NoError(t, err)
		assert.NotNil(t, logger.redactor)

		logger.Redact("c0rrect-h0rse")
		logger.Info().Str("detail", "typed c0rrect-h0rse into #frm_password").Msg("login")

		assert.NotContains(t, buf.String(), "c0rrect-h0rse")
		assert.Contains(t, buf.String(), "[REDACTED]")
	})

	t.Run("redact without redactor is a no-op", func(t *testing.T) {
		logger, err := New(Config{Level: "info"})
		require.NoError(t, err)
		assert.NotPanics(t, func() { logger.Redact("hunter22") })
	})
}

func TestLoggerMethods(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{
		Level:   "debug",
		Console: true,
		Out:     buf,
	})
	require.NoError(t, err)
	defer logger.Close()

	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")
	logger.Warn().Msg("warn message")
	logger.Error().Msg("error message")

	out := buf.String()
	for _, msg := range []string{"debug message", "info message", "warn message", "error message"} {
		assert.Contains(t, out, msg)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Pretty)
	assert.True(t, cfg.Redaction)
}

func TestLoggerComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Level: "info", Console: true, Out: buf})
	require.NoError(t, err)
	defer logger.Close()

	child := logger.Component("mixer")
	child.Info().Msg("solo confirmed")

	assert.Contains(t, buf.String(), `"component":"mixer"`)
}

func TestGetZerolog(t *testing.T) {
	logger, err := New(Config{Level: "warn"})
	require.NoError(t, err)
	defer logger.Close()

	assert.Equal(t, zerolog.WarnLevel, logger.GetZerolog().GetLevel())
}
