// ABOUTME: Tests for logger construction and context propagation
// ABOUTME: Verifies level parsing, JSON file output and the context fallback
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		logger, closer := New(Config{Level: tt.level, Output: "discard"})
		require.NoError(t, closer.Close())
		assert.Equal(t, tt.want, logger.GetLevel(), "level %q", tt.level)
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.log")

	logger, closer := New(Config{Level: "info", Format: "json", Output: path})
	logger.Info().Int("count", 3).Msg("Edumate contacts found")
	logger.Debug().Msg("hidden")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, `"message":"Edumate contacts found"`)
	assert.Contains(t, out, `"count":3`)
	assert.False(t, strings.Contains(out, "hidden"))
}

func TestOpenOutput(t *testing.T) {
	out, closer := openOutput("discard")
	assert.Equal(t, io.Discard, out)
	require.NoError(t, closer.Close())

	out, closer = openOutput("")
	assert.Same(t, os.Stderr, out)
	require.NoError(t, closer.Close())

	path := filepath.Join(t.TempDir(), "sync.log")
	out, closer = openOutput(path)
	f, ok := out.(*os.File)
	require.True(t, ok)
	require.NoError(t, closer.Close())
	_, err := f.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestConsoleFormatNeedsTerminal(t *testing.T) {
	assert.False(t, useConsole("auto", io.Discard))
	assert.True(t, useConsole("console", io.Discard))
	assert.False(t, useConsole("json", os.Stderr))
}

func TestFromContext(t *testing.T) {
	assert.Same(t, Default(), FromContext(context.Background()))

	logger := zerolog.Nop()
	ctx := WithLogger(context.Background(), &logger)
	assert.Same(t, &logger, FromContext(ctx))

	assert.Same(t, Default(), FromContext(WithLogger(context.Background(), nil)))
}
