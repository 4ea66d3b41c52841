package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/mindergas/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestAutoFormatIsJSONWhenNotATerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LogConfig{}, false, &buf)

	logger.Info("refresh complete", "installation", "0b9f6c2e")
	logger.Debug("hidden")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "refresh complete", entry["msg"])
	assert.Equal(t, "0b9f6c2e", entry["installation"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestTextFormatAndDebugFlag(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LogConfig{Format: "text", Level: "error"}, true, &buf)

	logger.Debug("job scheduled", "job", "refresh")
	assert.Contains(t, buf.String(), "msg=\"job scheduled\"")
	assert.Contains(t, buf.String(), "job=refresh")
}
