package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" error ", LevelError},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestZapLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewZapLoggerTo(&buf, LevelInfo, FormatJSON)

	l.Debug(context.Background(), "hidden")
	l.Info(context.Background(), "position opened", map[string]interface{}{"positionID": 7, "side": "LONG"})
	l.Error(context.Background(), errors.New("boom"), "submit failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2, "debug entry must be filtered at info level")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "position opened", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, float64(7), entry["positionID"])
	assert.Equal(t, "LONG", entry["side"])

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "boom", entry["error"])
}

func TestZapLoggerConsole(t *testing.T) {
	var buf bytes.Buffer
	l := NewZapLoggerTo(&buf, LevelDebug, FormatConsole)
	l.Warn(context.Background(), "feed retry", map[string]interface{}{"attempt": 2})

	out := buf.String()
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "feed retry")
	assert.Contains(t, out, `"attempt": 2`)
}
