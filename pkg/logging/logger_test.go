package logging

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

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()

	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestStructuredLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("weather-test", "0.0.1", WarnLevel)
	logger.SetOutput(&buf)

	ctx := context.Background()
	logger.Debug(ctx, "[TEST] debug", Fields{})
	logger.Info(ctx, "[TEST] info", Fields{})
	logger.Warn(ctx, "[TEST] warn", Fields{"k": "v"})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "[TEST] warn", entries[0]["message"])
	assert.Equal(t, "warning", entries[0]["level"])
	assert.Equal(t, "weather-test", entries[0]["service"])
}

func TestStructuredLogger_ContextAndError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("weather-test", "0.0.1", DebugLevel)
	logger.SetOutput(&buf)

	ctx := WithJob(WithRequestID(context.Background(), "req-1"), "fetch", "run-1")
	logger.WithFields(Fields{"component": "scheduler"}).
		Error(ctx, "[TEST] failed", Fields{"attempt": 1}, errors.New("boom"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "fetch", entry["job"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "scheduler", entry["component"])
	assert.Contains(t, entry["file"], "logger_test.go")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"", InfoLevel},
		{"verbose", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}
