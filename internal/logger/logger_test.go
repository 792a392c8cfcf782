package logger_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/cyanwatch/internal/logger"
)

// decodeLines parses JSON log lines from buf
func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestLogLevels(t *testing.T) {
	testCases := []struct {
		name          string
		configLevel   logger.LogLevel
		logFunc       func(l logger.Logger, msg string)
		shouldContain bool
	}{
		{"debug at debug", logger.LogLevelDebug, func(l logger.Logger, msg string) { l.Debug(msg) }, true},
		{"debug at info", logger.LogLevelInfo, func(l logger.Logger, msg string) { l.Debug(msg) }, false},
		{"warn at info", logger.LogLevelInfo, func(l logger.Logger, msg string) { l.Warn(msg) }, true},
		{"warn at error", logger.LogLevelError, func(l logger.Logger, msg string) { l.Warn(msg) }, false},
		{"trace at debug", logger.LogLevelDebug, func(l logger.Logger, msg string) { l.Trace(msg) }, false},
		{"trace at trace", logger.LogLevelTrace, func(l logger.Logger, msg string) { l.Trace(msg) }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			log := logger.NewSlogLogger(buf, tc.configLevel, time.UTC)

			tc.logFunc(log, "level probe")

			assert.Equal(t, tc.shouldContain, strings.Contains(buf.String(), "level probe"))
		})
	}
}

func TestModuleAndFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelDebug, time.UTC).
		Module("batch").
		Module("poll").
		With(logger.String("job_id", "job-1"))

	log.Info("status updated",
		logger.Int("job_num", 7),
		logger.Float64("progress", 33.33333),
		logger.Duration("interval", 2*time.Second))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	entry := lines[0]
	assert.Equal(t, "batch.poll", entry["module"])
	assert.Equal(t, "job-1", entry["job_id"])
	assert.InDelta(t, 7, entry["job_num"], 0)
	assert.InDelta(t, 33.333, entry["progress"], 0.0001)
	assert.Equal(t, "2s", entry["interval"])
}

func TestWithContextTraceID(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelInfo, nil)

	ctx := logger.WithTraceID(t.Context(), "op-42")
	log.WithContext(ctx).Info("sync started")
	log.WithContext(t.Context()).Info("no trace")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "op-42", lines[0]["trace_id"])
	assert.NotContains(t, lines[1], "trace_id")
}

func TestSensitiveFieldsRedacted(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelInfo, time.UTC)

	log.Info("session loaded", logger.String("token", "s3cr3t-value"), logger.String("username", "alice"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "[REDACTED]", lines[0]["token"])
	assert.Equal(t, "alice", lines[0]["username"])
}

func TestCentralLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cyanwatch.log")
	cl, err := logger.NewCentralLogger(&logger.LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &logger.ConsoleOutput{Enabled: false},
		FileOutput: &logger.FileOutput{
			Enabled: true,
			Path:    path,
			Level:   "debug",
			MaxSize: 1,
		},
		ModuleLevels: map[string]string{"syncengine": "warn"},
	})
	require.NoError(t, err)

	cl.Module("store").Debug("store ready")
	cl.Module("syncengine").Info("suppressed by module level")
	cl.Module("syncengine").Warn("fetch failed")
	require.NoError(t, cl.Flush())
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "store ready")
	assert.Contains(t, content, "fetch failed")
	assert.NotContains(t, content, "suppressed by module level")
}

func TestNewCentralLoggerRejectsBadInput(t *testing.T) {
	_, err := logger.NewCentralLogger(nil)
	require.Error(t, err)

	_, err = logger.NewCentralLogger(&logger.LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)
}

func TestGlobalFallback(t *testing.T) {
	l := logger.Global()
	require.NotNil(t, l)
	assert.NotNil(t, l.Module("test"))
}
