package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestDefaultLoggingConfig(t *testing.T) {
	cfg := DefaultLoggingConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
	assert.False(t, cfg.AddSource)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNewLogger_LevelFilters(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	logger := newLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info().Msg("dropped")
	assert.Empty(t, buf.String())

	logger.Warn().Msg("kept")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "warn", entry["level"])
	assert.Contains(t, entry, "time")
}

func TestLoggerHelpers(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	logger := newLogger(LoggingConfig{Level: "debug"}, &buf)
	logger = WithComponent(logger, "waterfall")
	logger = WithSession(logger, "sess-1", "doi:10.1/x")
	logger = WithSource(logger, domain.SourcePMC)

	logger.Info().Msg("attempt")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "waterfall", entry["component"])
	assert.Equal(t, "sess-1", entry["session_id"])
	assert.Equal(t, "doi:10.1/x", entry["identifier"])
	assert.Equal(t, "pmc", entry["source"])
}

func TestLoggerFromContext(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	base := newLogger(LoggingConfig{Level: "info"}, &buf)

	ctx := WithRequestID(context.Background(), "req-9")
	ctx = WithSessionID(ctx, "sess-9")
	ctx = WithWorkflow(ctx, "wf-1", "run-1")

	logger := LoggerFromContext(ctx, base)
	logger.Info().Msg("x")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "req-9", entry["request_id"])
	assert.Equal(t, "sess-9", entry["session_id"])
	assert.Equal(t, "wf-1", entry["workflow_id"])
	assert.Equal(t, "run-1", entry["workflow_run_id"])

	buf.Reset()
	plain := LoggerFromContext(context.Background(), base)
	plain.Info().Msg("y")
	entry = decodeLine(t, &buf)
	assert.NotContains(t, entry, "request_id")
}

func TestTemporalLogger(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	tl := NewTemporalLogger(newLogger(LoggingConfig{Level: "debug"}, &buf))

	tl.With("WorkflowID", "wf-7").Warn("activity retry", "Attempt", 2, "dangling")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "temporal-sdk", entry["component"])
	assert.Equal(t, "wf-7", entry["WorkflowID"])
	assert.Equal(t, float64(2), entry["Attempt"])
	assert.NotContains(t, entry, "dangling")
}
