package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONOutputCarriesServiceAndTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "debug", Format: "json", Output: &buf, ServiceName: "shop-assistant-test"})

	ctx := ContextWithTraceID(context.Background(), "trace-123")
	logger.WithContext(ctx).Info().Str("query", "điện thoại").Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shop-assistant-test", entry["service"])
	assert.Equal(t, "trace-123", entry["trace_id"])
	assert.Equal(t, "điện thoại", entry["query"])
	assert.Equal(t, "hello", entry["message"])
}

func TestLogger_ComponentAndOperationFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(LogConfig{Level: "info", Output: &buf})

	base.WithComponent("extract").WithOperation("extract_filters").Warn().Bool("timeout", true).Msg("degraded")
	base.Debug().Msg("below level")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, DefaultServiceName, entry["service"])
	assert.Equal(t, "extract", entry["component"])
	assert.Equal(t, "extract_filters", entry["operation"])
	assert.Equal(t, true, entry["timeout"])
	assert.Equal(t, "warn", entry["level"])
	assert.NotContains(t, entry, "trace_id")
}

func TestContextWithNewTraceID(t *testing.T) {
	ctx, traceID := ContextWithNewTraceID(context.Background())
	assert.NotEmpty(t, traceID)
	assert.Equal(t, traceID, TraceIDFromContext(ctx))
	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"warn":    zerolog.WarnLevel,
		"trace":   zerolog.TraceLevel,
		"":        zerolog.InfoLevel,
		"error":   zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}
