package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitOTelDisabled(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})

	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, logger)

	assert.NoError(t, err)
	assert.Nil(t, providers)
}

func TestShutdownOTelNilProviders(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})

	assert.NoError(t, ShutdownOTel(context.Background(), nil, logger))
}

func TestShutdownOTelTracerOnly(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	providers := &OTelProviders{TracerProvider: sdktrace.NewTracerProvider()}

	assert.NoError(t, ShutdownOTel(context.Background(), providers, logger))
}

func TestTraceContextLoggerNoSpan(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})

	updated := UpdateLoggerWithTraceContext(context.Background(), logger)

	// Without a recording span the logger comes back untouched.
	assert.Same(t, logger, updated)
}

func TestTraceContextLoggerWithSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("analytics-test").Start(context.Background(), "generate-report")
	defer span.End()

	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf).WithField("report_id", "r-1")

	UpdateLoggerWithTraceContext(ctx, logger).Info("report generated")

	line := decodeLogLine(t, &buf)
	assert.Equal(t, "r-1", line["report_id"])

	traceID, ok := line["trace_id"].(string)
	require.True(t, ok, "trace_id should be logged")
	assert.Equal(t, span.SpanContext().TraceID().String(), traceID)

	spanID, ok := line["span_id"].(string)
	require.True(t, ok, "span_id should be logged")
	assert.Equal(t, span.SpanContext().SpanID().String(), spanID)
}

func TestTraceContextLoggerNonRecordingSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample()))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("analytics-test").Start(context.Background(), "generate-report")
	defer span.End()

	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	UpdateLoggerWithTraceContext(ctx, logger).Info("report generated")

	line := decodeLogLine(t, &buf)
	_, hasTrace := line["trace_id"]
	assert.False(t, hasTrace, "non-recording span should not add trace fields")
}
