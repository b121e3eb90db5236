package otelhelper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/nodeflow/nodeflow/pkg/protocol"
)

func TestStartSpanAndSetError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := provider.Tracer("test")

	_, span := StartSpan(context.Background(), tracer, "run", attribute.String(RunIDKey, "run-1"))
	SetError(span, errors.New("boom"), attribute.String(NodeIDKey, "n1"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "run", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	assert.Contains(t, spans[0].Attributes(), attribute.String(RunIDKey, "run-1"))

	events := spans[0].Events()
	require.NotEmpty(t, events)

	failure := events[len(events)-1]
	assert.Equal(t, "error_occurred", failure.Name)
	assert.Contains(t, failure.Attributes, attribute.String(NodeIDKey, "n1"))
	assert.Contains(t, failure.Attributes, attribute.Bool(RetryableKey, true))
}

func TestSetError_PermanentFailure(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	_, span := StartSpan(context.Background(), tracer, "node")
	SetError(span, protocol.Configuration("Slack node: content is missing"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	events := spans[0].Events()
	require.NotEmpty(t, events)
	assert.Contains(t, events[len(events)-1].Attributes, attribute.Bool(RetryableKey, false))
}

func TestTracer_NoopByDefault(t *testing.T) {
	_, span := StartSpan(context.Background(), Tracer("nodeflow/test"), "noop")
	defer span.End()

	assert.NotNil(t, span)
}
