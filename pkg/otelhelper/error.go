package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nodeflow/nodeflow/pkg/protocol"
)

// RetryableKey marks whether a recorded failure was worth another attempt.
const RetryableKey = "nodeflow.error.retryable"

// SetError marks span as failed and records err together with its retry
// classification and any extra attributes.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	attrs = append(attrs, attribute.Bool(RetryableKey, protocol.IsRetryable(err)))

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("error_occurred", trace.WithAttributes(attrs...))
}
