package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/heraldhq/herald"

// Tracer provides OpenTelemetry tracing for delivery attempts.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a Herald tracer on the global tracer provider.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// NewTracerWithProvider creates a Herald tracer on a specific provider.
func NewTracerWithProvider(provider trace.TracerProvider) *Tracer {
	return &Tracer{
		tracer: provider.Tracer(tracerName),
	}
}

// StartAttemptSpan starts a span for one delivery attempt.
func (t *Tracer) StartAttemptSpan(ctx context.Context, deliveryID, eventID, webhookID string, attempt int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "herald.delivery.attempt",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("herald.delivery_id", deliveryID),
			attribute.String("herald.event_id", eventID),
			attribute.String("herald.webhook_id", webhookID),
			attribute.Int("herald.attempt", attempt),
		),
	)
}

// EndAttemptSpan ends an attempt span with the result attributes.
func (t *Tracer) EndAttemptSpan(span trace.Span, statusCode int, duration time.Duration, errMsg string) {
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.Float64("herald.duration_seconds", duration.Seconds()),
	)
	if errMsg != "" {
		span.SetStatus(codes.Error, errMsg)
	}
	span.End()
}
