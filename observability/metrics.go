// Package observability provides OpenTelemetry metrics and tracing for
// Herald. All instrumentation is optional: a nil *Metrics or *Tracer
// disables it without conditional wiring in callers.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/heraldhq/herald"

// Metrics holds Herald's metric instruments.
//
// Instrument names render through the Prometheus exporter as
// herald_events_triggered_total, herald_deliveries_total{status},
// herald_delivery_attempts_total{outcome}, herald_delivery_duration_seconds,
// and herald_pending_deliveries.
type Metrics struct {
	eventsTriggered metric.Int64Counter
	deliveriesTotal metric.Int64Counter
	attemptsTotal   metric.Int64Counter
	attemptDuration metric.Float64Histogram

	meter        metric.Meter
	pendingGauge metric.Int64ObservableGauge
	registration metric.Registration
}

// NewMetrics creates Herald's metric instruments on the given provider.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)

	eventsTriggered, err := meter.Int64Counter("herald.events.triggered",
		metric.WithDescription("Events submitted through TriggerEvent"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: events counter: %w", err)
	}

	deliveriesTotal, err := meter.Int64Counter("herald.deliveries",
		metric.WithDescription("Terminal delivery outcomes by status"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: deliveries counter: %w", err)
	}

	attemptsTotal, err := meter.Int64Counter("herald.delivery.attempts",
		metric.WithDescription("Individual delivery attempts by outcome"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: attempts counter: %w", err)
	}

	attemptDuration, err := meter.Float64Histogram("herald.delivery.duration",
		metric.WithDescription("Delivery attempt round-trip duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: duration histogram: %w", err)
	}

	return &Metrics{
		eventsTriggered: eventsTriggered,
		deliveriesTotal: deliveriesTotal,
		attemptsTotal:   attemptsTotal,
		attemptDuration: attemptDuration,
		meter:           meter,
	}, nil
}

// RecordEventTriggered counts one TriggerEvent call and the number of
// webhooks it matched.
func (m *Metrics) RecordEventTriggered(ctx context.Context, eventType string, matched int) {
	m.eventsTriggered.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event.type", eventType),
		attribute.Int("matched", matched),
	))
}

// RecordOutcome counts one terminal delivery outcome ("success" or "failed").
func (m *Metrics) RecordOutcome(ctx context.Context, status string) {
	m.deliveriesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
	))
}

// RecordAttempt counts one delivery attempt and observes its duration.
// Outcome is "delivered", "retry", or "exhausted".
func (m *Metrics) RecordAttempt(ctx context.Context, outcome string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.attemptsTotal.Add(ctx, 1, attrs)
	m.attemptDuration.Record(ctx, seconds, attrs)
}

// RegisterPendingGauge wires the live pending-delivery count into an
// observable gauge. source is read at collection time.
func (m *Metrics) RegisterPendingGauge(source func() int64) error {
	gauge, err := m.meter.Int64ObservableGauge("herald.pending.deliveries",
		metric.WithDescription("Deliveries currently in the pending set"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return fmt.Errorf("observability: pending gauge: %w", err)
	}

	reg, err := m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, source())
		return nil
	}, gauge)
	if err != nil {
		return fmt.Errorf("observability: pending gauge callback: %w", err)
	}

	m.pendingGauge = gauge
	m.registration = reg
	return nil
}

// Close unregisters the pending gauge callback, if registered.
func (m *Metrics) Close() error {
	if m.registration == nil {
		return nil
	}
	return m.registration.Unregister()
}
