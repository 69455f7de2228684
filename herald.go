package herald

import (
	"context"
	"time"

	"github.com/heraldhq/herald/catalog"
	"github.com/heraldhq/herald/delivery"
	"github.com/heraldhq/herald/event"
	"github.com/heraldhq/herald/history"
	"github.com/heraldhq/herald/id"
	"github.com/heraldhq/herald/ratelimit"
	"github.com/heraldhq/herald/store"
	"github.com/heraldhq/herald/webhook"
)

// TestEventType is the event type of synthetic TestWebhook deliveries.
const TestEventType = "webhook.test"

// wireServices initializes the internal services after options have been
// applied.
func (h *Herald) wireServices() error {
	h.registry = webhook.NewRegistry(h.store, h.logger)

	h.catalog = catalog.New(catalog.Config{
		Strict: h.config.StrictCatalog,
	}, h.logger)

	h.queue = delivery.NewQueue()
	h.limiter = ratelimit.New()

	h.history = history.NewService(h.registry, h.queue, h.store, h.config.HistoryLimit, h.logger)

	h.worker = delivery.NewWorker(h.queue, h.registry, h.history, h.limiter, delivery.WorkerConfig{
		Concurrency:    h.config.Concurrency,
		PollInterval:   h.config.PollInterval,
		BatchSize:      h.config.BatchSize,
		RequestTimeout: h.config.RequestTimeout,
		MaxRetries:     h.config.MaxRetries,
		InitialDelay:   h.config.InitialDelay,
		Multiplier:     h.config.BackoffMultiplier,
		MaxDelay:       h.config.MaxDelay,
		Metrics:        h.metrics,
		Tracer:         h.tracer,
	}, h.logger)

	h.testSender = delivery.NewSender(h.config.TestTimeout)

	if h.metrics != nil {
		if err := h.metrics.RegisterPendingGauge(func() int64 {
			return int64(h.queue.Len())
		}); err != nil {
			return err
		}
	}
	return nil
}

// Start hydrates the registry from the store and begins the delivery
// worker. A hydration failure aborts the start so the caller can decide
// whether running without persisted webhooks is acceptable.
func (h *Herald) Start(ctx context.Context) error {
	if err := h.registry.Hydrate(ctx); err != nil {
		return err
	}
	h.worker.Start(ctx)
	h.logger.InfoContext(ctx, "herald started",
		"webhooks", h.registry.Count(), "concurrency", h.config.Concurrency)
	return nil
}

// Stop halts the worker and waits for in-flight delivery attempts to
// resolve. Pending deliveries that were never claimed stay in the queue.
func (h *Herald) Stop(ctx context.Context) {
	h.worker.Stop(ctx)
	if h.metrics != nil {
		_ = h.metrics.Close()
	}
	h.logger.InfoContext(ctx, "herald stopped", "pending", h.queue.Len())
}

// TriggerEvent submits an event for delivery and fans it out to every
// active webhook subscribed to eventType. It returns the constructed event
// and the number of webhooks matched; zero matches is not an error.
//
// Delivery happens asynchronously. Failures never propagate back to the
// trigger caller; outcomes are observable through History and Stats.
func (h *Herald) TriggerEvent(ctx context.Context, eventType string, payload any) (*event.Event, int, error) {
	if eventType == "" {
		return nil, 0, &ValidationError{Field: "type", Message: "required"}
	}

	if err := h.catalog.Check(eventType, payload); err != nil {
		return nil, 0, err
	}

	evt := event.New(eventType, payload)

	// Audit persistence is fire-and-continue: a store outage must not
	// block fan-out.
	if err := h.store.SaveEvent(ctx, evt); err != nil {
		h.logger.ErrorContext(ctx, "event not persisted",
			"event_id", evt.ID, "type", eventType, "err", err)
	}

	matched := h.registry.Match(eventType)
	for _, wh := range matched {
		h.queue.Enqueue(delivery.New(wh.ID, evt))
	}

	if h.metrics != nil {
		h.metrics.RecordEventTriggered(ctx, eventType, len(matched))
	}

	h.logger.DebugContext(ctx, "event triggered",
		"event_id", evt.ID, "type", eventType, "matched", len(matched))

	return evt, len(matched), nil
}

// TestResult is the synchronous outcome of a TestWebhook send.
type TestResult struct {
	// Success reports whether the receiver acknowledged the test (any
	// HTTP status below 500).
	Success bool `json:"success"`

	// StatusCode is the HTTP status, 0 if no response was received.
	StatusCode int `json:"status_code,omitempty"`

	// Response is the response body, capped at 1KB.
	Response string `json:"response,omitempty"`

	// Error is the transport error, if any.
	Error string `json:"error,omitempty"`

	// Duration is the round-trip time.
	Duration time.Duration `json:"duration"`
}

// TestWebhook sends a synthetic webhook.test event to the webhook, once,
// and returns the raw outcome. No retry is scheduled and neither history
// nor stats are touched.
func (h *Herald) TestWebhook(ctx context.Context, whID id.ID) (*TestResult, error) {
	wh, err := h.registry.Get(whID)
	if err != nil {
		return nil, err
	}

	evt := event.New(TestEventType, map[string]any{
		"test":       true,
		"webhook_id": whID.String(),
	})

	result := h.testSender.Send(ctx, wh, evt, id.NewDeliveryID())

	h.logger.DebugContext(ctx, "test delivery sent",
		"webhook_id", whID, "status", result.StatusCode, "error", result.Error)

	return &TestResult{
		Success:    result.Delivered(),
		StatusCode: result.StatusCode,
		Response:   result.Response,
		Error:      result.Error,
		Duration:   result.Duration,
	}, nil
}

// RegisterEventType adds an event type definition to the catalog.
func (h *Herald) RegisterEventType(def catalog.Definition, opts ...catalog.RegisterOption) (*catalog.EventType, error) {
	return h.catalog.Register(def, opts...)
}

// Webhooks returns the webhook registry.
func (h *Herald) Webhooks() *webhook.Registry {
	return h.registry
}

// History returns the delivery history and stats service.
func (h *Herald) History() *history.Service {
	return h.history
}

// Catalog returns the event type catalog.
func (h *Herald) Catalog() *catalog.Catalog {
	return h.catalog
}

// Store returns the underlying store.
func (h *Herald) Store() store.Store {
	return h.store
}

// PendingCount returns the number of deliveries in the pending set,
// claimed ones included.
func (h *Herald) PendingCount() int {
	return h.queue.Len()
}
