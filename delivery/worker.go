package delivery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/heraldhq/herald/id"
	"github.com/heraldhq/herald/observability"
	"github.com/heraldhq/herald/webhook"
)

// WebhookResolver looks up delivery targets at claim time. The in-memory
// registry satisfies it.
type WebhookResolver interface {
	Get(whID id.ID) (*webhook.Webhook, error)
}

// Recorder consumes terminal delivery outcomes (the history service).
type Recorder interface {
	Record(ctx context.Context, rec *Record)
}

// Gate rate-limits attempts per webhook. Allow reports whether one delivery
// to the keyed webhook may proceed now; perSecond <= 0 means unlimited.
type Gate interface {
	Allow(key string, perSecond int) bool
}

// WorkerConfig holds worker configuration.
type WorkerConfig struct {
	Concurrency    int
	PollInterval   time.Duration
	BatchSize      int
	RequestTimeout time.Duration
	MaxRetries     int
	InitialDelay   time.Duration
	Multiplier     float64
	MaxDelay       time.Duration
	Metrics        *observability.Metrics
	Tracer         *observability.Tracer
}

// Worker is the delivery scheduler: a ticker loop that claims due pending
// deliveries and attempts them concurrently.
//
// Claiming marks each delivery in-flight inside the queue's lock, so a slow
// attempt spanning several ticks can never be picked up twice. Attempts are
// decoupled from the loop's cancellation: Stop halts claiming and waits for
// in-flight attempts to resolve on their own request timeout.
type Worker struct {
	queue    *Queue
	resolver WebhookResolver
	recorder Recorder
	gate     Gate
	sender   *Sender
	retrier  *Retrier
	config   WorkerConfig
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a delivery worker. gate may be nil to disable rate
// limiting.
func NewWorker(queue *Queue, resolver WebhookResolver, recorder Recorder, gate Gate, cfg WorkerConfig, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:    queue,
		resolver: resolver,
		recorder: recorder,
		gate:     gate,
		sender:   NewSender(cfg.RequestTimeout),
		retrier:  NewRetrier(cfg.MaxRetries, cfg.InitialDelay, cfg.Multiplier, cfg.MaxDelay),
		config:   cfg,
		logger:   logger.With("component", "delivery.worker"),
	}
}

// Start begins the poll loop.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()
}

// Stop cancels the poll loop and waits for in-flight attempts to complete.
// Attempts finish within the request timeout; nothing new is claimed.
func (w *Worker) Stop(_ context.Context) {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// pollLoop claims due deliveries every tick and dispatches them to bounded
// concurrent attempts.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.config.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch := w.queue.Claim(time.Now().UTC(), w.config.BatchSize)

			for _, d := range batch {
				select {
				case <-ctx.Done():
					// Claimed but never attempted; release unchanged so a
					// later start can pick it up.
					w.queue.Release(d.ID, d.Attempts, d.NextAttemptAt)
					return
				case sem <- struct{}{}:
				}

				w.wg.Add(1)
				go func(del *Delivery) {
					defer w.wg.Done()
					defer func() { <-sem }()
					// Each attempt is independent and self-timing-out; it
					// must survive loop cancellation so Stop drains cleanly.
					w.process(context.WithoutCancel(ctx), del)
				}(d)
			}
		}
	}
}

// process handles one claimed delivery: resolve webhook, send, decide,
// record or reschedule.
func (w *Worker) process(ctx context.Context, d *Delivery) {
	wh, err := w.resolver.Get(d.WebhookID)
	if err != nil {
		// Webhook deleted while the delivery was pending: drop silently.
		w.queue.Remove(d.ID)
		w.logger.DebugContext(ctx, "webhook gone, delivery dropped",
			"delivery_id", d.ID, "webhook_id", d.WebhookID)
		return
	}

	if wh.RateLimit > 0 && w.gate != nil && !w.gate.Allow(wh.ID.String(), wh.RateLimit) {
		// Defer one tick. Attempts counts actual sends, so the retry
		// budget and backoff sequence are unaffected.
		w.queue.Release(d.ID, d.Attempts, time.Now().UTC().Add(w.config.PollInterval))
		w.logger.DebugContext(ctx, "delivery deferred by rate limit",
			"delivery_id", d.ID, "webhook_id", wh.ID)
		return
	}

	d.Attempts++

	var span trace.Span
	if w.config.Tracer != nil {
		ctx, span = w.config.Tracer.StartAttemptSpan(ctx, d.ID.String(), d.Event.ID.String(), wh.ID.String(), d.Attempts)
	}

	result := w.sender.Send(ctx, wh, d.Event, d.ID)

	if span != nil {
		w.config.Tracer.EndAttemptSpan(span, result.StatusCode, result.Duration, result.Error)
	}

	switch w.retrier.Decide(result, d.Attempts) {
	case Delivered:
		w.queue.Remove(d.ID)
		w.recorder.Record(ctx, NewRecord(d, StatusSuccess, result))
		if w.config.Metrics != nil {
			w.config.Metrics.RecordAttempt(ctx, "delivered", result.Duration.Seconds())
			w.config.Metrics.RecordOutcome(ctx, string(StatusSuccess))
		}
		w.logger.DebugContext(ctx, "delivered",
			"delivery_id", d.ID, "webhook_id", wh.ID,
			"status", result.StatusCode, "attempts", d.Attempts)

	case Retry:
		next := w.retrier.NextAttempt(d.Attempts)
		w.queue.Release(d.ID, d.Attempts, next)
		if w.config.Metrics != nil {
			w.config.Metrics.RecordAttempt(ctx, "retry", result.Duration.Seconds())
		}
		w.logger.DebugContext(ctx, "retry scheduled",
			"delivery_id", d.ID, "webhook_id", wh.ID,
			"status", result.StatusCode, "attempt", d.Attempts, "next_at", next)

	case Exhausted:
		w.queue.Remove(d.ID)
		w.recorder.Record(ctx, NewRecord(d, StatusFailed, result))
		if w.config.Metrics != nil {
			w.config.Metrics.RecordAttempt(ctx, "exhausted", result.Duration.Seconds())
			w.config.Metrics.RecordOutcome(ctx, string(StatusFailed))
		}
		w.logger.WarnContext(ctx, "delivery failed permanently",
			"delivery_id", d.ID, "webhook_id", wh.ID,
			"status", result.StatusCode, "error", result.Error, "attempts", d.Attempts)
	}
}

// NewRecord builds the terminal Record for a delivery whose final attempt
// produced result.
func NewRecord(d *Delivery, status Status, result Result) *Record {
	return &Record{
		ID:          d.ID,
		WebhookID:   d.WebhookID,
		EventID:     d.Event.ID,
		EventType:   d.Event.Type,
		Status:      status,
		Attempts:    d.Attempts,
		StatusCode:  result.StatusCode,
		Response:    result.Response,
		Error:       result.Error,
		CreatedAt:   d.CreatedAt,
		CompletedAt: time.Now().UTC(),
		Event:       d.Event,
	}
}
