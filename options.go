package herald

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/heraldhq/herald/catalog"
	"github.com/heraldhq/herald/delivery"
	"github.com/heraldhq/herald/history"
	"github.com/heraldhq/herald/observability"
	"github.com/heraldhq/herald/ratelimit"
	"github.com/heraldhq/herald/store"
	"github.com/heraldhq/herald/store/memory"
	"github.com/heraldhq/herald/webhook"
)

// Herald is the webhook delivery subsystem: registry, dispatcher, retrying
// worker, history, and stats behind one facade.
type Herald struct {
	config Config
	store  store.Store
	logger *slog.Logger

	metrics *observability.Metrics
	tracer  *observability.Tracer

	registry   *webhook.Registry
	catalog    *catalog.Catalog
	queue      *delivery.Queue
	limiter    *ratelimit.Limiter
	history    *history.Service
	worker     *delivery.Worker
	testSender *delivery.Sender
}

// Option configures a Herald instance.
type Option func(*Herald) error

// New creates a Herald with the given options. Without WithStore it runs on
// the in-memory store.
func New(opts ...Option) (*Herald, error) {
	h := &Herald{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}
	if h.store == nil {
		h.store = memory.New()
	}
	if err := h.wireServices(); err != nil {
		return nil, err
	}
	return h, nil
}

// WithStore sets the persistence backend. The default is the in-memory
// store, which serves tests and single-process embedding.
func WithStore(s store.Store) Option {
	return func(h *Herald) error {
		h.store = s
		return nil
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(h *Herald) error {
		h.logger = logger
		return nil
	}
}

// WithConcurrency sets the number of deliveries attempted in parallel.
func WithConcurrency(n int) Option {
	return func(h *Herald) error {
		h.config.Concurrency = n
		return nil
	}
}

// WithPollInterval sets how often the worker checks for due deliveries.
func WithPollInterval(d time.Duration) Option {
	return func(h *Herald) error {
		h.config.PollInterval = d
		return nil
	}
}

// WithBatchSize sets the maximum number of deliveries claimed per poll cycle.
func WithBatchSize(n int) Option {
	return func(h *Herald) error {
		h.config.BatchSize = n
		return nil
	}
}

// WithRequestTimeout sets the HTTP timeout per delivery attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Herald) error {
		h.config.RequestTimeout = d
		return nil
	}
}

// WithTestTimeout sets the HTTP timeout for TestWebhook sends.
func WithTestTimeout(d time.Duration) Option {
	return func(h *Herald) error {
		h.config.TestTimeout = d
		return nil
	}
}

// WithMaxRetries sets the attempt budget per delivery.
func WithMaxRetries(n int) Option {
	return func(h *Herald) error {
		h.config.MaxRetries = n
		return nil
	}
}

// WithBackoff sets the retry backoff sequence: initial delay, per-failure
// multiplier, and the delay cap.
func WithBackoff(initial time.Duration, multiplier float64, max time.Duration) Option {
	return func(h *Herald) error {
		h.config.InitialDelay = initial
		h.config.BackoffMultiplier = multiplier
		h.config.MaxDelay = max
		return nil
	}
}

// WithHistoryLimit sets the per-webhook delivery record ring size.
func WithHistoryLimit(n int) Option {
	return func(h *Herald) error {
		h.config.HistoryLimit = n
		return nil
	}
}

// WithStrictCatalog makes the catalog reject triggers for unknown or
// deprecated event types. Without it unregistered types fan out untouched.
func WithStrictCatalog() Option {
	return func(h *Herald) error {
		h.config.StrictCatalog = true
		return nil
	}
}

// WithMetrics wires Herald's instruments onto the given meter provider.
func WithMetrics(provider metric.MeterProvider) Option {
	return func(h *Herald) error {
		m, err := observability.NewMetrics(provider)
		if err != nil {
			return err
		}
		h.metrics = m
		return nil
	}
}

// WithTracer wires delivery attempt spans onto the given tracer provider.
func WithTracer(provider trace.TracerProvider) Option {
	return func(h *Herald) error {
		h.tracer = observability.NewTracerWithProvider(provider)
		return nil
	}
}
