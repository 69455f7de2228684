package herald

import "time"

// Config holds the tunables for a Herald instance.
type Config struct {
	// Concurrency is the number of deliveries attempted in parallel.
	Concurrency int

	// PollInterval is how often the worker checks for due deliveries.
	PollInterval time.Duration

	// BatchSize is the maximum number of deliveries claimed per poll cycle.
	BatchSize int

	// RequestTimeout is the HTTP timeout per delivery attempt.
	RequestTimeout time.Duration

	// TestTimeout is the HTTP timeout for TestWebhook sends.
	TestTimeout time.Duration

	// MaxRetries is the attempt budget per delivery.
	MaxRetries int

	// InitialDelay is the backoff after the first failed attempt. Each
	// further failure multiplies it by BackoffMultiplier, capped at MaxDelay.
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration

	// HistoryLimit is the per-webhook delivery record ring size.
	HistoryLimit int

	// StrictCatalog rejects triggers for unknown or deprecated event types.
	// When false, unregistered types fan out untouched.
	StrictCatalog bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:       10,
		PollInterval:      1 * time.Second,
		BatchSize:         50,
		RequestTimeout:    30 * time.Second,
		TestTimeout:       10 * time.Second,
		MaxRetries:        5,
		InitialDelay:      1 * time.Second,
		BackoffMultiplier: 2.0,
		MaxDelay:          60 * time.Second,
		HistoryLimit:      1000,
	}
}
