package delivery

import (
	"math"
	"time"
)

// Decision is the outcome of evaluating a delivery attempt.
type Decision int

const (
	// Delivered means the receiver accepted or terminally rejected the
	// delivery (any status below 500). Not retried.
	Delivered Decision = iota

	// Retry means the attempt failed transiently and the delivery has
	// retry budget remaining.
	Retry

	// Exhausted means the attempt failed transiently and the retry
	// budget is spent. The delivery fails terminally.
	Exhausted
)

// Retrier decides what to do after a delivery attempt and computes
// exponential backoff delays.
//
// Decision matrix:
//   - status < 500 (2xx, 3xx, 4xx)   → Delivered
//   - status >= 500, timeout, network → Retry while attempts < max,
//     Exhausted after
type Retrier struct {
	maxRetries   int
	initialDelay time.Duration
	multiplier   float64
	maxDelay     time.Duration
}

// NewRetrier creates a retrier with the given retry budget and backoff
// parameters.
func NewRetrier(maxRetries int, initialDelay time.Duration, multiplier float64, maxDelay time.Duration) *Retrier {
	return &Retrier{
		maxRetries:   maxRetries,
		initialDelay: initialDelay,
		multiplier:   multiplier,
		maxDelay:     maxDelay,
	}
}

// Decide classifies the result of an attempt on a delivery whose Attempts
// count already includes that attempt.
func (r *Retrier) Decide(res Result, attempts int) Decision {
	if res.Delivered() {
		return Delivered
	}
	if attempts < r.maxRetries {
		return Retry
	}
	return Exhausted
}

// Delay returns the backoff delay after the given attempt number
// (1-based): initialDelay * multiplier^(attempts-1), capped at maxDelay.
func (r *Retrier) Delay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	raw := float64(r.initialDelay) * math.Pow(r.multiplier, float64(attempts-1))
	if raw > float64(r.maxDelay) {
		return r.maxDelay
	}
	return time.Duration(raw)
}

// NextAttempt returns the time at which the delivery may next be
// attempted, given the attempt that just failed.
func (r *Retrier) NextAttempt(attempts int) time.Time {
	return time.Now().UTC().Add(r.Delay(attempts))
}

// MaxRetries returns the retry budget.
func (r *Retrier) MaxRetries() int { return r.maxRetries }
