// Package ratelimit provides per-webhook delivery rate limiting.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter maintains one token bucket per webhook, keyed by webhook ID.
//
// Buckets are created on first use with burst equal to the per-second rate
// and replaced transparently when a webhook's configured rate changes.
// The delivery worker consults Allow before each attempt; an empty bucket
// defers the attempt rather than failing it.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// New creates an empty limiter registry.
func New() *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether one delivery to the keyed webhook may proceed now,
// consuming a token if so. perSecond <= 0 means unlimited.
func (l *Limiter) Allow(key string, perSecond int) bool {
	if perSecond <= 0 {
		return true
	}
	return l.bucket(key, perSecond).Allow()
}

// Wait blocks until a token is available or ctx is done.
// perSecond <= 0 means unlimited and returns immediately.
func (l *Limiter) Wait(ctx context.Context, key string, perSecond int) error {
	if perSecond <= 0 {
		return nil
	}
	return l.bucket(key, perSecond).Wait(ctx)
}

// Reset drops the bucket for a webhook so the next Allow starts full.
// Called when a webhook is deleted.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Len returns the number of tracked buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// bucket returns the limiter for key, creating or resizing it so its rate
// matches perSecond.
func (l *Limiter) bucket(key string, perSecond int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || b.Limit() != rate.Limit(perSecond) {
		b = rate.NewLimiter(rate.Limit(perSecond), perSecond)
		l.buckets[key] = b
	}
	return b
}
