// Package history keeps each webhook's recent delivery outcomes and serves
// per-webhook delivery statistics.
//
// The per-webhook ring is the in-process record of truth: the external
// store receives a best-effort copy of every record but is never read back
// on the serving path.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/heraldhq/herald/delivery"
	"github.com/heraldhq/herald/id"
	"github.com/heraldhq/herald/webhook"
)

var (
	// ErrRecordNotFound is returned when a delivery record id is unknown
	// or the record has been evicted from the ring.
	ErrRecordNotFound = errors.New("herald: delivery record not found")

	// ErrNotRedeliverable is returned when a record cannot be re-enqueued.
	ErrNotRedeliverable = errors.New("herald: record not redeliverable")
)

// DefaultRingSize is the per-webhook record cap when none is configured.
const DefaultRingSize = 1000

// Registry is the slice of the webhook registry the history service needs:
// stat reads and terminal outcome recording.
type Registry interface {
	Get(whID id.ID) (*webhook.Webhook, error)
	RecordOutcome(ctx context.Context, whID id.ID, status string, at time.Time) bool
}

// Store is the slice of the persistence interface records are mirrored to.
type Store interface {
	SaveDelivery(ctx context.Context, rec *delivery.Record) error
}

// ListOpts configures history listing.
type ListOpts struct {
	// Limit caps the number of records returned. <= 0 returns all retained.
	Limit int

	// Status filters by terminal outcome when non-empty.
	Status delivery.Status
}

// Service records terminal delivery outcomes and serves history, stats,
// and redelivery.
type Service struct {
	mu    sync.RWMutex
	rings map[id.ID][]*delivery.Record // per webhook, oldest first
	byID  map[id.ID]*delivery.Record
	cap   int

	registry Registry
	queue    *delivery.Queue
	store    Store
	logger   *slog.Logger
}

// NewService creates a history service retaining up to ringSize records per
// webhook. ringSize <= 0 uses DefaultRingSize.
func NewService(registry Registry, queue *delivery.Queue, store Store, ringSize int, logger *slog.Logger) *Service {
	if ringSize <= 0 {
		ringSize = DefaultRingSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		rings:    make(map[id.ID][]*delivery.Record),
		byID:     make(map[id.ID]*delivery.Record),
		cap:      ringSize,
		registry: registry,
		queue:    queue,
		store:    store,
		logger:   logger.With("component", "history"),
	}
}

// Record applies one terminal outcome: webhook stats first, then the ring,
// then a best-effort store write. Outcomes for webhooks deleted mid-flight
// are dropped entirely so stats, ring, and store stay consistent.
func (s *Service) Record(ctx context.Context, rec *delivery.Record) {
	if !s.registry.RecordOutcome(ctx, rec.WebhookID, string(rec.Status), rec.CompletedAt) {
		s.logger.DebugContext(ctx, "outcome for deleted webhook dropped",
			"delivery_id", rec.ID, "webhook_id", rec.WebhookID)
		return
	}

	s.mu.Lock()
	ring := append(s.rings[rec.WebhookID], rec)
	if len(ring) > s.cap {
		delete(s.byID, ring[0].ID)
		copy(ring, ring[1:])
		ring = ring[:len(ring)-1]
	}
	s.rings[rec.WebhookID] = ring
	s.byID[rec.ID] = rec
	s.mu.Unlock()

	if err := s.store.SaveDelivery(ctx, rec); err != nil {
		s.logger.ErrorContext(ctx, "store write failed",
			"op", "save delivery", "delivery_id", rec.ID, "err", err)
	}
}

// List returns the webhook's retained records most-recent-first, optionally
// filtered by status.
func (s *Service) List(whID id.ID, opts ListOpts) []*delivery.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ring := s.rings[whID]
	out := make([]*delivery.Record, 0, len(ring))
	for i := len(ring) - 1; i >= 0; i-- {
		rec := ring[i]
		if opts.Status != "" && rec.Status != opts.Status {
			continue
		}
		out = append(out, rec)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out
}

// Get returns a record by its delivery id.
func (s *Service) Get(recID id.ID) (*delivery.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[recID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec, nil
}

// Count returns the number of retained records across all webhooks.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Redeliver re-enqueues a failed record's event as a fresh delivery with a
// new id and a zero attempt count. The original record is unchanged; the
// redelivery produces its own record when it completes.
func (s *Service) Redeliver(ctx context.Context, recID id.ID) (*delivery.Delivery, error) {
	rec, err := s.Get(recID)
	if err != nil {
		return nil, err
	}
	if rec.Status != delivery.StatusFailed {
		return nil, fmt.Errorf("%w: record %s is %s, only failed records can be redelivered",
			ErrNotRedeliverable, recID, rec.Status)
	}
	if rec.Event == nil {
		return nil, fmt.Errorf("%w: record %s has no retained event payload",
			ErrNotRedeliverable, recID)
	}
	if _, err := s.registry.Get(rec.WebhookID); err != nil {
		return nil, err
	}

	d := delivery.New(rec.WebhookID, rec.Event)
	s.queue.Enqueue(d)

	s.logger.InfoContext(ctx, "redelivery enqueued",
		"record_id", recID, "delivery_id", d.ID, "webhook_id", rec.WebhookID)

	return d, nil
}
