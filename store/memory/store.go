// Package memory provides the in-memory Store. It is the default backend
// and the test double: same contract as the external backends, no process
// to run.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/heraldhq/herald/delivery"
	"github.com/heraldhq/herald/event"
	"github.com/heraldhq/herald/id"
	"github.com/heraldhq/herald/store"
	"github.com/heraldhq/herald/webhook"
)

// compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store keeps everything in mutex-guarded maps. Values are stored and
// returned by pointer; callers must not mutate what they get back.
type Store struct {
	mu       sync.RWMutex
	webhooks map[id.ID]*webhook.Webhook
	records  []*delivery.Record
	events   []*event.Event
	closed   bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		webhooks: make(map[id.ID]*webhook.Webhook),
	}
}

// SaveWebhook stores a webhook, replacing any entry with the same id.
func (s *Store) SaveWebhook(_ context.Context, wh *webhook.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	s.webhooks[wh.ID] = wh
	return nil
}

// UpdateWebhook replaces a stored webhook.
func (s *Store) UpdateWebhook(_ context.Context, wh *webhook.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	if _, ok := s.webhooks[wh.ID]; !ok {
		return webhook.ErrNotFound
	}
	s.webhooks[wh.ID] = wh
	return nil
}

// GetWebhook returns a stored webhook by id.
func (s *Store) GetWebhook(_ context.Context, whID id.ID) (*webhook.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}
	wh, ok := s.webhooks[whID]
	if !ok {
		return nil, webhook.ErrNotFound
	}
	return wh, nil
}

// ListWebhooks returns all stored webhooks ordered by creation time.
func (s *Store) ListWebhooks(_ context.Context) ([]*webhook.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}
	out := make([]*webhook.Webhook, 0, len(s.webhooks))
	for _, wh := range s.webhooks {
		out = append(out, wh)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteWebhook removes a stored webhook. Deleting an unknown id is a no-op.
func (s *Store) DeleteWebhook(_ context.Context, whID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	delete(s.webhooks, whID)
	return nil
}

// SaveDelivery appends a terminal delivery record.
func (s *Store) SaveDelivery(_ context.Context, rec *delivery.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	s.records = append(s.records, rec)
	return nil
}

// SaveEvent appends a triggered event.
func (s *Store) SaveEvent(_ context.Context, evt *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	s.events = append(s.events, evt)
	return nil
}

// Ping reports whether the store is open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return store.ErrClosed
	}
	return nil
}

// Close marks the store closed. Subsequent operations fail with
// ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// DeliveryRecords returns a copy of the saved records, in save order.
// Test introspection.
func (s *Store) DeliveryRecords() []*delivery.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*delivery.Record(nil), s.records...)
}

// Events returns a copy of the saved events, in save order.
// Test introspection.
func (s *Store) Events() []*event.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*event.Event(nil), s.events...)
}
