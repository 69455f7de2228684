package webhook

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/heraldhq/herald/id"
	"github.com/heraldhq/herald/internal/entity"
	"github.com/heraldhq/herald/signature"
)

// ErrNotFound is returned when a webhook id is not in the registry.
var ErrNotFound = errors.New("herald: webhook not found")

// Store is the slice of the persistence interface the registry mirrors to.
// Every call except SaveWebhook during registration is best-effort.
type Store interface {
	SaveWebhook(ctx context.Context, wh *Webhook) error
	UpdateWebhook(ctx context.Context, wh *Webhook) error
	GetWebhook(ctx context.Context, whID id.ID) (*Webhook, error)
	ListWebhooks(ctx context.Context) ([]*Webhook, error)
	DeleteWebhook(ctx context.Context, whID id.ID) error
}

// Registry is the authoritative in-memory catalog of webhooks.
//
// All reads and writes go through the registry; the external store is a
// mirror for durability across restarts. If the store is unreachable the
// registry keeps serving from memory for the lifetime of the process.
type Registry struct {
	mu     sync.RWMutex
	hooks  map[id.ID]*Webhook
	store  Store
	logger *slog.Logger
}

// NewRegistry creates an empty registry mirrored to store.
func NewRegistry(store Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		hooks:  make(map[id.ID]*Webhook),
		store:  store,
		logger: logger.With("component", "webhook.registry"),
	}
}

// Register validates the input and adds a new webhook to the registry.
//
// The webhook is persisted synchronously: a store failure is returned to
// the caller as a *PersistenceError, but the in-memory entry exists and is
// eligible for deliveries regardless. Callers that require durability
// should delete the webhook when Register returns an error.
func (r *Registry) Register(ctx context.Context, in Input) (*Webhook, error) {
	if err := validateURL(in.URL); err != nil {
		return nil, err
	}
	if len(in.Events) == 0 {
		return nil, &ValidationError{Field: "events", Message: "at least one event type required"}
	}

	secret := in.Secret
	if secret == "" {
		secret = signature.GenerateSecret()
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}
	rateLimit := 0
	if in.RateLimit != nil {
		rateLimit = *in.RateLimit
	}

	wh := &Webhook{
		Entity:      entity.New(),
		ID:          id.NewWebhookID(),
		URL:         in.URL,
		Description: in.Description,
		Secret:      secret,
		Events:      append([]string(nil), in.Events...),
		Headers:     in.Headers,
		Active:      active,
		RateLimit:   rateLimit,
		Metadata:    in.Metadata,
	}

	r.mu.Lock()
	r.hooks[wh.ID] = wh
	r.mu.Unlock()

	if err := r.store.SaveWebhook(ctx, wh.clone()); err != nil {
		r.logger.ErrorContext(ctx, "webhook registered but not persisted",
			"webhook_id", wh.ID, "err", err)
		return wh.clone(), &PersistenceError{Op: "save webhook", Err: err}
	}

	r.logger.InfoContext(ctx, "webhook registered",
		"webhook_id", wh.ID, "url", wh.URL, "events", wh.Events)

	return wh.clone(), nil
}

// Get returns a copy of the webhook with the given id.
func (r *Registry) Get(whID id.ID) (*Webhook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wh, ok := r.hooks[whID]
	if !ok {
		return nil, ErrNotFound
	}
	return wh.clone(), nil
}

// Update merges the set fields of in into the webhook and bumps UpdatedAt.
// The change is mirrored to the store best-effort.
func (r *Registry) Update(ctx context.Context, whID id.ID, in Input) (*Webhook, error) {
	if in.URL != "" {
		if err := validateURL(in.URL); err != nil {
			return nil, err
		}
	}
	if in.Events != nil && len(in.Events) == 0 {
		return nil, &ValidationError{Field: "events", Message: "at least one event type required"}
	}

	r.mu.Lock()
	wh, ok := r.hooks[whID]
	if !ok {
		r.mu.Unlock()
		return nil, ErrNotFound
	}

	if in.URL != "" {
		wh.URL = in.URL
	}
	if len(in.Events) > 0 {
		wh.Events = append([]string(nil), in.Events...)
	}
	if in.Headers != nil {
		wh.Headers = in.Headers
	}
	if in.Active != nil {
		wh.Active = *in.Active
	}
	if in.RateLimit != nil {
		wh.RateLimit = *in.RateLimit
	}
	if in.Description != "" {
		wh.Description = in.Description
	}
	if in.Metadata != nil {
		wh.Metadata = in.Metadata
	}
	wh.Touch()

	out := wh.clone()
	r.mu.Unlock()

	r.tryPersist(ctx, "update webhook", func() error {
		return r.store.UpdateWebhook(ctx, out.clone())
	})

	return out, nil
}

// Delete removes the webhook from the registry.
//
// Deliveries already pending are not cancelled: in-flight attempts complete
// normally and their stat/history updates become silent no-ops; queued
// attempts are dropped when the worker next claims them and finds no
// webhook.
func (r *Registry) Delete(ctx context.Context, whID id.ID) error {
	r.mu.Lock()
	_, ok := r.hooks[whID]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	delete(r.hooks, whID)
	r.mu.Unlock()

	r.tryPersist(ctx, "delete webhook", func() error {
		return r.store.DeleteWebhook(ctx, whID)
	})

	r.logger.InfoContext(ctx, "webhook deleted", "webhook_id", whID)

	return nil
}

// List returns copies of the registered webhooks matching opts, ordered by
// creation time.
func (r *Registry) List(opts ListOpts) []*Webhook {
	r.mu.RLock()
	out := make([]*Webhook, 0, len(r.hooks))
	for _, wh := range r.hooks {
		if opts.Event != "" && !wh.Subscribes(opts.Event) {
			continue
		}
		if opts.Active != nil && wh.Active != *opts.Active {
			continue
		}
		out = append(out, wh.clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out
}

// Match returns copies of the active webhooks subscribed to eventType.
// This is the fan-out hot path.
func (r *Registry) Match(eventType string) []*Webhook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Webhook
	for _, wh := range r.hooks {
		if wh.Active && wh.Subscribes(eventType) {
			out = append(out, wh.clone())
		}
	}
	return out
}

// Pause deactivates the webhook. Pending deliveries are unaffected; only
// new fan-out stops.
func (r *Registry) Pause(ctx context.Context, whID id.ID) (*Webhook, error) {
	active := false
	return r.Update(ctx, whID, Input{Active: &active})
}

// Resume reactivates the webhook.
func (r *Registry) Resume(ctx context.Context, whID id.ID) (*Webhook, error) {
	active := true
	return r.Update(ctx, whID, Input{Active: &active})
}

// RotateSecret generates a new signing secret for the webhook and returns
// it. Deliveries claimed before the rotation may still be signed with the
// previous secret.
func (r *Registry) RotateSecret(ctx context.Context, whID id.ID) (string, error) {
	r.mu.Lock()
	wh, ok := r.hooks[whID]
	if !ok {
		r.mu.Unlock()
		return "", ErrNotFound
	}
	secret := signature.GenerateSecret()
	wh.Secret = secret
	wh.Touch()
	out := wh.clone()
	r.mu.Unlock()

	r.tryPersist(ctx, "rotate secret", func() error {
		return r.store.UpdateWebhook(ctx, out)
	})

	return secret, nil
}

// RecordOutcome applies one terminal delivery outcome to the webhook's
// stats and mirrors the change best-effort. It reports false when the
// webhook has been deleted, in which case nothing is recorded.
func (r *Registry) RecordOutcome(ctx context.Context, whID id.ID, status string, at time.Time) bool {
	r.mu.Lock()
	wh, ok := r.hooks[whID]
	if !ok {
		r.mu.Unlock()
		return false
	}

	wh.Stats.TotalDeliveries++
	if status == "success" {
		wh.Stats.SuccessfulDeliveries++
	} else {
		wh.Stats.FailedDeliveries++
	}
	ts := at
	wh.Stats.LastDeliveryAt = &ts
	wh.Stats.LastDeliveryStatus = status

	out := wh.clone()
	r.mu.Unlock()

	r.tryPersist(ctx, "update webhook stats", func() error {
		return r.store.UpdateWebhook(ctx, out)
	})

	return true
}

// Count returns the number of registered webhooks.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks)
}

// Hydrate loads webhooks from the store into the registry. Entries already
// registered in memory win over stored ones. Intended to run once at
// startup before the worker starts.
func (r *Registry) Hydrate(ctx context.Context) error {
	hooks, err := r.store.ListWebhooks(ctx)
	if err != nil {
		return &PersistenceError{Op: "list webhooks", Err: err}
	}

	r.mu.Lock()
	loaded := 0
	for _, wh := range hooks {
		if _, exists := r.hooks[wh.ID]; exists {
			continue
		}
		r.hooks[wh.ID] = wh.clone()
		loaded++
	}
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "registry hydrated", "loaded", loaded)

	return nil
}

// tryPersist runs a best-effort store write, logging failures instead of
// propagating them. In-memory state stays authoritative.
func (r *Registry) tryPersist(ctx context.Context, op string, fn func() error) {
	if err := fn(); err != nil {
		r.logger.ErrorContext(ctx, "store write failed", "op", op, "err", err)
	}
}

func validateURL(raw string) error {
	if raw == "" {
		return &ValidationError{Field: "url", Message: "required"}
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{Field: "url", Message: "must be an absolute URL"}
	}
	return nil
}

// ValidationError indicates invalid registration or update input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "herald: invalid webhook: " + e.Field + ": " + e.Message
}

// PersistenceError wraps a store failure. Herald surfaces it only from
// Register; everywhere else store failures are logged and absorbed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "herald: persistence: " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }
