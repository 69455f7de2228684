package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/heraldhq/herald"
	"github.com/heraldhq/herald/id"
	"github.com/heraldhq/herald/webhook"
)

// webhookModel is the JSON representation stored in Redis. The secret and
// stats are persisted here even though the domain type hides them from its
// own serialization.
type webhookModel struct {
	ID          string            `json:"id"`
	URL         string            `json:"url"`
	Description string            `json:"description,omitempty"`
	Secret      string            `json:"secret"`
	Events      []string          `json:"events"`
	Headers     map[string]string `json:"headers,omitempty"`
	Active      bool              `json:"active"`
	RateLimit   int               `json:"rate_limit"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Stats       statsModel        `json:"stats"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type statsModel struct {
	Total      int64      `json:"total"`
	Successful int64      `json:"successful"`
	Failed     int64      `json:"failed"`
	LastAt     *time.Time `json:"last_at,omitempty"`
	LastStatus string     `json:"last_status,omitempty"`
}

func toWebhookModel(wh *webhook.Webhook) *webhookModel {
	return &webhookModel{
		ID:          wh.ID.String(),
		URL:         wh.URL,
		Description: wh.Description,
		Secret:      wh.Secret,
		Events:      wh.Events,
		Headers:     wh.Headers,
		Active:      wh.Active,
		RateLimit:   wh.RateLimit,
		Metadata:    wh.Metadata,
		Stats: statsModel{
			Total:      wh.Stats.TotalDeliveries,
			Successful: wh.Stats.SuccessfulDeliveries,
			Failed:     wh.Stats.FailedDeliveries,
			LastAt:     wh.Stats.LastDeliveryAt,
			LastStatus: wh.Stats.LastDeliveryStatus,
		},
		CreatedAt: wh.CreatedAt,
		UpdatedAt: wh.UpdatedAt,
	}
}

func fromWebhookModel(m *webhookModel) (*webhook.Webhook, error) {
	whID, err := id.ParseWebhookID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse webhook id %q: %w", m.ID, err)
	}
	return &webhook.Webhook{
		Entity: herald.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          whID,
		URL:         m.URL,
		Description: m.Description,
		Secret:      m.Secret,
		Events:      m.Events,
		Headers:     m.Headers,
		Active:      m.Active,
		RateLimit:   m.RateLimit,
		Metadata:    m.Metadata,
		Stats: webhook.Stats{
			TotalDeliveries:      m.Stats.Total,
			SuccessfulDeliveries: m.Stats.Successful,
			FailedDeliveries:     m.Stats.Failed,
			LastDeliveryAt:       m.Stats.LastAt,
			LastDeliveryStatus:   m.Stats.LastStatus,
		},
	}, nil
}

// SaveWebhook stores the webhook and adds it to the time-ordered index.
func (s *Store) SaveWebhook(ctx context.Context, wh *webhook.Webhook) error {
	m := toWebhookModel(wh)
	raw, err := marshalEntity(m)
	if err != nil {
		return err
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, entityKey(prefixWebhook, m.ID), raw, 0)
	pipe.ZAdd(ctx, zWebhooksAll, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("herald/redis: save webhook: %w", err)
	}
	return nil
}

// UpdateWebhook replaces a stored webhook.
func (s *Store) UpdateWebhook(ctx context.Context, wh *webhook.Webhook) error {
	key := entityKey(prefixWebhook, wh.ID.String())

	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("herald/redis: update webhook: %w", err)
	}
	if exists == 0 {
		return herald.ErrWebhookNotFound
	}

	raw, err := marshalEntity(toWebhookModel(wh))
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("herald/redis: update webhook: %w", err)
	}
	return nil
}

// GetWebhook returns a stored webhook by id.
func (s *Store) GetWebhook(ctx context.Context, whID id.ID) (*webhook.Webhook, error) {
	var m webhookModel
	if err := s.getEntity(ctx, entityKey(prefixWebhook, whID.String()), &m); err != nil {
		if isNil(err) {
			return nil, herald.ErrWebhookNotFound
		}
		return nil, fmt.Errorf("herald/redis: get webhook: %w", err)
	}
	return fromWebhookModel(&m)
}

// ListWebhooks returns all stored webhooks ordered by creation time.
func (s *Store) ListWebhooks(ctx context.Context) ([]*webhook.Webhook, error) {
	ids, err := s.rdb.ZRange(ctx, zWebhooksAll, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("herald/redis: list webhooks: %w", err)
	}

	out := make([]*webhook.Webhook, 0, len(ids))
	for _, entryID := range ids {
		var m webhookModel
		if err := s.getEntity(ctx, entityKey(prefixWebhook, entryID), &m); err != nil {
			if isNil(err) {
				// Index entry outlived its entity; skip.
				continue
			}
			return nil, fmt.Errorf("herald/redis: list webhooks: %w", err)
		}
		wh, err := fromWebhookModel(&m)
		if err != nil {
			return nil, err
		}
		out = append(out, wh)
	}

	// Equal scores (same creation second) come back in member order;
	// normalize like the other backends.
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

// DeleteWebhook removes the webhook and its index entries. Unknown ids are
// a no-op.
func (s *Store) DeleteWebhook(ctx context.Context, whID id.ID) error {
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, entityKey(prefixWebhook, whID.String()))
	pipe.ZRem(ctx, zWebhooksAll, whID.String())
	pipe.Del(ctx, zDeliveriesFor+whID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("herald/redis: delete webhook: %w", err)
	}
	return nil
}
