package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/heraldhq/herald"
	"github.com/heraldhq/herald/id"
	"github.com/heraldhq/herald/webhook"
)

const webhookColumns = `id, url, description, secret, events, headers, active, rate_limit, metadata,
	total_deliveries, successful_deliveries, failed_deliveries, last_delivery_at, last_delivery_status,
	created_at, updated_at`

// SaveWebhook inserts or replaces the stored row for wh.
func (s *Store) SaveWebhook(ctx context.Context, wh *webhook.Webhook) error {
	headers, metadata, err := marshalMaps(wh)
	if err != nil {
		return err
	}

	const q = `INSERT INTO herald_webhooks (` + webhookColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			url = EXCLUDED.url,
			description = EXCLUDED.description,
			secret = EXCLUDED.secret,
			events = EXCLUDED.events,
			headers = EXCLUDED.headers,
			active = EXCLUDED.active,
			rate_limit = EXCLUDED.rate_limit,
			metadata = EXCLUDED.metadata,
			total_deliveries = EXCLUDED.total_deliveries,
			successful_deliveries = EXCLUDED.successful_deliveries,
			failed_deliveries = EXCLUDED.failed_deliveries,
			last_delivery_at = EXCLUDED.last_delivery_at,
			last_delivery_status = EXCLUDED.last_delivery_status,
			updated_at = EXCLUDED.updated_at`

	_, err = s.pool.Exec(ctx, q, webhookArgs(wh, headers, metadata)...)
	if err != nil {
		return fmt.Errorf("herald/postgres: save webhook: %w", err)
	}
	return nil
}

// UpdateWebhook replaces the stored row for wh. Returns
// herald.ErrWebhookNotFound if no row exists.
func (s *Store) UpdateWebhook(ctx context.Context, wh *webhook.Webhook) error {
	headers, metadata, err := marshalMaps(wh)
	if err != nil {
		return err
	}

	const q = `UPDATE herald_webhooks SET
			url = $2, description = $3, secret = $4, events = $5, headers = $6,
			active = $7, rate_limit = $8, metadata = $9,
			total_deliveries = $10, successful_deliveries = $11, failed_deliveries = $12,
			last_delivery_at = $13, last_delivery_status = $14,
			created_at = $15, updated_at = $16
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, webhookArgs(wh, headers, metadata)...)
	if err != nil {
		return fmt.Errorf("herald/postgres: update webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return herald.ErrWebhookNotFound
	}
	return nil
}

// GetWebhook loads one webhook by id. Returns herald.ErrWebhookNotFound if
// no row exists.
func (s *Store) GetWebhook(ctx context.Context, whID id.ID) (*webhook.Webhook, error) {
	const q = `SELECT ` + webhookColumns + ` FROM herald_webhooks WHERE id = $1`

	wh, err := scanWebhook(s.pool.QueryRow(ctx, q, whID.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, herald.ErrWebhookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("herald/postgres: get webhook: %w", err)
	}
	return wh, nil
}

// ListWebhooks returns all stored webhooks ordered by creation time.
func (s *Store) ListWebhooks(ctx context.Context) ([]*webhook.Webhook, error) {
	const q = `SELECT ` + webhookColumns + ` FROM herald_webhooks ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("herald/postgres: list webhooks: %w", err)
	}
	defer rows.Close()

	var out []*webhook.Webhook
	for rows.Next() {
		wh, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("herald/postgres: list webhooks: %w", err)
		}
		out = append(out, wh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("herald/postgres: list webhooks: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteWebhook removes the row for id. Unknown ids are a no-op.
func (s *Store) DeleteWebhook(ctx context.Context, whID id.ID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM herald_webhooks WHERE id = $1`, whID.String())
	if err != nil {
		return fmt.Errorf("herald/postgres: delete webhook: %w", err)
	}
	return nil
}

func marshalMaps(wh *webhook.Webhook) (headers, metadata []byte, err error) {
	if len(wh.Headers) > 0 {
		if headers, err = json.Marshal(wh.Headers); err != nil {
			return nil, nil, fmt.Errorf("herald/postgres: marshal headers: %w", err)
		}
	}
	if len(wh.Metadata) > 0 {
		if metadata, err = json.Marshal(wh.Metadata); err != nil {
			return nil, nil, fmt.Errorf("herald/postgres: marshal metadata: %w", err)
		}
	}
	return headers, metadata, nil
}

func webhookArgs(wh *webhook.Webhook, headers, metadata []byte) []any {
	return []any{
		wh.ID.String(), wh.URL, wh.Description, wh.Secret, wh.Events, headers,
		wh.Active, wh.RateLimit, metadata,
		wh.Stats.TotalDeliveries, wh.Stats.SuccessfulDeliveries, wh.Stats.FailedDeliveries,
		wh.Stats.LastDeliveryAt, wh.Stats.LastDeliveryStatus,
		wh.CreatedAt, wh.UpdatedAt,
	}
}

func scanWebhook(row pgx.Row) (*webhook.Webhook, error) {
	var (
		wh       webhook.Webhook
		headers  []byte
		metadata []byte
	)
	err := row.Scan(
		&wh.ID, &wh.URL, &wh.Description, &wh.Secret, &wh.Events, &headers,
		&wh.Active, &wh.RateLimit, &metadata,
		&wh.Stats.TotalDeliveries, &wh.Stats.SuccessfulDeliveries, &wh.Stats.FailedDeliveries,
		&wh.Stats.LastDeliveryAt, &wh.Stats.LastDeliveryStatus,
		&wh.CreatedAt, &wh.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &wh.Headers); err != nil {
			return nil, fmt.Errorf("unmarshal headers: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &wh.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &wh, nil
}
