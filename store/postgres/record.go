package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/heraldhq/herald/delivery"
	"github.com/heraldhq/herald/event"
)

// SaveDelivery appends a terminal delivery record. Records are immutable,
// so replays of the same id are ignored.
func (s *Store) SaveDelivery(ctx context.Context, rec *delivery.Record) error {
	const q = `INSERT INTO herald_deliveries
			(id, webhook_id, event_id, event_type, status, attempts, status_code, response, error, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, q,
		rec.ID.String(), rec.WebhookID.String(), rec.EventID.String(), rec.EventType,
		string(rec.Status), rec.Attempts, rec.StatusCode, rec.Response, rec.Error,
		rec.CreatedAt, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("herald/postgres: save delivery: %w", err)
	}
	return nil
}

// SaveEvent appends a triggered event to the audit log.
func (s *Store) SaveEvent(ctx context.Context, evt *event.Event) error {
	var payload []byte
	if evt.Payload != nil {
		var err error
		if payload, err = json.Marshal(evt.Payload); err != nil {
			return fmt.Errorf("herald/postgres: marshal event payload: %w", err)
		}
	}

	const q = `INSERT INTO herald_events (id, type, payload, timestamp)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, q, evt.ID.String(), evt.Type, payload, evt.Timestamp)
	if err != nil {
		return fmt.Errorf("herald/postgres: save event: %w", err)
	}
	return nil
}
