package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/heraldhq/herald/delivery"
	"github.com/heraldhq/herald/event"
)

// SaveDelivery stores a terminal delivery record and indexes it by webhook
// and completion time. Records serialize directly; the retained in-memory
// event carries a json:"-" tag and is not persisted.
func (s *Store) SaveDelivery(ctx context.Context, rec *delivery.Record) error {
	raw, err := marshalEntity(rec)
	if err != nil {
		return err
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, entityKey(prefixDelivery, rec.ID.String()), raw, 0)
	pipe.ZAdd(ctx, zDeliveriesFor+rec.WebhookID.String(),
		goredis.Z{Score: scoreFromTime(rec.CompletedAt), Member: rec.ID.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("herald/redis: save delivery: %w", err)
	}
	return nil
}

// SaveEvent stores a triggered event and indexes it by timestamp.
func (s *Store) SaveEvent(ctx context.Context, evt *event.Event) error {
	raw, err := marshalEntity(evt)
	if err != nil {
		return err
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, entityKey(prefixEvent, evt.ID.String()), raw, 0)
	pipe.ZAdd(ctx, zEventsAll,
		goredis.Z{Score: scoreFromTime(evt.Timestamp), Member: evt.ID.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("herald/redis: save event: %w", err)
	}
	return nil
}
