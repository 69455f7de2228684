package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/heraldhq/herald/delivery"
	"github.com/heraldhq/herald/event"
)

// SaveDelivery appends a terminal delivery record. Records are immutable,
// so replays of the same id overwrite with identical content.
func (s *Store) SaveDelivery(ctx context.Context, rec *delivery.Record) error {
	m := toDeliveryModel(rec)

	_, err := s.db.Collection(colDeliveries).ReplaceOne(ctx,
		bson.M{"_id": m.ID}, m, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("herald/mongo: save delivery: %w", err)
	}
	return nil
}

// SaveEvent appends a triggered event to the audit log.
func (s *Store) SaveEvent(ctx context.Context, evt *event.Event) error {
	m := toEventModel(evt)

	_, err := s.db.Collection(colEvents).ReplaceOne(ctx,
		bson.M{"_id": m.ID}, m, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("herald/mongo: save event: %w", err)
	}
	return nil
}
