package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/heraldhq/herald"
	"github.com/heraldhq/herald/id"
	"github.com/heraldhq/herald/webhook"
)

// SaveWebhook inserts or replaces the stored document for wh.
func (s *Store) SaveWebhook(ctx context.Context, wh *webhook.Webhook) error {
	m := toWebhookModel(wh)

	_, err := s.db.Collection(colWebhooks).ReplaceOne(ctx,
		bson.M{"_id": m.ID}, m, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("herald/mongo: save webhook: %w", err)
	}
	return nil
}

// UpdateWebhook replaces the stored document for wh. Returns
// herald.ErrWebhookNotFound if no document exists.
func (s *Store) UpdateWebhook(ctx context.Context, wh *webhook.Webhook) error {
	m := toWebhookModel(wh)

	res, err := s.db.Collection(colWebhooks).ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return fmt.Errorf("herald/mongo: update webhook: %w", err)
	}
	if res.MatchedCount == 0 {
		return herald.ErrWebhookNotFound
	}
	return nil
}

// GetWebhook loads one webhook by id. Returns herald.ErrWebhookNotFound if
// no document exists.
func (s *Store) GetWebhook(ctx context.Context, whID id.ID) (*webhook.Webhook, error) {
	var m webhookModel

	err := s.db.Collection(colWebhooks).FindOne(ctx, bson.M{"_id": whID.String()}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, herald.ErrWebhookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("herald/mongo: get webhook: %w", err)
	}
	return fromWebhookModel(&m)
}

// ListWebhooks returns all stored webhooks ordered by creation time.
func (s *Store) ListWebhooks(ctx context.Context) ([]*webhook.Webhook, error) {
	cur, err := s.db.Collection(colWebhooks).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("herald/mongo: list webhooks: %w", err)
	}

	var models []webhookModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("herald/mongo: list webhooks: %w", err)
	}

	out := make([]*webhook.Webhook, 0, len(models))
	for i := range models {
		wh, err := fromWebhookModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, wh)
	}
	return out, nil
}

// DeleteWebhook removes the document for id. Unknown ids are a no-op.
func (s *Store) DeleteWebhook(ctx context.Context, whID id.ID) error {
	_, err := s.db.Collection(colWebhooks).DeleteOne(ctx, bson.M{"_id": whID.String()})
	if err != nil {
		return fmt.Errorf("herald/mongo: delete webhook: %w", err)
	}
	return nil
}
