// Package mongo implements store.Store on MongoDB.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/heraldhq/herald/store"
)

// Collection name constants.
const (
	colWebhooks   = "herald_webhooks"
	colDeliveries = "herald_deliveries"
	colEvents     = "herald_events"
)

var _ store.Store = (*Store)(nil)

// Store mirrors registry, delivery and event state into MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New wraps an existing database handle.
func New(db *mongo.Database) *Store {
	return &Store{client: db.Client(), db: db}
}

// Open connects to a MongoDB URI and verifies connectivity.
func Open(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("herald/mongo: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("herald/mongo: ping: %w", err)
	}

	return &Store{client: client, db: client.Database(dbName)}, nil
}

// Migrate creates indexes for all Herald collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		_, err := s.db.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("herald/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the underlying client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// migrationIndexes returns the index definitions for all Herald collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colWebhooks: {
			{Keys: bson.D{{Key: "active", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
		colDeliveries: {
			{Keys: bson.D{{Key: "webhook_id", Value: 1}, {Key: "completed_at", Value: -1}}},
			{Keys: bson.D{{Key: "event_id", Value: 1}}},
		},
		colEvents: {
			{Keys: bson.D{{Key: "type", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
	}
}
