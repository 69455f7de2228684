// Package store defines the persistence interface Herald mirrors its
// in-memory state to.
//
// The store is a durability mirror, not an authority: in-memory state keeps
// serving when it is unreachable, every write except registration's
// SaveWebhook is best-effort, and reads happen only at startup hydration.
package store

import (
	"context"
	"errors"

	"github.com/heraldhq/herald/delivery"
	"github.com/heraldhq/herald/event"
	"github.com/heraldhq/herald/id"
	"github.com/heraldhq/herald/webhook"
)

// ErrClosed is returned by store operations after Close.
var ErrClosed = errors.New("herald: store is closed")

// Store is the external persistence interface, satisfied by the memory,
// redis, postgres, and mongo backends.
type Store interface {
	// SaveWebhook persists a newly registered webhook.
	SaveWebhook(ctx context.Context, wh *webhook.Webhook) error

	// UpdateWebhook persists webhook mutations, config and stats alike.
	UpdateWebhook(ctx context.Context, wh *webhook.Webhook) error

	// GetWebhook returns a stored webhook by id.
	GetWebhook(ctx context.Context, whID id.ID) (*webhook.Webhook, error)

	// ListWebhooks returns all stored webhooks.
	ListWebhooks(ctx context.Context) ([]*webhook.Webhook, error)

	// DeleteWebhook removes a stored webhook.
	DeleteWebhook(ctx context.Context, whID id.ID) error

	// SaveDelivery persists a terminal delivery record.
	SaveDelivery(ctx context.Context, rec *delivery.Record) error

	// SaveEvent persists a triggered event for audit.
	SaveEvent(ctx context.Context, evt *event.Event) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases underlying connections.
	Close() error
}
