// Package webhook defines webhook subscriptions and the in-memory registry
// that owns them.
package webhook

import (
	"time"

	"github.com/heraldhq/herald/id"
	"github.com/heraldhq/herald/internal/entity"
)

// Webhook represents a registered delivery target: a URL subscribed to a
// set of event types, plus the signing secret and delivery bookkeeping.
type Webhook struct {
	entity.Entity

	// ID is the unique TypeID for this webhook.
	ID id.ID `json:"id"`

	// URL is the delivery destination. Must be an absolute URI.
	URL string `json:"url"`

	// Description is a human-readable description.
	Description string `json:"description,omitempty"`

	// Secret is the HMAC signing secret. Never serialized.
	Secret string `json:"-"`

	// Events is the set of event-type strings this webhook receives.
	// Matching is exact; a webhook subscribed to "query.completed" does
	// not receive "query.failed".
	Events []string `json:"events"`

	// Headers are custom static HTTP headers sent with each delivery.
	// The X-Webhook-* namespace and Content-Type cannot be overridden.
	Headers map[string]string `json:"headers,omitempty"`

	// Active controls fan-out. Inactive webhooks receive no new
	// deliveries but retain their history and stats.
	Active bool `json:"active"`

	// RateLimit is the maximum deliveries per second. 0 means unlimited.
	RateLimit int `json:"rate_limit"`

	// Metadata holds user-defined key-value pairs, opaque to Herald.
	Metadata map[string]string `json:"metadata,omitempty"`

	// Stats are the running delivery counters for this webhook.
	Stats Stats `json:"delivery_stats"`
}

// Stats holds running delivery counters for one webhook.
//
// TotalDeliveries counts terminal outcomes, not individual HTTP attempts:
// a delivery that fails five times and exhausts its retry budget counts
// once, as a failure.
type Stats struct {
	TotalDeliveries      int64      `json:"total_deliveries"`
	SuccessfulDeliveries int64      `json:"successful_deliveries"`
	FailedDeliveries     int64      `json:"failed_deliveries"`
	LastDeliveryAt       *time.Time `json:"last_delivery_at,omitempty"`
	LastDeliveryStatus   string     `json:"last_delivery_status,omitempty"`
}

// Subscribes reports whether the webhook's event set contains eventType.
func (w *Webhook) Subscribes(eventType string) bool {
	for _, t := range w.Events {
		if t == eventType {
			return true
		}
	}
	return false
}

// clone returns a deep copy safe to hand outside the registry lock.
func (w *Webhook) clone() *Webhook {
	dup := *w
	dup.Events = append([]string(nil), w.Events...)
	if w.Headers != nil {
		dup.Headers = make(map[string]string, len(w.Headers))
		for k, v := range w.Headers {
			dup.Headers[k] = v
		}
	}
	if w.Metadata != nil {
		dup.Metadata = make(map[string]string, len(w.Metadata))
		for k, v := range w.Metadata {
			dup.Metadata[k] = v
		}
	}
	if w.Stats.LastDeliveryAt != nil {
		at := *w.Stats.LastDeliveryAt
		dup.Stats.LastDeliveryAt = &at
	}
	return &dup
}
