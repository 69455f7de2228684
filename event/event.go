// Package event defines the immutable event type delivered to webhooks.
package event

import (
	"encoding/json"
	"time"

	"github.com/heraldhq/herald/id"
)

// Event is a typed occurrence submitted for delivery.
//
// Events are immutable once constructed. They are persisted for audit only;
// the pending delivery set, not the event log, drives retries.
type Event struct {
	// ID is the unique TypeID for this event, assigned at trigger time.
	ID id.ID `json:"id"`

	// Type is the dot-separated event type name (e.g. "query.completed").
	Type string `json:"type"`

	// Payload is the opaque domain data, serializable as JSON.
	Payload any `json:"payload"`

	// Timestamp is the creation time (UTC, serialized as RFC 3339).
	Timestamp time.Time `json:"timestamp"`
}

// New constructs an Event of the given type with a fresh ID and the current
// UTC timestamp.
func New(eventType string, payload any) *Event {
	return &Event{
		ID:        id.NewEventID(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Body returns the canonical JSON serialization of the event: the exact
// bytes sent as the delivery request body and covered by the signature.
func (e *Event) Body() ([]byte, error) {
	return json.Marshal(e)
}
