// Package delivery contains the pending-delivery queue, the outbound
// sender, and the scheduler that drives webhook delivery attempts.
package delivery

import (
	"time"

	"github.com/heraldhq/herald/event"
	"github.com/heraldhq/herald/id"
)

// Status is the terminal outcome of a delivery.
type Status string

const (
	// StatusSuccess indicates the receiver acknowledged the delivery
	// (any HTTP status below 500, including 4xx rejections).
	StatusSuccess Status = "success"

	// StatusFailed indicates the delivery exhausted its retry budget
	// without a successful attempt.
	StatusFailed Status = "failed"
)

// Delivery is one pending unit of work: one event bound for one webhook.
//
// A Delivery lives in the pending queue from enqueue until its terminal
// outcome, at which point it is removed and a Record is written in its
// place. It never exists in both forms.
type Delivery struct {
	// ID is the unique TypeID for this delivery. The terminal Record
	// shares it.
	ID id.ID `json:"id"`

	// WebhookID references the target webhook.
	WebhookID id.ID `json:"webhook_id"`

	// Event is the event being delivered. Shared, never mutated.
	Event *event.Event `json:"event"`

	// Attempts counts HTTP attempts made so far. Starts at 0 and is
	// incremented before each attempt.
	Attempts int `json:"attempts"`

	// NextAttemptAt is the earliest time the delivery may be attempted.
	NextAttemptAt time.Time `json:"next_attempt_at"`

	// CreatedAt is when the delivery was first enqueued.
	CreatedAt time.Time `json:"created_at"`
}

// New constructs a Delivery for evt bound to the given webhook, due
// immediately.
func New(whID id.ID, evt *event.Event) *Delivery {
	now := time.Now().UTC()
	return &Delivery{
		ID:            id.NewDeliveryID(),
		WebhookID:     whID,
		Event:         evt,
		Attempts:      0,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
}

// Record is the terminal, immutable outcome of a Delivery.
type Record struct {
	// ID is the originating Delivery's id.
	ID id.ID `json:"id"`

	// WebhookID references the target webhook.
	WebhookID id.ID `json:"webhook_id"`

	// EventID and EventType identify the delivered event.
	EventID   id.ID  `json:"event_id"`
	EventType string `json:"event_type"`

	// Status is the terminal outcome.
	Status Status `json:"status"`

	// Attempts is the attempt count at completion.
	Attempts int `json:"attempts"`

	// StatusCode is the HTTP status of the final attempt, 0 if the
	// attempt never got a response.
	StatusCode int `json:"status_code,omitempty"`

	// Response is the final attempt's response body, capped at 1KB.
	Response string `json:"response,omitempty"`

	// Error is the final attempt's transport error, if any.
	Error string `json:"error,omitempty"`

	// CreatedAt is when the delivery was first enqueued; CompletedAt is
	// when the terminal outcome was reached.
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at"`

	// Event retains the delivered event in memory so failed records can
	// be redelivered without a store round-trip. Not serialized.
	Event *event.Event `json:"-"`
}
