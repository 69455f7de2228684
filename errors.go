package herald

import (
	"github.com/heraldhq/herald/catalog"
	"github.com/heraldhq/herald/history"
	"github.com/heraldhq/herald/store"
	"github.com/heraldhq/herald/webhook"
)

// Sentinel errors returned by Herald operations. Subsystem sentinels are
// re-exported here so callers can match everything through the root package
// with errors.Is.
var (
	// ErrWebhookNotFound is returned when a webhook id is not registered.
	ErrWebhookNotFound = webhook.ErrNotFound

	// ErrRecordNotFound is returned when a delivery record id is unknown or
	// has been evicted from the history ring.
	ErrRecordNotFound = history.ErrRecordNotFound

	// ErrNotRedeliverable is returned when a record cannot be re-enqueued
	// (only failed records with a retained event can be).
	ErrNotRedeliverable = history.ErrNotRedeliverable

	// ErrEventTypeNotFound is returned by strict catalogs when triggering an
	// unregistered event type.
	ErrEventTypeNotFound = catalog.ErrTypeNotFound

	// ErrEventTypeDeprecated is returned by strict catalogs when triggering
	// a deprecated event type.
	ErrEventTypeDeprecated = catalog.ErrTypeDeprecated

	// ErrPayloadValidationFailed is returned when a trigger payload fails
	// its event type's JSON Schema.
	ErrPayloadValidationFailed = catalog.ErrPayloadInvalid

	// ErrStoreClosed is returned when a store operation is attempted after
	// the store is closed.
	ErrStoreClosed = store.ErrClosed
)

// ValidationError reports malformed webhook registration or update input.
type ValidationError = webhook.ValidationError

// PersistenceError wraps an external store failure. It is surfaced only
// from Register; everywhere else store failures are logged and absorbed
// because in-memory state stays authoritative.
type PersistenceError = webhook.PersistenceError
