package catalog

import (
	"encoding/json"
	"time"

	"github.com/heraldhq/herald/id"
	"github.com/heraldhq/herald/internal/entity"
)

// EventType is a registered event type. It wraps a Definition with
// identity and deprecation state.
type EventType struct {
	entity.Entity

	// ID is the unique TypeID for this event type.
	ID id.ID `json:"id"`

	// Definition is the event type descriptor.
	Definition Definition `json:"definition"`

	// IsDeprecated marks a soft-deleted event type. Deprecated types stay
	// listed (with IncludeDeprecated) but are rejected by strict catalogs.
	IsDeprecated bool `json:"deprecated"`

	// DeprecatedAt is when the event type was deprecated.
	DeprecatedAt *time.Time `json:"deprecated_at,omitempty"`

	// Metadata holds user-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// clone returns a deep copy safe to hand outside the catalog lock.
func (et *EventType) clone() *EventType {
	dup := *et
	if et.DeprecatedAt != nil {
		ts := *et.DeprecatedAt
		dup.DeprecatedAt = &ts
	}
	if et.Metadata != nil {
		dup.Metadata = make(map[string]string, len(et.Metadata))
		for k, v := range et.Metadata {
			dup.Metadata[k] = v
		}
	}
	dup.Definition.Schema = append(json.RawMessage(nil), et.Definition.Schema...)
	dup.Definition.Example = append(json.RawMessage(nil), et.Definition.Example...)
	return &dup
}

// ListOpts configures filtering and pagination for event type listing.
type ListOpts struct {
	Offset            int
	Limit             int
	Group             string
	IncludeDeprecated bool

	// Match filters by subscription pattern, e.g. "invoice.*". Discovery
	// only; delivery fan-out always matches event types exactly.
	Match string
}
