// Package catalog tracks registered event types and validates trigger
// payloads against their JSON Schemas.
//
// The catalog is permissive by default: event types that were never
// registered flow through untouched, so triggering arbitrary types keeps
// working. Strict mode turns unknown and deprecated types into errors.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/heraldhq/herald/id"
	"github.com/heraldhq/herald/internal/entity"
)

var (
	// ErrTypeNotFound is returned for event type names not in the catalog.
	ErrTypeNotFound = errors.New("herald: event type not found")

	// ErrTypeDeprecated is returned by strict catalogs when a deprecated
	// event type is triggered.
	ErrTypeDeprecated = errors.New("herald: event type deprecated")

	// ErrPayloadInvalid is the root of schema validation failures.
	ErrPayloadInvalid = errors.New("herald: event payload validation failed")

	// ErrInvalidDefinition is the root of registration failures.
	ErrInvalidDefinition = errors.New("herald: invalid event type definition")
)

// PayloadError reports a trigger payload that failed its event type's
// schema. It matches ErrPayloadInvalid via errors.Is and unwraps to the
// underlying jsonschema error for detail.
type PayloadError struct {
	EventType string
	Err       error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("herald: payload for %q failed schema validation: %v", e.EventType, e.Err)
}

func (e *PayloadError) Unwrap() []error { return []error{ErrPayloadInvalid, e.Err} }

// Config configures the catalog.
type Config struct {
	// Strict rejects triggers for unknown and deprecated event types.
	// When false (the default), unregistered types pass through and
	// deprecated types pass with a warning.
	Strict bool
}

// Catalog is the in-memory registry of event types.
type Catalog struct {
	mu        sync.RWMutex
	byName    map[string]*EventType
	byID      map[id.ID]*EventType
	strict    bool
	validator *Validator
	logger    *slog.Logger
}

// New creates an empty catalog.
func New(cfg Config, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		byName:    make(map[string]*EventType),
		byID:      make(map[id.ID]*EventType),
		strict:    cfg.Strict,
		validator: NewValidator(),
		logger:    logger.With("component", "catalog"),
	}
}

// Strict reports whether the catalog rejects unknown and deprecated types.
func (c *Catalog) Strict() bool { return c.strict }

// RegisterOption configures Register behavior.
type RegisterOption func(*registerOptions)

type registerOptions struct {
	metadata map[string]string
}

// WithMetadata sets metadata on a registered event type.
func WithMetadata(m map[string]string) RegisterOption {
	return func(o *registerOptions) { o.metadata = m }
}

// Register adds an event type or updates the existing one with the same
// name. Re-registering a deprecated type reinstates it. A definition with
// a schema that does not compile is rejected.
func (c *Catalog) Register(def Definition, opts ...RegisterOption) (*EventType, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("%w: name required", ErrInvalidDefinition)
	}
	if len(def.Schema) > 0 {
		if err := c.validator.CheckSchema(def.Schema); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
		}
	}

	ro := registerOptions{}
	for _, o := range opts {
		o(&ro)
	}

	c.mu.Lock()
	et, exists := c.byName[def.Name]
	if exists {
		et.Definition = def
		et.IsDeprecated = false
		et.DeprecatedAt = nil
		if ro.metadata != nil {
			et.Metadata = ro.metadata
		}
		et.Touch()
	} else {
		et = &EventType{
			Entity:     entity.New(),
			ID:         id.NewEventTypeID(),
			Definition: def,
			Metadata:   ro.metadata,
		}
		c.byName[def.Name] = et
		c.byID[et.ID] = et
	}
	out := et.clone()
	c.mu.Unlock()

	c.logger.Info("event type registered",
		"name", def.Name, "version", def.Version, "updated", exists)

	return out, nil
}

// Get returns the event type with the given name.
func (c *Catalog) Get(name string) (*EventType, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	et, ok := c.byName[name]
	if !ok {
		return nil, ErrTypeNotFound
	}
	return et.clone(), nil
}

// GetByID returns the event type with the given id.
func (c *Catalog) GetByID(etID id.ID) (*EventType, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	et, ok := c.byID[etID]
	if !ok {
		return nil, ErrTypeNotFound
	}
	return et.clone(), nil
}

// List returns registered event types matching opts, ordered by name.
// Deprecated types are excluded unless opts.IncludeDeprecated is set.
func (c *Catalog) List(opts ListOpts) []*EventType {
	c.mu.RLock()
	out := make([]*EventType, 0, len(c.byName))
	for _, et := range c.byName {
		if et.IsDeprecated && !opts.IncludeDeprecated {
			continue
		}
		if opts.Group != "" && et.Definition.Group != opts.Group {
			continue
		}
		if opts.Match != "" && !Match(opts.Match, et.Definition.Name) {
			continue
		}
		out = append(out, et.clone())
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Definition.Name < out[j].Definition.Name
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []*EventType{}
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out
}

// MatchTypes returns the non-deprecated event types whose names match a
// subscription pattern such as "invoice.*", ordered by name.
func (c *Catalog) MatchTypes(pattern string) []*EventType {
	return c.List(ListOpts{Match: pattern})
}

// Deprecate soft-deletes an event type. The type stays listed (behind
// IncludeDeprecated) so existing consumers can discover the deprecation.
// Deprecating an already-deprecated type is a no-op.
func (c *Catalog) Deprecate(name string) error {
	c.mu.Lock()
	et, ok := c.byName[name]
	if !ok {
		c.mu.Unlock()
		return ErrTypeNotFound
	}
	if !et.IsDeprecated {
		now := time.Now().UTC()
		et.IsDeprecated = true
		et.DeprecatedAt = &now
		et.Touch()
	}
	c.mu.Unlock()

	c.logger.Info("event type deprecated", "name", name)

	return nil
}

// Count returns the number of registered event types, deprecated included.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byName)
}

// Check gates a trigger. It resolves the event type by name and validates
// the payload against its schema when one is registered.
//
// Permissive mode: unknown types pass, deprecated types pass with a
// warning. Strict mode: unknown types fail with ErrTypeNotFound and
// deprecated types with ErrTypeDeprecated. Schema validation applies in
// both modes.
func (c *Catalog) Check(eventType string, payload any) error {
	c.mu.RLock()
	et, ok := c.byName[eventType]
	var deprecated bool
	var schema []byte
	if ok {
		deprecated = et.IsDeprecated
		schema = et.Definition.Schema
	}
	c.mu.RUnlock()

	if !ok {
		if c.strict {
			return fmt.Errorf("%w: %q", ErrTypeNotFound, eventType)
		}
		return nil
	}

	if deprecated {
		if c.strict {
			return fmt.Errorf("%w: %q", ErrTypeDeprecated, eventType)
		}
		c.logger.Warn("deprecated event type triggered", "type", eventType)
	}

	if len(schema) == 0 {
		return nil
	}
	if err := c.validator.Validate(schema, payload); err != nil {
		return &PayloadError{EventType: eventType, Err: err}
	}
	return nil
}
