package webhook

// Input is the creation/update payload for webhooks. On update, zero-value
// fields are left untouched; pointer fields distinguish "unset" from an
// explicit zero.
type Input struct {
	// URL is the delivery destination. Required on create.
	URL string `json:"url"`

	// Events is the set of event-type strings to subscribe to.
	// Required and non-empty on create.
	Events []string `json:"events"`

	// Secret is the HMAC signing secret. Auto-generated if empty on create.
	Secret string `json:"secret,omitempty"`

	// Headers are custom static HTTP headers sent with each delivery.
	Headers map[string]string `json:"headers,omitempty"`

	// Active toggles fan-out. Nil leaves the current value; webhooks are
	// created active.
	Active *bool `json:"active,omitempty"`

	// RateLimit is the maximum deliveries per second. Nil leaves the
	// current value; 0 means unlimited.
	RateLimit *int `json:"rate_limit,omitempty"`

	// Description is a human-readable description.
	Description string `json:"description,omitempty"`

	// Metadata holds user-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ListOpts configures filtering for webhook listing.
type ListOpts struct {
	// Event filters to webhooks whose event set contains this type.
	Event string

	// Active filters by the active flag. Nil matches both.
	Active *bool
}
