package redis

// Key prefixes for primary entity storage (JSON values).
const (
	prefixWebhook  = "herald:wh:"
	prefixDelivery = "herald:del:"
	prefixEvent    = "herald:evt:"
)

// Sorted set indexes. Scores are unix seconds, so ranges double as
// time-ordered listings.
const (
	zWebhooksAll   = "herald:z:wh:all"
	zDeliveriesFor = "herald:z:del:wh:" // + webhook id
	zEventsAll     = "herald:z:evt:all"
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}
