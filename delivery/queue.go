package delivery

import (
	"sort"
	"sync"
	"time"

	"github.com/heraldhq/herald/id"
)

// Queue is the in-memory pending-delivery set.
//
// Claiming marks a delivery in-flight inside the same lock that selects it,
// so a delivery can never be handed to two workers at once even when an
// attempt outlives several scheduler ticks. A claimed delivery stays in the
// pending set until Release (retry) or Remove (terminal outcome).
type Queue struct {
	mu      sync.RWMutex
	pending map[string]*Delivery // keyed by delivery ID string
	claimed map[string]bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		pending: make(map[string]*Delivery),
		claimed: make(map[string]bool),
	}
}

// Enqueue adds a delivery to the pending set.
func (q *Queue) Enqueue(d *Delivery) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[d.ID.String()] = d
}

// Claim returns copies of the unclaimed deliveries due at now, oldest due
// first, marking each in-flight. Limit <= 0 means no limit.
func (q *Queue) Claim(now time.Time, limit int) []*Delivery {
	q.mu.Lock()
	defer q.mu.Unlock()

	candidates := make([]*Delivery, 0, len(q.pending))
	for _, d := range q.pending {
		if q.claimed[d.ID.String()] {
			continue
		}
		if d.NextAttemptAt.After(now) {
			continue
		}
		candidates = append(candidates, d)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].NextAttemptAt.Before(candidates[j].NextAttemptAt)
	})

	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}

	out := make([]*Delivery, 0, len(candidates))
	for _, d := range candidates {
		q.claimed[d.ID.String()] = true
		cp := *d
		out = append(out, &cp)
	}

	return out
}

// Release puts a claimed delivery back in the pending set with an updated
// attempt count and next-attempt time, making it claimable again.
func (q *Queue) Release(dID id.ID, attempts int, nextAttemptAt time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	d, ok := q.pending[dID.String()]
	if !ok {
		return
	}
	d.Attempts = attempts
	d.NextAttemptAt = nextAttemptAt
	delete(q.claimed, dID.String())
}

// Remove drops a delivery from the pending set. Called on terminal
// outcomes and when the target webhook no longer exists.
func (q *Queue) Remove(dID id.ID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.pending, dID.String())
	delete(q.claimed, dID.String())
}

// Len returns the number of pending deliveries, claimed ones included.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.pending)
}

// CountForWebhook returns the number of pending deliveries bound for one
// webhook. Feeds the live pending_deliveries stat.
func (q *Queue) CountForWebhook(whID id.ID) int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	n := 0
	for _, d := range q.pending {
		if d.WebhookID.String() == whID.String() {
			n++
		}
	}
	return n
}
