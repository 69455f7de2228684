package delivery_test

import (
	"testing"
	"time"

	"github.com/heraldhq/herald/delivery"
	"github.com/heraldhq/herald/event"
	"github.com/heraldhq/herald/id"
)

func newTestDelivery(t *testing.T) *delivery.Delivery {
	t.Helper()
	evt := event.New("order.created", map[string]string{"order_id": "o_1"})
	return delivery.New(id.NewWebhookID(), evt)
}

func TestQueueEnqueueClaim(t *testing.T) {
	q := delivery.NewQueue()

	d := newTestDelivery(t)
	q.Enqueue(d)

	if got := q.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}

	claimed := q.Claim(time.Now().UTC(), 0)
	if len(claimed) != 1 {
		t.Fatalf("Claim() returned %d deliveries, want 1", len(claimed))
	}
	if claimed[0].ID != d.ID {
		t.Errorf("claimed delivery ID = %s, want %s", claimed[0].ID, d.ID)
	}

	// Claimed deliveries stay pending until a terminal outcome.
	if got := q.Len(); got != 1 {
		t.Errorf("Len() after claim = %d, want 1", got)
	}
}

func TestQueueClaimMarksInFlight(t *testing.T) {
	q := delivery.NewQueue()
	q.Enqueue(newTestDelivery(t))

	first := q.Claim(time.Now().UTC(), 0)
	if len(first) != 1 {
		t.Fatalf("first Claim() returned %d deliveries, want 1", len(first))
	}

	// A second claim must not hand out the same delivery while its
	// attempt is still in flight.
	second := q.Claim(time.Now().UTC(), 0)
	if len(second) != 0 {
		t.Errorf("second Claim() returned %d deliveries, want 0", len(second))
	}
}

func TestQueueClaimSkipsNotDue(t *testing.T) {
	q := delivery.NewQueue()

	d := newTestDelivery(t)
	d.NextAttemptAt = time.Now().UTC().Add(time.Hour)
	q.Enqueue(d)

	claimed := q.Claim(time.Now().UTC(), 0)
	if len(claimed) != 0 {
		t.Errorf("Claim() returned %d deliveries, want 0 (not due)", len(claimed))
	}
}

func TestQueueClaimOrdersByDueTime(t *testing.T) {
	q := delivery.NewQueue()
	now := time.Now().UTC()

	newer := newTestDelivery(t)
	newer.NextAttemptAt = now.Add(-time.Second)
	older := newTestDelivery(t)
	older.NextAttemptAt = now.Add(-time.Minute)

	q.Enqueue(newer)
	q.Enqueue(older)

	claimed := q.Claim(now, 0)
	if len(claimed) != 2 {
		t.Fatalf("Claim() returned %d deliveries, want 2", len(claimed))
	}
	if claimed[0].ID != older.ID {
		t.Errorf("first claimed = %s, want oldest due %s", claimed[0].ID, older.ID)
	}
}

func TestQueueClaimHonorsLimit(t *testing.T) {
	q := delivery.NewQueue()
	for i := 0; i < 5; i++ {
		q.Enqueue(newTestDelivery(t))
	}

	claimed := q.Claim(time.Now().UTC(), 2)
	if len(claimed) != 2 {
		t.Errorf("Claim(limit=2) returned %d deliveries, want 2", len(claimed))
	}
}

func TestQueueRelease(t *testing.T) {
	q := delivery.NewQueue()

	d := newTestDelivery(t)
	q.Enqueue(d)

	claimed := q.Claim(time.Now().UTC(), 0)
	if len(claimed) != 1 {
		t.Fatalf("Claim() returned %d deliveries, want 1", len(claimed))
	}

	// Release reschedules and makes the delivery claimable again.
	q.Release(d.ID, 1, time.Now().UTC().Add(-time.Second))

	reclaimed := q.Claim(time.Now().UTC(), 0)
	if len(reclaimed) != 1 {
		t.Fatalf("Claim() after release returned %d deliveries, want 1", len(reclaimed))
	}
	if reclaimed[0].Attempts != 1 {
		t.Errorf("reclaimed Attempts = %d, want 1", reclaimed[0].Attempts)
	}
}

func TestQueueReleaseAfterRemoveIsNoop(t *testing.T) {
	q := delivery.NewQueue()

	d := newTestDelivery(t)
	q.Enqueue(d)
	q.Claim(time.Now().UTC(), 0)
	q.Remove(d.ID)

	q.Release(d.ID, 1, time.Now().UTC())

	if got := q.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0 after remove", got)
	}
}

func TestQueueRemove(t *testing.T) {
	q := delivery.NewQueue()

	d := newTestDelivery(t)
	q.Enqueue(d)
	q.Remove(d.ID)

	if got := q.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0", got)
	}
	if claimed := q.Claim(time.Now().UTC(), 0); len(claimed) != 0 {
		t.Errorf("Claim() after remove returned %d deliveries, want 0", len(claimed))
	}
}

func TestQueueCountForWebhook(t *testing.T) {
	q := delivery.NewQueue()

	whID := id.NewWebhookID()
	evt := event.New("order.created", nil)

	q.Enqueue(delivery.New(whID, evt))
	q.Enqueue(delivery.New(whID, evt))
	q.Enqueue(newTestDelivery(t))

	if got := q.CountForWebhook(whID); got != 2 {
		t.Errorf("CountForWebhook() = %d, want 2", got)
	}
}

func TestQueueClaimReturnsCopies(t *testing.T) {
	q := delivery.NewQueue()

	d := newTestDelivery(t)
	q.Enqueue(d)

	claimed := q.Claim(time.Now().UTC(), 0)
	claimed[0].Attempts = 99

	q.Release(d.ID, 1, time.Now().UTC().Add(-time.Second))
	reclaimed := q.Claim(time.Now().UTC(), 0)
	if reclaimed[0].Attempts != 1 {
		t.Errorf("queue state mutated through claimed copy: Attempts = %d, want 1", reclaimed[0].Attempts)
	}
}
