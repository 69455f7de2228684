package history

import (
	"time"

	"github.com/heraldhq/herald/delivery"
	"github.com/heraldhq/herald/id"
)

// RecentLimit is the number of records included in a Summary.
const RecentLimit = 10

// Summary is a point-in-time view of one webhook's delivery outcomes.
type Summary struct {
	WebhookID id.ID `json:"webhook_id"`

	// Counters track terminal outcomes only; an exhausted retry budget
	// counts once, as a failure.
	TotalDeliveries      int64 `json:"total_deliveries"`
	SuccessfulDeliveries int64 `json:"successful_deliveries"`
	FailedDeliveries     int64 `json:"failed_deliveries"`

	// PendingDeliveries is computed live from the queue at query time.
	PendingDeliveries int `json:"pending_deliveries"`

	// SuccessRate is SuccessfulDeliveries / TotalDeliveries, 0 when no
	// deliveries have completed.
	SuccessRate float64 `json:"success_rate"`

	LastDeliveryAt     *time.Time `json:"last_delivery_at,omitempty"`
	LastDeliveryStatus string     `json:"last_delivery_status,omitempty"`

	// RecentDeliveries holds the last RecentLimit records, newest first.
	RecentDeliveries []*delivery.Record `json:"recent_deliveries"`
}

// Stats assembles the webhook's delivery summary: counters from the
// registry, pending computed live from the queue, recent records from the
// ring.
func (s *Service) Stats(whID id.ID) (*Summary, error) {
	wh, err := s.registry.Get(whID)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		WebhookID:            wh.ID,
		TotalDeliveries:      wh.Stats.TotalDeliveries,
		SuccessfulDeliveries: wh.Stats.SuccessfulDeliveries,
		FailedDeliveries:     wh.Stats.FailedDeliveries,
		PendingDeliveries:    s.queue.CountForWebhook(whID),
		LastDeliveryAt:       wh.Stats.LastDeliveryAt,
		LastDeliveryStatus:   wh.Stats.LastDeliveryStatus,
		RecentDeliveries:     s.List(whID, ListOpts{Limit: RecentLimit}),
	}
	if sum.TotalDeliveries > 0 {
		sum.SuccessRate = float64(sum.SuccessfulDeliveries) / float64(sum.TotalDeliveries)
	}
	return sum, nil
}
