package mongo

import (
	"fmt"
	"time"

	"github.com/heraldhq/herald/delivery"
	"github.com/heraldhq/herald/event"
	"github.com/heraldhq/herald/id"
	"github.com/heraldhq/herald/internal/entity"
	"github.com/heraldhq/herald/webhook"
)

// --- Webhook models ---

type webhookModel struct {
	ID          string            `bson:"_id"`
	URL         string            `bson:"url"`
	Description string            `bson:"description,omitempty"`
	Secret      string            `bson:"secret"`
	Events      []string          `bson:"events"`
	Headers     map[string]string `bson:"headers,omitempty"`
	Active      bool              `bson:"active"`
	RateLimit   int               `bson:"rate_limit"`
	Metadata    map[string]string `bson:"metadata,omitempty"`
	Stats       statsModel        `bson:"stats"`
	CreatedAt   time.Time         `bson:"created_at"`
	UpdatedAt   time.Time         `bson:"updated_at"`
}

type statsModel struct {
	Total      int64      `bson:"total"`
	Successful int64      `bson:"successful"`
	Failed     int64      `bson:"failed"`
	LastAt     *time.Time `bson:"last_at,omitempty"`
	LastStatus string     `bson:"last_status,omitempty"`
}

func toWebhookModel(wh *webhook.Webhook) *webhookModel {
	return &webhookModel{
		ID:          wh.ID.String(),
		URL:         wh.URL,
		Description: wh.Description,
		Secret:      wh.Secret,
		Events:      wh.Events,
		Headers:     wh.Headers,
		Active:      wh.Active,
		RateLimit:   wh.RateLimit,
		Metadata:    wh.Metadata,
		Stats: statsModel{
			Total:      wh.Stats.TotalDeliveries,
			Successful: wh.Stats.SuccessfulDeliveries,
			Failed:     wh.Stats.FailedDeliveries,
			LastAt:     wh.Stats.LastDeliveryAt,
			LastStatus: wh.Stats.LastDeliveryStatus,
		},
		CreatedAt: wh.CreatedAt,
		UpdatedAt: wh.UpdatedAt,
	}
}

func fromWebhookModel(m *webhookModel) (*webhook.Webhook, error) {
	whID, err := id.ParseWebhookID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse webhook id %q: %w", m.ID, err)
	}

	return &webhook.Webhook{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          whID,
		URL:         m.URL,
		Description: m.Description,
		Secret:      m.Secret,
		Events:      m.Events,
		Headers:     m.Headers,
		Active:      m.Active,
		RateLimit:   m.RateLimit,
		Metadata:    m.Metadata,
		Stats: webhook.Stats{
			TotalDeliveries:      m.Stats.Total,
			SuccessfulDeliveries: m.Stats.Successful,
			FailedDeliveries:     m.Stats.Failed,
			LastDeliveryAt:       m.Stats.LastAt,
			LastDeliveryStatus:   m.Stats.LastStatus,
		},
	}, nil
}

// --- Delivery record model ---

type deliveryModel struct {
	ID          string    `bson:"_id"`
	WebhookID   string    `bson:"webhook_id"`
	EventID     string    `bson:"event_id"`
	EventType   string    `bson:"event_type"`
	Status      string    `bson:"status"`
	Attempts    int       `bson:"attempts"`
	StatusCode  int       `bson:"status_code,omitempty"`
	Response    string    `bson:"response,omitempty"`
	Error       string    `bson:"error,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
	CompletedAt time.Time `bson:"completed_at"`
}

func toDeliveryModel(rec *delivery.Record) *deliveryModel {
	return &deliveryModel{
		ID:          rec.ID.String(),
		WebhookID:   rec.WebhookID.String(),
		EventID:     rec.EventID.String(),
		EventType:   rec.EventType,
		Status:      string(rec.Status),
		Attempts:    rec.Attempts,
		StatusCode:  rec.StatusCode,
		Response:    rec.Response,
		Error:       rec.Error,
		CreatedAt:   rec.CreatedAt,
		CompletedAt: rec.CompletedAt,
	}
}

// --- Event model ---

type eventModel struct {
	ID        string    `bson:"_id"`
	Type      string    `bson:"type"`
	Payload   any       `bson:"payload,omitempty"`
	Timestamp time.Time `bson:"timestamp"`
}

func toEventModel(evt *event.Event) *eventModel {
	return &eventModel{
		ID:        evt.ID.String(),
		Type:      evt.Type,
		Payload:   evt.Payload,
		Timestamp: evt.Timestamp,
	}
}
