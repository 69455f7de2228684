package api

import (
	"net/http"

	"github.com/heraldhq/herald/event"
)

type triggerRequest struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type triggerResponse struct {
	Event   *event.Event `json:"event"`
	Matched int          `json:"matched"`
}

// triggerEvent submits an event for fan-out. Delivery is asynchronous, so
// acceptance says nothing about outcomes; those live under
// /webhooks/{id}/deliveries.
func (a *Handler) triggerEvent(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	evt, matched, err := a.herald.TriggerEvent(r.Context(), req.Type, req.Payload)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, triggerResponse{Event: evt, Matched: matched})
}
