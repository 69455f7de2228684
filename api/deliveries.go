package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heraldhq/herald/delivery"
	"github.com/heraldhq/herald/history"
	"github.com/heraldhq/herald/id"
)

func (a *Handler) listDeliveries(w http.ResponseWriter, r *http.Request) {
	whID, ok := webhookID(w, r)
	if !ok {
		return
	}

	// The ring only holds terminal records, so existence comes from the
	// registry, not the ring.
	if _, err := a.herald.Webhooks().Get(whID); err != nil {
		writeDomainError(w, err)
		return
	}

	opts := history.ListOpts{Limit: queryInt(r, "limit", 0)}
	switch status := r.URL.Query().Get("status"); status {
	case "":
	case string(delivery.StatusSuccess), string(delivery.StatusFailed):
		opts.Status = delivery.Status(status)
	default:
		writeError(w, http.StatusBadRequest, "invalid_query", "status must be success or failed")
		return
	}

	writeJSON(w, http.StatusOK, a.herald.History().List(whID, opts))
}

func (a *Handler) webhookStats(w http.ResponseWriter, r *http.Request) {
	whID, ok := webhookID(w, r)
	if !ok {
		return
	}

	stats, err := a.herald.History().Stats(whID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *Handler) redeliver(w http.ResponseWriter, r *http.Request) {
	recID, err := id.ParseDeliveryID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid delivery id")
		return
	}

	d, err := a.herald.History().Redeliver(r.Context(), recID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, d)
}
