package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/heraldhq/herald/id"
	"github.com/heraldhq/herald/webhook"
)

// registeredWebhook is the registration response: the webhook plus its
// signing secret, exposed exactly once here. Subsequent reads never carry
// the secret; rotation returns the replacement.
type registeredWebhook struct {
	*webhook.Webhook
	Secret string `json:"secret"`
}

func (a *Handler) registerWebhook(w http.ResponseWriter, r *http.Request) {
	var in webhook.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	wh, err := a.herald.Webhooks().Register(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, registeredWebhook{Webhook: wh, Secret: wh.Secret})
}

func (a *Handler) listWebhooks(w http.ResponseWriter, r *http.Request) {
	opts := webhook.ListOpts{Event: r.URL.Query().Get("event")}
	if v := r.URL.Query().Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", "active must be true or false")
			return
		}
		opts.Active = &active
	}

	writeJSON(w, http.StatusOK, a.herald.Webhooks().List(opts))
}

func (a *Handler) getWebhook(w http.ResponseWriter, r *http.Request) {
	whID, ok := webhookID(w, r)
	if !ok {
		return
	}

	wh, err := a.herald.Webhooks().Get(whID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wh)
}

func (a *Handler) updateWebhook(w http.ResponseWriter, r *http.Request) {
	whID, ok := webhookID(w, r)
	if !ok {
		return
	}

	var in webhook.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	wh, err := a.herald.Webhooks().Update(r.Context(), whID, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wh)
}

func (a *Handler) deleteWebhook(w http.ResponseWriter, r *http.Request) {
	whID, ok := webhookID(w, r)
	if !ok {
		return
	}

	if err := a.herald.Webhooks().Delete(r.Context(), whID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Handler) pauseWebhook(w http.ResponseWriter, r *http.Request) {
	whID, ok := webhookID(w, r)
	if !ok {
		return
	}

	wh, err := a.herald.Webhooks().Pause(r.Context(), whID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wh)
}

func (a *Handler) resumeWebhook(w http.ResponseWriter, r *http.Request) {
	whID, ok := webhookID(w, r)
	if !ok {
		return
	}

	wh, err := a.herald.Webhooks().Resume(r.Context(), whID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wh)
}

func (a *Handler) rotateSecret(w http.ResponseWriter, r *http.Request) {
	whID, ok := webhookID(w, r)
	if !ok {
		return
	}

	secret, err := a.herald.Webhooks().RotateSecret(r.Context(), whID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"secret": secret})
}

func (a *Handler) testWebhook(w http.ResponseWriter, r *http.Request) {
	whID, ok := webhookID(w, r)
	if !ok {
		return
	}

	res, err := a.herald.TestWebhook(r.Context(), whID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// webhookID parses the {id} path segment, writing a 400 on failure.
func webhookID(w http.ResponseWriter, r *http.Request) (id.ID, bool) {
	whID, err := id.ParseWebhookID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid webhook id")
		return id.Nil, false
	}
	return whID, true
}
