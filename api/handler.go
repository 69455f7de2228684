// Package api provides the embeddable admin HTTP handler for Herald:
// webhook CRUD, event triggering, delivery history, stats, and the event
// type catalog.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/heraldhq/herald"
)

// Handler is the root HTTP handler for the Herald admin API.
type Handler struct {
	herald *herald.Herald
	logger *slog.Logger
	router chi.Router
}

// NewHandler creates the admin API handler around a Herald instance.
func NewHandler(h *herald.Herald, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	a := &Handler{
		herald: h,
		logger: logger.With("component", "api"),
		router: chi.NewRouter(),
	}

	a.router.Use(a.requestLogger)
	a.router.Use(a.panicRecovery)
	a.registerRoutes()

	return a
}

func (a *Handler) registerRoutes() {
	a.router.Get("/healthz", a.healthz)

	a.router.Route("/webhooks", func(r chi.Router) {
		r.Post("/", a.registerWebhook)
		r.Get("/", a.listWebhooks)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.getWebhook)
			r.Put("/", a.updateWebhook)
			r.Delete("/", a.deleteWebhook)
			r.Post("/pause", a.pauseWebhook)
			r.Post("/resume", a.resumeWebhook)
			r.Post("/rotate-secret", a.rotateSecret)
			r.Post("/test", a.testWebhook)
			r.Get("/deliveries", a.listDeliveries)
			r.Get("/stats", a.webhookStats)
		})
	})

	a.router.Post("/events", a.triggerEvent)

	a.router.Post("/deliveries/{id}/redeliver", a.redeliver)

	a.router.Route("/event-types", func(r chi.Router) {
		r.Post("/", a.registerEventType)
		r.Get("/", a.listEventTypes)
		r.Get("/{name}", a.getEventType)
		r.Delete("/{name}", a.deprecateEventType)
	})
}

// ServeHTTP implements http.Handler.
func (a *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if err := a.herald.Store().Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Middleware.

func (a *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.logger.Info("api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (a *Handler) panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				a.logger.Error("panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// JSON helpers.

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: msg}})
}

// writeDomainError maps Herald errors onto HTTP statuses and the error
// envelope. Unrecognized errors become opaque 500s.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *herald.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "validation_failed", verr.Error())
	case errors.Is(err, herald.ErrWebhookNotFound):
		writeError(w, http.StatusNotFound, "webhook_not_found", "webhook not found")
	case errors.Is(err, herald.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "record_not_found", "delivery record not found")
	case errors.Is(err, herald.ErrNotRedeliverable):
		writeError(w, http.StatusConflict, "not_redeliverable", "only failed deliveries can be redelivered")
	case errors.Is(err, herald.ErrEventTypeNotFound):
		writeError(w, http.StatusUnprocessableEntity, "event_type_not_found", err.Error())
	case errors.Is(err, herald.ErrEventTypeDeprecated):
		writeError(w, http.StatusUnprocessableEntity, "event_type_deprecated", err.Error())
	case errors.Is(err, herald.ErrPayloadValidationFailed):
		writeError(w, http.StatusUnprocessableEntity, "payload_invalid", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryInt returns a query parameter as int, or def when absent or
// malformed.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
