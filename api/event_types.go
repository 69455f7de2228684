package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/heraldhq/herald"
	"github.com/heraldhq/herald/catalog"
)

type registerEventTypeRequest struct {
	catalog.Definition
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (a *Handler) registerEventType(w http.ResponseWriter, r *http.Request) {
	var req registerEventTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	var opts []catalog.RegisterOption
	if req.Metadata != nil {
		opts = append(opts, catalog.WithMetadata(req.Metadata))
	}

	et, err := a.herald.RegisterEventType(req.Definition, opts...)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidDefinition) {
			writeError(w, http.StatusBadRequest, "invalid_definition", err.Error())
			return
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, et)
}

func (a *Handler) listEventTypes(w http.ResponseWriter, r *http.Request) {
	opts := catalog.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 0),
		Group:  r.URL.Query().Get("group"),
		Match:  r.URL.Query().Get("match"),
	}
	if v := r.URL.Query().Get("include_deprecated"); v != "" {
		include, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", "include_deprecated must be true or false")
			return
		}
		opts.IncludeDeprecated = include
	}

	writeJSON(w, http.StatusOK, a.herald.Catalog().List(opts))
}

func (a *Handler) getEventType(w http.ResponseWriter, r *http.Request) {
	et, err := a.herald.Catalog().Get(chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, herald.ErrEventTypeNotFound) {
			writeError(w, http.StatusNotFound, "event_type_not_found", "event type not found")
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, et)
}

// deprecateEventType marks the type deprecated. Definitions are never
// removed, so history for old events keeps resolving.
func (a *Handler) deprecateEventType(w http.ResponseWriter, r *http.Request) {
	if err := a.herald.Catalog().Deprecate(chi.URLParam(r, "name")); err != nil {
		if errors.Is(err, herald.ErrEventTypeNotFound) {
			writeError(w, http.StatusNotFound, "event_type_not_found", "event type not found")
			return
		}
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
