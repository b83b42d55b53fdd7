package flags

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/flaggate/pkg/flag"
	"github.com/dmitrymomot/flaggate/pkg/logger"
)

type handlers struct {
	engine    *flag.Engine
	service   *flag.Service
	overrides *flag.OverrideManager
	log       *slog.Logger
}

// --- public evaluation surface ---

func (h *handlers) evaluateAll(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	flags := h.engine.EvaluateAll(r.Context(), tenantID)
	writeJSON(w, http.StatusOK, map[string]any{"flags": flags})
}

func (h *handlers) evaluate(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	flagKey := chi.URLParam(r, "flagKey")
	d := h.engine.Evaluate(r.Context(), flagKey, tenantID)
	writeJSON(w, http.StatusOK, d)
}

// --- admin surface ---

type createFlagRequest struct {
	Key               string `json:"key"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	Enabled           bool   `json:"enabled"`
	RolloutPercentage int    `json:"rollout_percentage"`
}

func (h *handlers) createFlag(w http.ResponseWriter, r *http.Request) {
	var req createFlagRequest
	if !h.decode(w, r, &req) {
		return
	}

	f, err := h.service.Create(r.Context(), flag.CreateParams{
		Key:               req.Key,
		Name:              req.Name,
		Description:       req.Description,
		Enabled:           req.Enabled,
		RolloutPercentage: req.RolloutPercentage,
	}, actorFrom(r))
	if err != nil {
		h.fail(w, r, err, "create flag")
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (h *handlers) listFlags(w http.ResponseWriter, r *http.Request) {
	flags, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, r, err, "list flags")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"flags": flags})
}

func (h *handlers) getFlag(w http.ResponseWriter, r *http.Request) {
	id, ok := h.flagID(w, r)
	if !ok {
		return
	}
	f, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "get flag")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type updateFlagRequest struct {
	Name              *string `json:"name"`
	Description       *string `json:"description"`
	Enabled           *bool   `json:"enabled"`
	RolloutPercentage *int    `json:"rollout_percentage"`
}

func (h *handlers) updateFlag(w http.ResponseWriter, r *http.Request) {
	id, ok := h.flagID(w, r)
	if !ok {
		return
	}
	var req updateFlagRequest
	if !h.decode(w, r, &req) {
		return
	}

	f, err := h.service.Update(r.Context(), id, flag.UpdateParams{
		Name:              req.Name,
		Description:       req.Description,
		Enabled:           req.Enabled,
		RolloutPercentage: req.RolloutPercentage,
	}, actorFrom(r))
	if err != nil {
		h.fail(w, r, err, "update flag")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type killFlagRequest struct {
	Reason string `json:"reason"`
}

func (h *handlers) killFlag(w http.ResponseWriter, r *http.Request) {
	id, ok := h.flagID(w, r)
	if !ok {
		return
	}
	// The body is optional: kill must work from a bare curl during an
	// incident.
	var req killFlagRequest
	if r.Body != nil && r.ContentLength != 0 {
		if !h.decode(w, r, &req) {
			return
		}
	}

	f, err := h.service.Kill(r.Context(), id, req.Reason, actorFrom(r))
	if err != nil {
		h.fail(w, r, err, "kill flag")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *handlers) reviveFlag(w http.ResponseWriter, r *http.Request) {
	id, ok := h.flagID(w, r)
	if !ok {
		return
	}
	f, err := h.service.Revive(r.Context(), id, actorFrom(r))
	if err != nil {
		h.fail(w, r, err, "revive flag")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *handlers) archiveFlag(w http.ResponseWriter, r *http.Request) {
	id, ok := h.flagID(w, r)
	if !ok {
		return
	}
	f, err := h.service.Archive(r.Context(), id, actorFrom(r))
	if err != nil {
		h.fail(w, r, err, "archive flag")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *handlers) listHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.flagID(w, r)
	if !ok {
		return
	}
	page := pageFrom(r)
	entries, err := h.service.History(r.Context(), id, page)
	if err != nil {
		h.fail(w, r, err, "list history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"history": entries,
		"limit":   page.Limit,
		"offset":  page.Offset,
	})
}

type setOverrideRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *handlers) setOverride(w http.ResponseWriter, r *http.Request) {
	id, ok := h.flagID(w, r)
	if !ok {
		return
	}
	var req setOverrideRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.overrides.Set(r.Context(), id, chi.URLParam(r, "tenantID"), req.Enabled, actorFrom(r))
	if err != nil {
		h.fail(w, r, err, "set override")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *handlers) removeOverride(w http.ResponseWriter, r *http.Request) {
	id, ok := h.flagID(w, r)
	if !ok {
		return
	}
	if err := h.overrides.Remove(r.Context(), id, chi.URLParam(r, "tenantID"), actorFrom(r)); err != nil {
		h.fail(w, r, err, "remove override")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listOverrides(w http.ResponseWriter, r *http.Request) {
	id, ok := h.flagID(w, r)
	if !ok {
		return
	}

	var filter flag.OverrideFilter
	if v := r.URL.Query().Get("enabled"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "enabled must be a boolean")
			return
		}
		filter.Enabled = &enabled
	}

	page := pageFrom(r)
	items, err := h.overrides.List(r.Context(), id, filter, page)
	if err != nil {
		h.fail(w, r, err, "list overrides")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"overrides": items,
		"limit":     page.Limit,
		"offset":    page.Offset,
	})
}

// --- helpers ---

func (h *handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return false
	}
	return true
}

func (h *handlers) flagID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "flagID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "feature flag not found")
		return uuid.Nil, false
	}
	return id, true
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error, op string) {
	h.log.ErrorContext(r.Context(), "admin operation failed",
		slog.String("operation", op),
		logger.Actor(actorFrom(r)),
		logger.Error(err))
	writeServiceError(w, err)
}

// maxPageLimit caps a single page of history or override listings.
const maxPageLimit = 200

func pageFrom(r *http.Request) flag.Page {
	page := flag.Page{Limit: 50}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page.Limit = min(n, maxPageLimit)
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			page.Offset = n
		}
	}
	return page
}
