package flags

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrymomot/flaggate/pkg/flag"
)

// errorResponse is the admin-path error body. Message carries actionable
// detail for client errors; server errors stay opaque.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeServiceError maps domain errors to HTTP statuses. Unknown errors
// become an opaque 500; the handler logs the detail separately.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, flag.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "feature flag not found")
	case errors.Is(err, flag.ErrDuplicateKey):
		writeError(w, http.StatusConflict, "duplicate_key", "a flag with this key already exists")
	case errors.Is(err, flag.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "the flag was modified concurrently, retry with fresh state")
	case errors.Is(err, flag.ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, "invalid_transition", err.Error())
	case errors.Is(err, flag.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}
