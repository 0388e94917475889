package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pkordes/tripplanner/internal/domain"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// errorStatus maps a service error to its HTTP status.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes message with err's detail at the status errorStatus picks.
func writeError(w http.ResponseWriter, err error, message string) {
	writeJSON(w, errorStatus(err), errorResponse{Message: message, Error: err.Error()})
}
