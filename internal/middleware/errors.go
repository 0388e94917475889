package middleware

import (
	"encoding/json"
	"net/http"
)

// Messages for failures the middleware answers itself.
const (
	MessageTooManyRequests = "Too many requests. Please try again later."
	MessageBodyTooLarge    = "The request body is too large."
	MessageInternal        = "An internal server error occurred."
)

// writeError writes the same {message, error} body the handlers use.
func writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Message string `json:"message"`
		Error   string `json:"error,omitempty"`
	}{message, detail})
}
