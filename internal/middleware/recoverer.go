package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRecoverer returns a middleware that turns a handler panic into a logged
// 500 with a JSON body. http.ErrAbortHandler is re-raised so net/http can
// abort the connection.
func NewRecoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				logger.ErrorContext(r.Context(), "handler panic",
					"request_id", chimiddleware.GetReqID(r.Context()),
					"panic", rvr,
					"stack", string(debug.Stack()),
				)
				// A hijacked WebSocket connection has no response to write.
				if strings.EqualFold(r.Header.Get("Connection"), "upgrade") {
					return
				}
				writeError(w, http.StatusInternalServerError, MessageInternal, "panic")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
