// Package middleware provides reusable HTTP middleware for the travel planner API.
package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/rs/cors"
)

var (
	corsMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	corsHeaders = []string{
		"Content-Type",
		"Authorization",
		"X-Amz-Date",
		"X-Api-Key",
		"X-Amz-Security-Token",
	}
)

// NewCORSHandler returns a middleware that applies CORS headers based on allowedOrigins.
// A single "*" entry allows any origin. Headers are set on every response,
// including errors written by downstream handlers. With "*" they are also set
// when the request carries no Origin header, which rs/cors skips.
func NewCORSHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: corsMethods,
		AllowedHeaders: corsHeaders,
	})
	wildcard := slices.Contains(allowedOrigins, "*")
	return func(next http.Handler) http.Handler {
		h := c.Handler(next)
		if !wildcard {
			return h
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Origin") == "" {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(corsMethods, ","))
				w.Header().Set("Access-Control-Allow-Headers", strings.Join(corsHeaders, ","))
			}
			h.ServeHTTP(w, r)
		})
	}
}
