package middleware_test

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripplanner/internal/middleware"
)

var panickingHandler = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
	panic("nil map write")
})

func TestRecoverer_PanicBecomesJSON500(t *testing.T) {
	var buf bytes.Buffer
	h := middleware.NewRecoverer(slog.New(slog.NewJSONHandler(&buf, nil)))(panickingHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/plans", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"An internal server error occurred.","error":"panic"}`, rec.Body.String())
	assert.Contains(t, buf.String(), "nil map write")
}

func TestRecoverer_PassesThrough(t *testing.T) {
	h := middleware.NewRecoverer(slog.New(slog.NewTextHandler(io.Discard, nil)))(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestRecoverer_AbortHandlerIsRethrown(t *testing.T) {
	h := middleware.NewRecoverer(slog.New(slog.NewTextHandler(io.Discard, nil)))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic(http.ErrAbortHandler) }))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/plans", nil))
	})
}
