package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pkordes/tripplanner/internal/middleware"
)

func TestRateLimiter_BurstThenReject(t *testing.T) {
	h := middleware.NewRateLimiter(0.001, 2).Limit(okHandler)

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/plans", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	h := middleware.NewRateLimiter(0.001, 1).Limit(okHandler)

	for _, addr := range []string{"203.0.113.7:1", "203.0.113.8:1"} {
		req := httptest.NewRequest(http.MethodPost, "/plans", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, addr)
	}
}

func TestRateLimiter_RejectionIsJSON(t *testing.T) {
	h := middleware.NewRateLimiter(0.001, 1).Limit(okHandler)

	var rec *httptest.ResponseRecorder
	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/plans", nil)
		req.RemoteAddr = "203.0.113.9:1"
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"message":"Too many requests. Please try again later.","error":"rate limited"}`, rec.Body.String())
}
