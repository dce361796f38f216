package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/morningready/morningready/internal/api/middleware"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(h http.Handler, remote string, mutate func(*http.Request) *http.Request) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/plan:compute", http.NoBody)
	req.RemoteAddr = remote
	if mutate != nil {
		req = mutate(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitByIP(t *testing.T) {
	cfg := middleware.RateLimitConfig{RequestLimit: 2, WindowLength: time.Minute}
	handler := middleware.RequestID(middleware.RateLimitByIP(cfg)(okHandler()))

	assert.Equal(t, http.StatusOK, hit(handler, "192.0.2.1:1000", nil).Code)
	assert.Equal(t, http.StatusOK, hit(handler, "192.0.2.1:1001", nil).Code)

	rec := hit(handler, "192.0.2.1:1002", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Rate limit exceeded")
	assert.Contains(t, rec.Body.String(), "/v1/plan:compute")

	assert.Equal(t, http.StatusOK, hit(handler, "192.0.2.2:1000", nil).Code)
}

func TestRateLimitByUser(t *testing.T) {
	cfg := middleware.RateLimitConfig{RequestLimit: 1, WindowLength: time.Minute}
	handler := middleware.RateLimitByUser(cfg)(okHandler())

	asUser := func(id string) func(*http.Request) *http.Request {
		return func(r *http.Request) *http.Request {
			return r.WithContext(middleware.WithUserID(r.Context(), id))
		}
	}

	assert.Equal(t, http.StatusOK, hit(handler, "192.0.2.1:1", asUser("usr_a")).Code)
	// Same user from another IP shares the budget.
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "192.0.2.9:1", asUser("usr_a")).Code)
	// Another user on the first IP has its own.
	assert.Equal(t, http.StatusOK, hit(handler, "192.0.2.1:1", asUser("usr_b")).Code)
	// Anonymous requests fall back to the IP.
	assert.Equal(t, http.StatusOK, hit(handler, "192.0.2.1:1", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "192.0.2.1:1", nil).Code)
}

func TestDefaultRateLimitConfigs(t *testing.T) {
	assert.Equal(t, 30, middleware.ComputeRateLimit.RequestLimit)
	assert.Equal(t, time.Minute, middleware.ComputeRateLimit.WindowLength)
	assert.Equal(t, 100, middleware.StandardRateLimit.RequestLimit)
	assert.Equal(t, time.Minute, middleware.StandardRateLimit.WindowLength)
}
