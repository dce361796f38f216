package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/morningready/morningready/internal/api/middleware"
)

func captureRequestID(t *testing.T, incoming string) (ctxID, headerID string) {
	t.Helper()
	handler := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctxID = middleware.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	if incoming != "" {
		req.Header.Set("X-Request-Id", incoming)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return ctxID, rec.Header().Get("X-Request-Id")
}

func TestRequestID_Generates(t *testing.T) {
	ctxID, headerID := captureRequestID(t, "")

	assert.True(t, strings.HasPrefix(ctxID, "req_"))
	assert.Len(t, ctxID, 26)
	assert.Equal(t, ctxID, headerID)

	other, _ := captureRequestID(t, "")
	assert.NotEqual(t, ctxID, other)
}

func TestRequestID_Preserves(t *testing.T) {
	ctxID, headerID := captureRequestID(t, "req_from_client")
	assert.Equal(t, "req_from_client", ctxID)
	assert.Equal(t, "req_from_client", headerID)
}

func TestRequestID_ReplacesOversized(t *testing.T) {
	ctxID, _ := captureRequestID(t, strings.Repeat("x", 200))
	assert.True(t, strings.HasPrefix(ctxID, "req_"))
}

func TestGetRequestID_Missing(t *testing.T) {
	assert.Empty(t, middleware.GetRequestID(context.Background()))
}
