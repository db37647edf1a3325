package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bookease/bookease-backend/internal/auth"
	"github.com/bookease/bookease-backend/internal/pkg/clock"
)

func newTestRouter(limit int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(Config{
		RateLimitPerMinute: limit,
		DefaultTimezone:    "America/New_York",
		Logger:             zap.NewNop(),
		Clock:              clock.System(),
		JWTManager:         auth.NewJWTManager("test-secret", time.Minute),
	})
}

func TestRouterRegistersDomainRoutes(t *testing.T) {
	r := newTestRouter(0)

	registered := map[string]bool{}
	for _, ri := range r.Routes() {
		registered[ri.Method+" "+ri.Path] = true
	}

	for _, want := range []string{
		"GET /healthz",
		"POST /v1/auth/register",
		"POST /v1/auth/login",
		"GET /v1/me",
		"GET /v1/me/bookings",
		"GET /v1/services",
		"GET /v1/services/:id",
		"GET /v1/services/:id/slots",
		"GET /v1/services/:id/availability-rules",
		"POST /v1/blackouts",
		"POST /v1/holds",
		"DELETE /v1/holds/:id",
		"POST /v1/bookings",
		"POST /v1/bookings/:id/cancel",
		"POST /v1/bookings/:id/reschedule",
		"GET /v1/bookings/:id/policy",
		"POST /v1/bookings/:id/checkout",
		"POST /v1/payments/capture",
		"POST /v1/payments/webhooks/:provider",
	} {
		assert.True(t, registered[want], "missing route %s", want)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	r := newTestRouter(0)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/services", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimit(t *testing.T) {
	r := newTestRouter(3)

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	require.Len(t, codes, 5)
	assert.Equal(t, []int{200, 200, 200, 429, 429}, codes)

	// A different client has its own bucket.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "198.51.100.9:5000"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSplitOrigins(t *testing.T) {
	assert.Equal(t,
		[]string{"https://bookease.example", "https://admin.bookease.example"},
		splitOrigins(" https://bookease.example, ,https://admin.bookease.example "),
	)
}
