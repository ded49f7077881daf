package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyoez/scangate/ratelimit"
	"github.com/moyoez/scangate/types"
)

type failingChecker struct{}

func (failingChecker) Check(context.Context, string) (types.RateLimitDecision, error) {
	return types.RateLimitDecision{}, errors.New("redis: connection refused")
}

func setupRouter(checker RateChecker, now func() time.Time) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit(checker, now))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return router
}

func doGet(router *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimitRejectsAfterLimit(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	limiter, err := ratelimit.New(ratelimit.NewMemoryStore(), 2, time.Minute, ratelimit.WithClock(clock))
	require.NoError(t, err)
	router := setupRouter(limiter, clock)
	client := map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.1"}

	for i := range 2 {
		w := doGet(router, client)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
		assert.Equal(t, "2", w.Header().Get(HeaderRateLimitLimit))
	}
	assert.Equal(t, "0", doGetHeader(router, client, HeaderRateLimitRemaining))

	now = now.Add(20*time.Second + 100*time.Millisecond)
	w := doGet(router, client)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "40", w.Header().Get(HeaderRetryAfter))
	assert.Contains(t, w.Body.String(), "rate_limited")

	other := doGet(router, map[string]string{"X-Real-IP": "203.0.113.50"})
	assert.Equal(t, http.StatusOK, other.Code)

	now = now.Add(time.Minute)
	assert.Equal(t, http.StatusOK, doGet(router, client).Code)
}

// doGetHeader issues a request that is expected to be rejected and returns one header.
func doGetHeader(router *gin.Engine, headers map[string]string, name string) string {
	return doGet(router, headers).Header().Get(name)
}

func TestRateLimitFailsOpen(t *testing.T) {
	router := setupRouter(failingChecker{}, nil)
	w := doGet(router, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(HeaderRateLimitLimit))
}

func TestRetryAfterSeconds(t *testing.T) {
	now := time.Unix(1000, 0)
	assert.Equal(t, 1, RetryAfterSeconds(now, now))
	assert.Equal(t, 1, RetryAfterSeconds(now.Add(-time.Second), now))
	assert.Equal(t, 1, RetryAfterSeconds(now.Add(200*time.Millisecond), now))
	assert.Equal(t, 3, RetryAfterSeconds(now.Add(2001*time.Millisecond), now))
}

func TestOnlyAllowLocal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	called := false
	router.GET("/self", OnlyAllowLocal, func(c *gin.Context) {
		called = true
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/self", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, called)

	req = httptest.NewRequest(http.MethodGet, "/self", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, called)
}
