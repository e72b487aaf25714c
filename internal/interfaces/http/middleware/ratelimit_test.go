package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/storesync/backend/internal/infrastructure/cache"
	"github.com/storesync/backend/internal/infrastructure/logger"
	"github.com/storesync/backend/internal/infrastructure/telemetry"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (bool, int, error) {
	return false, 0, errors.New("redis: connection refused")
}

func newRedisStore(t *testing.T) cache.RateLimitStore {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedisRateLimitStore(client, "")
}

func rateLimitedRouter(rl *RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(rl.Middleware())
	router.POST("/webhooks/:resource/:action", okHandler)
	return router
}

func webhookRequest(shop, ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/products/update", nil)
	req.Header.Set(logger.ShopDomainHeader, shop)
	req.RemoteAddr = ip + ":5555"
	return req
}

func TestRateLimiter_Boundary(t *testing.T) {
	const limit = 3

	mem := cache.NewInMemoryRateLimitStore(time.Minute)
	t.Cleanup(func() { _ = mem.Close() })

	stores := map[string]cache.RateLimitStore{
		"redis":    newRedisStore(t),
		"inmemory": mem,
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			metrics := telemetry.NewSyncMetrics(prometheus.NewRegistry())
			rl := NewRateLimiter(store, limit, time.Minute, metrics, zaptest.NewLogger(t))
			router := rateLimitedRouter(rl)

			for k := 1; k <= limit; k++ {
				w := httptest.NewRecorder()
				router.ServeHTTP(w, webhookRequest("a.myshopify.com", "10.0.0.1"))
				require.Equal(t, http.StatusOK, w.Code, "request %d", k)
				assert.Equal(t, "3", w.Header().Get(HeaderRateLimitLimit))
				assert.Equal(t, []string{"2", "1", "0"}[k-1], w.Header().Get(HeaderRateLimitRemaining))
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, webhookRequest("a.myshopify.com", "10.0.0.1"))
			assert.Equal(t, http.StatusTooManyRequests, w.Code)
			assert.Equal(t, "0", w.Header().Get(HeaderRateLimitRemaining))
			assert.JSONEq(t, `{"error":"too many requests, please try again later","code":"RATE_LIMIT_EXCEEDED"}`, w.Body.String())
			assert.Equal(t, float64(1), promtestutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("/webhooks/:resource/:action")))

			// another tenant behind the same address keeps its own window
			w = httptest.NewRecorder()
			router.ServeHTTP(w, webhookRequest("b.myshopify.com", "10.0.0.1"))
			assert.Equal(t, http.StatusOK, w.Code)

			// and so does another address of the same tenant
			w = httptest.NewRecorder()
			router.ServeHTTP(w, webhookRequest("a.myshopify.com", "10.0.0.2"))
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	rl := NewRateLimiter(failingStore{}, 5, time.Minute, nil, zaptest.NewLogger(t))

	allowed, remaining := rl.Check(context.Background(), "tenant", "10.0.0.1")
	assert.True(t, allowed)
	assert.Equal(t, 5, remaining)

	w := httptest.NewRecorder()
	rateLimitedRouter(rl).ServeHTTP(w, webhookRequest("a.myshopify.com", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5", w.Header().Get(HeaderRateLimitRemaining))
}

func TestRateLimiter_AnonymousKey(t *testing.T) {
	store := cache.NewInMemoryRateLimitStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })
	rl := NewRateLimiter(store, 1, time.Minute, nil, zaptest.NewLogger(t))

	allowed, _ := rl.Check(context.Background(), "", "10.0.0.1")
	require.True(t, allowed)
	allowed, _ = rl.Check(context.Background(), anonymousTenant, "10.0.0.1")
	assert.False(t, allowed, "empty tenant shares the anonymous window")
}

func TestRateLimiter_ClientMiddlewareCountsRejectedRequests(t *testing.T) {
	store := cache.NewInMemoryRateLimitStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })
	rl := NewRateLimiter(store, 2, time.Minute, nil, zaptest.NewLogger(t))

	router := gin.New()
	router.GET("/api/v1/products", rl.ClientMiddleware(), func(c *gin.Context) {
		abortError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
	})
	guess := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
		req.RemoteAddr = ip + ":5555"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, guess("10.0.0.7"))
	assert.Equal(t, http.StatusUnauthorized, guess("10.0.0.7"))
	assert.Equal(t, http.StatusTooManyRequests, guess("10.0.0.7"))
	assert.Equal(t, http.StatusUnauthorized, guess("10.0.0.8"), "other addresses keep their own budget")
}
