package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/infrastructure/cache"
	"github.com/storesync/backend/internal/infrastructure/logger"
	"github.com/storesync/backend/internal/infrastructure/telemetry"
)

const (
	// anonymousTenant keys requests that name no tenant
	anonymousTenant = "anonymous"
	// preAuthScope keys the per-IP budget checked before authentication
	preAuthScope = "preauth"
)

// RateLimiter applies a sliding window of limit requests per window to each
// (tenant, client IP) pair.
type RateLimiter struct {
	store   cache.RateLimitStore
	limit   int
	window  time.Duration
	metrics *telemetry.SyncMetrics
	logger  *zap.Logger
}

// NewRateLimiter creates a rate limiter over store
func NewRateLimiter(store cache.RateLimitStore, limit int, window time.Duration, metrics *telemetry.SyncMetrics, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		store:   store,
		limit:   limit,
		window:  window,
		metrics: metrics,
		logger:  logger,
	}
}

// Limit returns the number of requests allowed per window
func (rl *RateLimiter) Limit() int {
	return rl.limit
}

// Check records one request for tenant and ip. A store failure fails open
// with the full limit remaining.
func (rl *RateLimiter) Check(ctx context.Context, tenant, ip string) (allowed bool, remaining int) {
	if tenant == "" {
		tenant = anonymousTenant
	}
	allowed, remaining, err := rl.store.Allow(ctx, tenant+":"+ip, rl.limit, rl.window)
	if err != nil {
		logger.Enrich(ctx, rl.logger).Warn("Rate limit store unavailable, allowing request",
			zap.String("tenant", tenant),
			zap.String("client_ip", ip),
			zap.Error(err),
		)
		return true, rl.limit
	}
	return allowed, remaining
}

// Middleware enforces the limit per (tenant, client IP) and sets the
// X-RateLimit headers
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return rl.handler(rateLimitTenant)
}

// ClientMiddleware enforces the limit per client IP alone. It runs ahead of
// BearerAuth so rejected tokens are counted too.
func (rl *RateLimiter) ClientMiddleware() gin.HandlerFunc {
	return rl.handler(func(*gin.Context) string { return preAuthScope })
}

func (rl *RateLimiter) handler(scope func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, remaining := rl.Check(c.Request.Context(), scope(c), c.ClientIP())

		c.Header(HeaderRateLimitLimit, strconv.Itoa(rl.limit))
		c.Header(HeaderRateLimitRemaining, strconv.Itoa(remaining))

		if !allowed {
			rl.metrics.RateLimited(c.FullPath())
			c.Header("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			abortError(c, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "too many requests, please try again later")
			return
		}
		c.Next()
	}
}

// rateLimitTenant prefers the tenant bound by BearerAuth and falls back to
// the shop domain header sent with webhooks.
func rateLimitTenant(c *gin.Context) string {
	if tenant, ok := GetTenant(c); ok {
		return tenant.ID.String()
	}
	if domain := integration.NormalizeDomain(c.GetHeader(logger.ShopDomainHeader)); domain != "" {
		return domain
	}
	return anonymousTenant
}
