package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/infrastructure/auth"
	"github.com/storesync/backend/internal/infrastructure/logger"
)

// Gin context keys set by BearerAuth
const (
	PrincipalKey = "principal"
	TenantKey    = "tenant"
)

// TokenVerifier resolves a bearer token into a principal
type TokenVerifier interface {
	Verify(token string) (*auth.Principal, error)
}

// TenantResolver looks a tenant up by shop domain
type TenantResolver interface {
	GetByDomain(ctx context.Context, domain string) (*integration.Tenant, error)
}

// BearerAuth verifies the Authorization bearer token and binds the caller's
// tenant to the request. A bad token is 401; a token naming an unknown or
// disconnected shop is 404.
func BearerAuth(verifier TokenVerifier, tenants TenantResolver, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}

		principal, err := verifier.Verify(token)
		if err != nil {
			code := "INVALID_TOKEN"
			if errors.Is(err, auth.ErrExpiredToken) {
				code = "TOKEN_EXPIRED"
			}
			abortError(c, http.StatusUnauthorized, code, "invalid bearer token")
			return
		}

		tenant, err := tenants.GetByDomain(c.Request.Context(), principal.ShopDomain)
		switch {
		case errors.Is(err, integration.ErrTenantNotFound):
			abortError(c, http.StatusNotFound, "TENANT_NOT_FOUND", "tenant not found")
			return
		case err != nil:
			log.Error("Failed to resolve tenant", logger.ShopDomain(principal.ShopDomain), zap.Error(err))
			abortError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			return
		case !tenant.IsConnected():
			abortError(c, http.StatusNotFound, "TENANT_NOT_FOUND", "tenant not found")
			return
		}

		c.Set(PrincipalKey, principal)
		c.Set(TenantKey, tenant)
		ctx, tenantLog := logger.WithTenantID(c.Request.Context(), logger.GetGinLogger(c), tenant.ID.String())
		c.Set(logger.GinLoggerKey, tenantLog)
		c.Request = c.Request.WithContext(logger.WithContext(ctx, tenantLog))
		c.Next()
	}
}

// CronAuth guards the cron entry point with a shared secret bearer token
func CronAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if secret == "" || !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			abortError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid cron credential")
			return
		}
		c.Next()
	}
}

// GetTenant returns the tenant bound by BearerAuth
func GetTenant(c *gin.Context) (*integration.Tenant, bool) {
	v, ok := c.Get(TenantKey)
	if !ok {
		return nil, false
	}
	t, ok := v.(*integration.Tenant)
	return t, ok && t != nil
}

// GetPrincipal returns the principal bound by BearerAuth
func GetPrincipal(c *gin.Context) (*auth.Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*auth.Principal)
	return p, ok && p != nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abortError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}
