// Package handler holds the gin handlers for webhooks, the tenant query API,
// the cron entry point and system endpoints.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/infrastructure/auth"
	"github.com/storesync/backend/internal/infrastructure/logger"
	"github.com/storesync/backend/internal/interfaces/http/dto"
	"github.com/storesync/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a 200 response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Accepted sends a 202 response
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, data)
}

// Error sends the error envelope with the given status
func (h *BaseHandler) Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.NewErrorResponse(code, message))
}

// BadRequest sends a 400 response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// HandleError maps err to the error envelope
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	HandleError(c, err)
}

// HandleError maps the integration error taxonomy to HTTP. Anything not
// recognised is logged and answered 500 without leaking the cause.
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	code, message := classify(err)
	status := dto.GetHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		logger.GetGinLogger(c).Error("Request failed", zap.Error(err))
		_ = c.Error(err)
	}
	c.JSON(status, dto.NewErrorResponse(code, message))
}

func classify(err error) (code, message string) {
	var (
		internalErr *integration.InternalError
		authErr     *integration.AuthError
		validErr    *integration.ValidationError
		notFoundErr *integration.NotFoundError
		rateErr     *integration.RateLimitError
		maxBytesErr *http.MaxBytesError
	)

	switch {
	case errors.As(err, &internalErr):
		return dto.ErrCodeInternal, "internal server error"
	case errors.As(err, &maxBytesErr):
		return dto.ErrCodeTooLarge, "request body exceeds maximum allowed size"
	case errors.As(err, &authErr):
		if errors.Is(err, integration.ErrInvalidSignature) || errors.Is(err, integration.ErrMissingSignature) {
			return dto.ErrCodeInvalidSig, "invalid webhook signature"
		}
		return dto.ErrCodeUnauthorized, "unauthorized"
	case errors.Is(err, integration.ErrInvalidSignature), errors.Is(err, integration.ErrMissingSignature):
		return dto.ErrCodeInvalidSig, "invalid webhook signature"
	case errors.Is(err, integration.ErrUnauthorized):
		return dto.ErrCodeUnauthorized, "unauthorized"
	case errors.As(err, &validErr):
		return dto.ErrCodeValidation, validErr.Error()
	case errors.Is(err, integration.ErrTopicMismatch):
		return dto.ErrCodeTopicMismatch, "X-Shopify-Topic does not match the webhook route"
	case errors.Is(err, integration.ErrInvalidPayload):
		return dto.ErrCodeValidation, "invalid payload"
	case errors.As(err, &notFoundErr):
		if notFoundErr.Resource == "tenant" {
			return dto.ErrCodeTenantNotFound, "tenant not found"
		}
		return dto.ErrCodeNotFound, notFoundErr.Resource + " not found"
	case errors.Is(err, integration.ErrTenantNotFound), errors.Is(err, integration.ErrTenantDisconnected):
		return dto.ErrCodeTenantNotFound, "tenant not found"
	case errors.Is(err, integration.ErrEntityNotFound):
		return dto.ErrCodeNotFound, "not found"
	case errors.As(err, &rateErr), errors.Is(err, integration.ErrRateLimited):
		return dto.ErrCodeRateLimited, "too many requests, please try again later"
	case errors.Is(err, integration.ErrTenantLeaseHeld):
		return dto.ErrCodeSyncInProgress, "a sync is already running for this tenant"
	}
	return dto.ErrCodeInternal, "internal server error"
}

// currentTenant returns the tenant bound by BearerAuth, answering 401 when
// the route was mounted without it
func (h *BaseHandler) currentTenant(c *gin.Context) (*integration.Tenant, bool) {
	tenant, ok := middleware.GetTenant(c)
	if !ok {
		HandleError(c, &integration.AuthError{Reason: "no tenant bound to request"})
		return nil, false
	}
	return tenant, true
}

// pathID parses the :id path parameter
func (h *BaseHandler) pathID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "id must be a UUID")
		return uuid.Nil, false
	}
	return uuid.MustParse(req.ID), true
}

// principalSubject names the caller for audit logging
func principalSubject(c *gin.Context) string {
	if p, ok := middleware.GetPrincipal(c); ok {
		if p.Source == auth.TokenSourceSession && p.Subject != "" {
			return p.Subject
		}
		return string(p.Source)
	}
	return ""
}
