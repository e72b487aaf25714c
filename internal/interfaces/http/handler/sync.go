package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/infrastructure/logger"
	"github.com/storesync/backend/internal/interfaces/http/dto"
)

// SyncTrigger starts a background tenant run under the tenant lease
type SyncTrigger interface {
	TriggerRun(ctx context.Context, tenantID uuid.UUID) error
}

// TenantDisconnector disconnects a tenant
type TenantDisconnector interface {
	Disconnect(ctx context.Context, tenantID uuid.UUID) (*integration.Tenant, error)
}

// SyncErrorLister lists recorded sync errors
type SyncErrorLister interface {
	SyncErrors(ctx context.Context, tenantID uuid.UUID, limit int) ([]integration.SyncError, error)
}

// SyncHandler serves the tenant's sync state and the manual trigger
type SyncHandler struct {
	BaseHandler
	trigger      SyncTrigger
	disconnector TenantDisconnector
	errorLog     SyncErrorLister
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(trigger SyncTrigger, disconnector TenantDisconnector, errorLog SyncErrorLister) *SyncHandler {
	return &SyncHandler{trigger: trigger, disconnector: disconnector, errorLog: errorLog}
}

// Status godoc
// @Summary      Get sync status
// @Description  Returns the sync state of the caller's tenant
// @Tags         sync
// @Produce      json
// @Success      200 {object} dto.SyncStatusResponse
// @Failure      401 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      429 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/sync/status [get]
func (h *SyncHandler) Status(c *gin.Context) {
	tenant, ok := h.currentTenant(c)
	if !ok {
		return
	}
	h.Success(c, dto.NewSyncStatusResponse(tenant))
}

// Errors godoc
// @Summary      List sync errors
// @Description  Returns the most recent sync errors of the caller's tenant, newest first
// @Tags         sync
// @Produce      json
// @Param        limit query int false "Maximum number of errors" minimum(1) maximum(250)
// @Success      200 {object} object{items=[]dto.SyncErrorResponse}
// @Failure      400 {object} dto.ErrorResponse
// @Failure      401 {object} dto.ErrorResponse
// @Failure      429 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/sync/errors [get]
func (h *SyncHandler) Errors(c *gin.Context) {
	tenant, ok := h.currentTenant(c)
	if !ok {
		return
	}
	var req dto.LimitRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "limit must be between 1 and 250")
		return
	}

	errs, err := h.errorLog.SyncErrors(c.Request.Context(), tenant.ID, req.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"items": dto.NewSyncErrorResponses(errs)})
}

// Run godoc
// @Summary      Start a sync run
// @Description  Starts a background run and answers 202, or 409 when one is already running
// @Tags         sync
// @Produce      json
// @Success      202 {object} dto.RunAcceptedResponse
// @Failure      401 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      429 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/sync/run [post]
func (h *SyncHandler) Run(c *gin.Context) {
	tenant, ok := h.currentTenant(c)
	if !ok {
		return
	}
	if err := h.trigger.TriggerRun(c.Request.Context(), tenant.ID); err != nil {
		h.HandleError(c, err)
		return
	}

	logger.GetGinLogger(c).Info("Manual sync run started", logger.Tenant(tenant.ID))
	h.Accepted(c, dto.RunAcceptedResponse{TenantID: tenant.ID, Status: string(integration.SyncStatusSyncing)})
}

// Disconnect godoc
// @Summary      Disconnect the tenant
// @Description  Clears the tenant's credential and stops future pulls; synced data is kept
// @Tags         sync
// @Produce      json
// @Success      200 {object} dto.DisconnectResponse
// @Failure      401 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      429 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/disconnect [post]
func (h *SyncHandler) Disconnect(c *gin.Context) {
	tenant, ok := h.currentTenant(c)
	if !ok {
		return
	}
	updated, err := h.disconnector.Disconnect(c.Request.Context(), tenant.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	logger.GetGinLogger(c).Info("Tenant disconnected via API",
		logger.Tenant(updated.ID),
		zap.String("principal", principalSubject(c)),
	)
	h.Success(c, dto.DisconnectResponse{
		TenantID:       updated.ID,
		Domain:         updated.Domain,
		DisconnectedAt: updated.DisconnectedAt,
	})
}
