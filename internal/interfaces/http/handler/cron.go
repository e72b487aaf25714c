package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/infrastructure/logger"
	"github.com/storesync/backend/internal/interfaces/http/dto"
)

// DueRunner runs one pass over the due tenants
type DueRunner interface {
	RunDue(ctx context.Context) (*integration.DueRunSummary, error)
}

// CronHandler is the entry point for an external timer
type CronHandler struct {
	BaseHandler
	runner DueRunner
}

// NewCronHandler creates a new CronHandler
func NewCronHandler(runner DueRunner) *CronHandler {
	return &CronHandler{runner: runner}
}

// RunDue runs one due-tenant pass synchronously and returns its summary.
// The pass is bounded by the scheduler's run timeout, not by the caller.
//
// @Summary      Run due tenants
// @Description  Runs one pass over the tenants due in the current trigger window
// @Tags         cron
// @Produce      json
// @Success      200 {object} dto.DueRunSummaryResponse
// @Failure      401 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Security     CronSecret
// @Router       /internal/cron/sync [post]
func (h *CronHandler) RunDue(c *gin.Context) {
	summary, err := h.runner.RunDue(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	logger.GetGinLogger(c).Info("Cron sync pass finished",
		zap.Int("due", summary.Due),
		zap.Int("completed", summary.Completed),
		zap.Int("degraded", summary.Degraded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)
	h.Success(c, dto.NewDueRunSummaryResponse(summary))
}
