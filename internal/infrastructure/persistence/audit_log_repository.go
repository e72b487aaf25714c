package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
)

const defaultAuditListLimit = 100

// GormAuditLog implements integration.AuditLog. Rows are only ever inserted.
type GormAuditLog struct {
	db *gorm.DB
}

// NewGormAuditLog creates a new GormAuditLog
func NewGormAuditLog(db *gorm.DB) *GormAuditLog {
	return &GormAuditLog{db: db}
}

// RecordSyncError appends a sync error row
func (r *GormAuditLog) RecordSyncError(ctx context.Context, e *integration.SyncError) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(models.SyncErrorModelFromDomain(e)).Error
}

// CountSyncErrors counts the errors recorded for one run
func (r *GormAuditLog) CountSyncErrors(ctx context.Context, runID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SyncErrorModel{}).
		Where("run_id = ?", runID).
		Count(&count).Error
	return count, err
}

// ListSyncErrors returns the most recent errors for a tenant
func (r *GormAuditLog) ListSyncErrors(ctx context.Context, tenantID uuid.UUID, limit int) ([]integration.SyncError, error) {
	if limit <= 0 {
		limit = defaultAuditListLimit
	}
	var rows []models.SyncErrorModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]integration.SyncError, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// RecordWebhookEvent appends a webhook event row
func (r *GormAuditLog) RecordWebhookEvent(ctx context.Context, e *integration.WebhookEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(models.WebhookEventModelFromDomain(e)).Error
}

// ListWebhookEvents returns the most recent webhook events for a tenant
func (r *GormAuditLog) ListWebhookEvents(ctx context.Context, tenantID uuid.UUID, limit int) ([]integration.WebhookEvent, error) {
	if limit <= 0 {
		limit = defaultAuditListLimit
	}
	var rows []models.WebhookEventModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("received_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]integration.WebhookEvent, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

var _ integration.AuditLog = (*GormAuditLog)(nil)
