package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/storesync/backend/internal/domain/integration"
)

// SyncErrorModel is an append-only row per worker-level failure
type SyncErrorModel struct {
	ID        uuid.UUID             `gorm:"type:uuid;primary_key"`
	TenantID  uuid.UUID             `gorm:"type:uuid;not null;index:idx_sync_errors_tenant_created,priority:1"`
	RunID     uuid.UUID             `gorm:"type:uuid;not null;index"`
	Worker    string                `gorm:"type:varchar(32);not null"`
	Phase     integration.SyncPhase `gorm:"type:varchar(16);not null"`
	Message   string                `gorm:"type:text;not null"`
	CreatedAt time.Time             `gorm:"not null;index:idx_sync_errors_tenant_created,priority:2"`
}

// TableName returns the table name for GORM
func (SyncErrorModel) TableName() string {
	return "sync_errors"
}

// ToDomain converts the persistence model to a domain SyncError
func (m *SyncErrorModel) ToDomain() integration.SyncError {
	return integration.SyncError{
		ID:        m.ID,
		TenantID:  m.TenantID,
		RunID:     m.RunID,
		Worker:    m.Worker,
		Phase:     m.Phase,
		Message:   m.Message,
		CreatedAt: m.CreatedAt,
	}
}

// SyncErrorModelFromDomain creates a model from a domain SyncError
func SyncErrorModelFromDomain(e *integration.SyncError) *SyncErrorModel {
	return &SyncErrorModel{
		ID:        e.ID,
		TenantID:  e.TenantID,
		RunID:     e.RunID,
		Worker:    e.Worker,
		Phase:     e.Phase,
		Message:   e.Message,
		CreatedAt: e.CreatedAt,
	}
}

// WebhookEventModel is an append-only copy of an accepted webhook delivery
type WebhookEventModel struct {
	ID         uuid.UUID                      `gorm:"type:uuid;primary_key"`
	TenantID   uuid.UUID                      `gorm:"type:uuid;not null;index:idx_webhook_events_tenant_received,priority:1"`
	Topic      string                         `gorm:"type:varchar(64);not null"`
	Payload    datatypes.JSON                 `gorm:"not null"`
	Status     integration.WebhookEventStatus `gorm:"type:varchar(16);not null"`
	Error      string                         `gorm:"type:text"`
	ReceivedAt time.Time                      `gorm:"not null;index:idx_webhook_events_tenant_received,priority:2"`
}

// TableName returns the table name for GORM
func (WebhookEventModel) TableName() string {
	return "webhook_events"
}

// ToDomain converts the persistence model to a domain WebhookEvent
func (m *WebhookEventModel) ToDomain() integration.WebhookEvent {
	return integration.WebhookEvent{
		ID:         m.ID,
		TenantID:   m.TenantID,
		Topic:      m.Topic,
		Payload:    []byte(m.Payload),
		Status:     m.Status,
		Error:      m.Error,
		ReceivedAt: m.ReceivedAt,
	}
}

// WebhookEventModelFromDomain creates a model from a domain WebhookEvent
func WebhookEventModelFromDomain(e *integration.WebhookEvent) *WebhookEventModel {
	return &WebhookEventModel{
		ID:         e.ID,
		TenantID:   e.TenantID,
		Topic:      e.Topic,
		Payload:    datatypes.JSON(e.Payload),
		Status:     e.Status,
		Error:      e.Error,
		ReceivedAt: e.ReceivedAt,
	}
}

// AllModels lists every table for AutoMigrate in tests
func AllModels() []any {
	return []any{
		&TenantModel{},
		&ProductModel{},
		&VariantModel{},
		&OrderModel{},
		&LineItemModel{},
		&CustomerModel{},
		&SyncErrorModel{},
		&WebhookEventModel{},
	}
}
