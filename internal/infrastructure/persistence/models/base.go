package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/storesync/backend/internal/domain/integration"
)

// BaseModel provides common persistence fields for registry tables.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// SyncedModel provides the reconciliation columns shared by every synced
// entity table. (tenant_id, upstream_id) is unique per table.
type SyncedModel struct {
	LocalID         uuid.UUID  `gorm:"column:local_id;type:uuid;primary_key"`
	TenantID        uuid.UUID  `gorm:"type:uuid;not null;index:,unique,composite:tenant_upstream"`
	UpstreamID      string     `gorm:"type:varchar(64);not null;index:,unique,composite:tenant_upstream"`
	IsDeleted       bool       `gorm:"not null;default:false"`
	SyncedAt        time.Time  `gorm:"not null"`
	SourceUpdatedAt *time.Time `gorm:"index"`
}

// ToMeta converts SyncedModel to the domain SyncMeta
func (m *SyncedModel) ToMeta() integration.SyncMeta {
	return integration.SyncMeta{
		LocalID:         m.LocalID,
		TenantID:        m.TenantID,
		UpstreamID:      m.UpstreamID,
		IsDeleted:       m.IsDeleted,
		SyncedAt:        m.SyncedAt,
		SourceUpdatedAt: m.SourceUpdatedAt,
	}
}

// FromMeta populates SyncedModel from the domain SyncMeta.
// A nil LocalID is replaced with a fresh one for inserts.
func (m *SyncedModel) FromMeta(meta integration.SyncMeta) {
	m.LocalID = meta.LocalID
	if m.LocalID == uuid.Nil {
		m.LocalID = uuid.New()
	}
	m.TenantID = meta.TenantID
	m.UpstreamID = meta.UpstreamID
	m.IsDeleted = meta.IsDeleted
	m.SyncedAt = meta.SyncedAt
	m.SourceUpdatedAt = meta.SourceUpdatedAt
}

// SyncedColumns are the reconciliation columns rewritten on every upsert
var SyncedColumns = []string{"is_deleted", "synced_at", "source_updated_at"}
