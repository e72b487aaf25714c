package models

import (
	"time"

	"github.com/storesync/backend/internal/domain/integration"
)

// TenantModel is the persistence model for the Tenant aggregate.
// AccessCredential holds the sealed form; the repository seals and opens it.
type TenantModel struct {
	BaseModel
	Domain            string                 `gorm:"type:varchar(255);not null;uniqueIndex"`
	AccessCredential  string                 `gorm:"type:text"`
	Timezone          string                 `gorm:"type:varchar(64)"`
	SyncStatus        integration.SyncStatus `gorm:"type:varchar(32);not null;default:'idle'"`
	SyncStartedAt     *time.Time
	SyncFinishedAt    *time.Time
	SyncCheckpointAt  *time.Time
	LastRunErrorCount int        `gorm:"not null;default:0"`
	DisconnectedAt    *time.Time `gorm:"index"`
	// Billing flags maintained by subscription webhooks
	PlanName           string `gorm:"type:varchar(255)"`
	SubscriptionStatus string `gorm:"type:varchar(32)"`
	BillingActive      bool   `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (TenantModel) TableName() string {
	return "tenants"
}

// ToDomain converts the persistence model to a domain Tenant. The credential
// is copied as stored.
func (m *TenantModel) ToDomain() *integration.Tenant {
	return &integration.Tenant{
		ID:                 m.ID,
		Domain:             m.Domain,
		AccessCredential:   m.AccessCredential,
		Timezone:           m.Timezone,
		SyncStatus:         m.SyncStatus,
		SyncStartedAt:      m.SyncStartedAt,
		SyncFinishedAt:     m.SyncFinishedAt,
		SyncCheckpointAt:   m.SyncCheckpointAt,
		LastRunErrorCount:  m.LastRunErrorCount,
		DisconnectedAt:     m.DisconnectedAt,
		PlanName:           m.PlanName,
		SubscriptionStatus: m.SubscriptionStatus,
		BillingActive:      m.BillingActive,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Tenant
func (m *TenantModel) FromDomain(t *integration.Tenant) {
	m.ID = t.ID
	m.CreatedAt = t.CreatedAt
	m.UpdatedAt = t.UpdatedAt
	m.Domain = t.Domain
	m.AccessCredential = t.AccessCredential
	m.Timezone = t.Timezone
	m.SyncStatus = t.SyncStatus
	m.SyncStartedAt = t.SyncStartedAt
	m.SyncFinishedAt = t.SyncFinishedAt
	m.SyncCheckpointAt = t.SyncCheckpointAt
	m.LastRunErrorCount = t.LastRunErrorCount
	m.DisconnectedAt = t.DisconnectedAt
	m.PlanName = t.PlanName
	m.SubscriptionStatus = t.SubscriptionStatus
	m.BillingActive = t.BillingActive
}

// TenantModelFromDomain creates a new TenantModel from a domain Tenant
func TenantModelFromDomain(t *integration.Tenant) *TenantModel {
	m := &TenantModel{}
	m.FromDomain(t)
	return m
}
