package models

import (
	"github.com/shopspring/decimal"

	"github.com/storesync/backend/internal/domain/integration"
)

// CustomerModel is the persistence model for a synced customer
type CustomerModel struct {
	SyncedModel
	Email       string          `gorm:"type:varchar(255);index"`
	FirstName   string          `gorm:"type:varchar(255)"`
	LastName    string          `gorm:"type:varchar(255)"`
	Phone       string          `gorm:"type:varchar(64)"`
	State       string          `gorm:"type:varchar(32)"`
	OrdersCount int             `gorm:"not null;default:0"`
	TotalSpent  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Currency    string          `gorm:"type:varchar(8)"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer
func (m *CustomerModel) ToDomain() integration.Customer {
	return integration.Customer{
		SyncMeta:    m.ToMeta(),
		Email:       m.Email,
		FirstName:   m.FirstName,
		LastName:    m.LastName,
		Phone:       m.Phone,
		State:       m.State,
		OrdersCount: m.OrdersCount,
		TotalSpent:  m.TotalSpent,
		Currency:    m.Currency,
	}
}

// CustomerModelFromDomain creates a model from a domain Customer
func CustomerModelFromDomain(c *integration.Customer) *CustomerModel {
	m := &CustomerModel{
		Email:       c.Email,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Phone:       c.Phone,
		State:       c.State,
		OrdersCount: c.OrdersCount,
		TotalSpent:  c.TotalSpent,
		Currency:    c.Currency,
	}
	m.FromMeta(c.SyncMeta)
	return m
}

// CustomerColumns are rewritten when an upstream customer is re-synced
var CustomerColumns = []string{"email", "first_name", "last_name", "phone", "state", "orders_count", "total_spent", "currency"}
