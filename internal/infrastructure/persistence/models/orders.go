package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storesync/backend/internal/domain/integration"
)

// OrderModel is the persistence model for a synced order
type OrderModel struct {
	SyncedModel
	Name               string          `gorm:"type:varchar(64)"`
	Email              string          `gorm:"type:varchar(255)"`
	FinancialStatus    string          `gorm:"type:varchar(32)"`
	FulfillmentStatus  string          `gorm:"type:varchar(32)"`
	Currency           string          `gorm:"type:varchar(8)"`
	TotalPrice         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	SubtotalPrice      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TotalTax           decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TotalDiscounts     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	UpstreamCustomerID *string         `gorm:"type:varchar(64);index"`
	ProcessedAt        *time.Time
	CancelledAt        *time.Time
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order (without line items)
func (m *OrderModel) ToDomain() *integration.Order {
	return &integration.Order{
		SyncMeta:           m.ToMeta(),
		Name:               m.Name,
		Email:              m.Email,
		FinancialStatus:    m.FinancialStatus,
		FulfillmentStatus:  m.FulfillmentStatus,
		Currency:           m.Currency,
		TotalPrice:         m.TotalPrice,
		SubtotalPrice:      m.SubtotalPrice,
		TotalTax:           m.TotalTax,
		TotalDiscounts:     m.TotalDiscounts,
		UpstreamCustomerID: m.UpstreamCustomerID,
		ProcessedAt:        m.ProcessedAt,
		CancelledAt:        m.CancelledAt,
	}
}

// OrderModelFromDomain creates a model from a domain Order
func OrderModelFromDomain(o *integration.Order) *OrderModel {
	m := &OrderModel{
		Name:               o.Name,
		Email:              o.Email,
		FinancialStatus:    o.FinancialStatus,
		FulfillmentStatus:  o.FulfillmentStatus,
		Currency:           o.Currency,
		TotalPrice:         o.TotalPrice,
		SubtotalPrice:      o.SubtotalPrice,
		TotalTax:           o.TotalTax,
		TotalDiscounts:     o.TotalDiscounts,
		UpstreamCustomerID: o.UpstreamCustomerID,
		ProcessedAt:        o.ProcessedAt,
		CancelledAt:        o.CancelledAt,
	}
	m.FromMeta(o.SyncMeta)
	return m
}

// OrderColumns are rewritten when an upstream order is re-synced
var OrderColumns = []string{
	"name", "email", "financial_status", "fulfillment_status", "currency",
	"total_price", "subtotal_price", "total_tax", "total_discounts",
	"upstream_customer_id", "processed_at", "cancelled_at",
}

// LineItemModel is the persistence model for an order line
type LineItemModel struct {
	SyncedModel
	OrderLocalID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	UpstreamOrderID   string          `gorm:"type:varchar(64);not null"`
	UpstreamProductID *string         `gorm:"type:varchar(64)"`
	UpstreamVariantID *string         `gorm:"type:varchar(64)"`
	Title             string          `gorm:"type:varchar(512)"`
	SKU               string          `gorm:"column:sku;type:varchar(255)"`
	Quantity          int             `gorm:"not null;default:0"`
	Price             decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (LineItemModel) TableName() string {
	return "line_items"
}

// ToDomain converts the persistence model to a domain LineItem
func (m *LineItemModel) ToDomain() integration.LineItem {
	return integration.LineItem{
		SyncMeta:          m.ToMeta(),
		OrderLocalID:      m.OrderLocalID,
		UpstreamOrderID:   m.UpstreamOrderID,
		UpstreamProductID: m.UpstreamProductID,
		UpstreamVariantID: m.UpstreamVariantID,
		Title:             m.Title,
		SKU:               m.SKU,
		Quantity:          m.Quantity,
		Price:             m.Price,
	}
}

// LineItemModelFromDomain creates a model from a domain LineItem
func LineItemModelFromDomain(li *integration.LineItem) *LineItemModel {
	m := &LineItemModel{
		OrderLocalID:      li.OrderLocalID,
		UpstreamOrderID:   li.UpstreamOrderID,
		UpstreamProductID: li.UpstreamProductID,
		UpstreamVariantID: li.UpstreamVariantID,
		Title:             li.Title,
		SKU:               li.SKU,
		Quantity:          li.Quantity,
		Price:             li.Price,
	}
	m.FromMeta(li.SyncMeta)
	return m
}

// LineItemColumns are rewritten when an upstream line item is re-synced
var LineItemColumns = []string{
	"order_local_id", "upstream_order_id", "upstream_product_id", "upstream_variant_id",
	"title", "sku", "quantity", "price",
}
