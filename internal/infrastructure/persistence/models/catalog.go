package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storesync/backend/internal/domain/integration"
)

// ProductModel is the persistence model for a synced product
type ProductModel struct {
	SyncedModel
	Title       string `gorm:"type:varchar(512)"`
	BodyHTML    string `gorm:"column:body_html;type:text"`
	Vendor      string `gorm:"type:varchar(255)"`
	ProductType string `gorm:"type:varchar(255)"`
	Handle      string `gorm:"type:varchar(255)"`
	Status      string `gorm:"type:varchar(32)"`
	Tags        string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product (without variants)
func (m *ProductModel) ToDomain() *integration.Product {
	return &integration.Product{
		SyncMeta:    m.ToMeta(),
		Title:       m.Title,
		BodyHTML:    m.BodyHTML,
		Vendor:      m.Vendor,
		ProductType: m.ProductType,
		Handle:      m.Handle,
		Status:      m.Status,
		Tags:        m.Tags,
	}
}

// ProductModelFromDomain creates a model from a domain Product
func ProductModelFromDomain(p *integration.Product) *ProductModel {
	m := &ProductModel{
		Title:       p.Title,
		BodyHTML:    p.BodyHTML,
		Vendor:      p.Vendor,
		ProductType: p.ProductType,
		Handle:      p.Handle,
		Status:      p.Status,
		Tags:        p.Tags,
	}
	m.FromMeta(p.SyncMeta)
	return m
}

// ProductColumns are rewritten when an upstream product is re-synced
var ProductColumns = []string{"title", "body_html", "vendor", "product_type", "handle", "status", "tags"}

// VariantModel is the persistence model for a product variant
type VariantModel struct {
	SyncedModel
	ProductLocalID    uuid.UUID        `gorm:"type:uuid;not null;index"`
	UpstreamProductID string           `gorm:"type:varchar(64);not null"`
	Title             string           `gorm:"type:varchar(512)"`
	SKU               string           `gorm:"column:sku;type:varchar(255);index"`
	Price             decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	CompareAtPrice    *decimal.Decimal `gorm:"type:decimal(18,4)"`
	InventoryQuantity int              `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (VariantModel) TableName() string {
	return "variants"
}

// ToDomain converts the persistence model to a domain Variant
func (m *VariantModel) ToDomain() integration.Variant {
	return integration.Variant{
		SyncMeta:          m.ToMeta(),
		ProductLocalID:    m.ProductLocalID,
		UpstreamProductID: m.UpstreamProductID,
		Title:             m.Title,
		SKU:               m.SKU,
		Price:             m.Price,
		CompareAtPrice:    m.CompareAtPrice,
		InventoryQuantity: m.InventoryQuantity,
	}
}

// VariantModelFromDomain creates a model from a domain Variant
func VariantModelFromDomain(v *integration.Variant) *VariantModel {
	m := &VariantModel{
		ProductLocalID:    v.ProductLocalID,
		UpstreamProductID: v.UpstreamProductID,
		Title:             v.Title,
		SKU:               v.SKU,
		Price:             v.Price,
		CompareAtPrice:    v.CompareAtPrice,
		InventoryQuantity: v.InventoryQuantity,
	}
	m.FromMeta(v.SyncMeta)
	return m
}

// VariantColumns are rewritten when an upstream variant is re-synced
var VariantColumns = []string{"product_local_id", "upstream_product_id", "title", "sku", "price", "compare_at_price", "inventory_quantity"}
