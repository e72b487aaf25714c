package integration

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// EntityType
// ---------------------------------------------------------------------------

// EntityType identifies a synced collection
type EntityType string

const (
	EntityProduct  EntityType = "product"
	EntityVariant  EntityType = "variant"
	EntityOrder    EntityType = "order"
	EntityLineItem EntityType = "line_item"
	EntityCustomer EntityType = "customer"
)

// IsValid returns true if the entity type is known
func (e EntityType) IsValid() bool {
	switch e {
	case EntityProduct, EntityVariant, EntityOrder, EntityLineItem, EntityCustomer:
		return true
	default:
		return false
	}
}

// IsRoot returns true for entity types pulled as their own collection
func (e EntityType) IsRoot() bool {
	return e == EntityProduct || e == EntityOrder || e == EntityCustomer
}

// String returns the string representation of EntityType
func (e EntityType) String() string {
	return string(e)
}

// RootEntityTypes lists the pulled collections in the order workers run
func RootEntityTypes() []EntityType {
	return []EntityType{EntityProduct, EntityOrder, EntityCustomer}
}

// ---------------------------------------------------------------------------
// SyncMeta
// ---------------------------------------------------------------------------

// SyncMeta carries the reconciliation fields shared by every synced entity
type SyncMeta struct {
	LocalID         uuid.UUID
	TenantID        uuid.UUID
	UpstreamID      string
	IsDeleted       bool
	SyncedAt        time.Time
	SourceUpdatedAt *time.Time
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

// Product is a synced upstream product
type Product struct {
	SyncMeta
	Title       string
	BodyHTML    string
	Vendor      string
	ProductType string
	Handle      string
	Status      string
	Tags        string
	Variants    []Variant
}

// Variant is a sellable variant of a Product
type Variant struct {
	SyncMeta
	ProductLocalID    uuid.UUID
	UpstreamProductID string
	Title             string
	SKU               string
	Price             decimal.Decimal
	CompareAtPrice    *decimal.Decimal
	InventoryQuantity int
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// Order is a synced upstream order
type Order struct {
	SyncMeta
	Name               string
	Email              string
	FinancialStatus    string
	FulfillmentStatus  string
	Currency           string
	TotalPrice         decimal.Decimal
	SubtotalPrice      decimal.Decimal
	TotalTax           decimal.Decimal
	TotalDiscounts     decimal.Decimal
	UpstreamCustomerID *string
	ProcessedAt        *time.Time
	CancelledAt        *time.Time
	LineItems          []LineItem
}

// LineItem is one line of an Order
type LineItem struct {
	SyncMeta
	OrderLocalID      uuid.UUID
	UpstreamOrderID   string
	UpstreamProductID *string
	UpstreamVariantID *string
	Title             string
	SKU               string
	Quantity          int
	Price             decimal.Decimal
}

// ---------------------------------------------------------------------------
// Customers
// ---------------------------------------------------------------------------

// Customer is a synced upstream customer
type Customer struct {
	SyncMeta
	Email       string
	FirstName   string
	LastName    string
	Phone       string
	State       string
	OrdersCount int
	TotalSpent  decimal.Decimal
	Currency    string
}

// ---------------------------------------------------------------------------
// Subscription
// ---------------------------------------------------------------------------

// Subscription is the billing state pushed by the platform for a tenant
type Subscription struct {
	UpstreamID string
	Name       string
	Status     string
}
