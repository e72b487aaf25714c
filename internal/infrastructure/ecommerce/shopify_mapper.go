package ecommerce

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storesync/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Pure mapping from upstream wire records to domain records.
// Missing or malformed numbers become zero (or nil when the field is
// nullable); a bad field never drops the record.
// ---------------------------------------------------------------------------

// MapProduct converts a ShopifyProduct and its variants
func MapProduct(tenantID uuid.UUID, p ShopifyProduct) integration.Product {
	updatedAt := parseTimestamp(p.UpdatedAt)
	product := integration.Product{
		SyncMeta:    meta(tenantID, p.ID, updatedAt),
		Title:       p.Title,
		BodyHTML:    p.BodyHTML,
		Vendor:      p.Vendor,
		ProductType: p.ProductType,
		Handle:      p.Handle,
		Status:      strings.ToLower(p.Status),
		Tags:        p.Tags,
		Variants:    make([]integration.Variant, 0, len(p.Variants)),
	}
	for _, v := range p.Variants {
		product.Variants = append(product.Variants, mapVariant(tenantID, p.ID, v, updatedAt))
	}
	return product
}

func mapVariant(tenantID uuid.UUID, productID ShopifyID, v ShopifyVariant, productUpdatedAt *time.Time) integration.Variant {
	updatedAt := parseTimestamp(v.UpdatedAt)
	if updatedAt == nil {
		updatedAt = productUpdatedAt
	}
	upstreamProductID := v.ProductID
	if upstreamProductID == "" {
		upstreamProductID = productID
	}
	return integration.Variant{
		SyncMeta:          meta(tenantID, v.ID, updatedAt),
		UpstreamProductID: upstreamProductID.String(),
		Title:             v.Title,
		SKU:               v.SKU,
		Price:             parseAmount(v.Price),
		CompareAtPrice:    parseOptionalAmount(v.CompareAtPrice),
		InventoryQuantity: parseInt(v.InventoryQuantity),
	}
}

// MapOrder converts a ShopifyOrder and its line items
func MapOrder(tenantID uuid.UUID, o ShopifyOrder) integration.Order {
	updatedAt := parseTimestamp(o.UpdatedAt)
	order := integration.Order{
		SyncMeta:          meta(tenantID, o.ID, updatedAt),
		Name:              o.Name,
		Email:             o.Email,
		FinancialStatus:   o.FinancialStatus,
		FulfillmentStatus: o.FulfillmentStatus,
		Currency:          strings.ToUpper(o.Currency),
		TotalPrice:        parseAmount(o.TotalPrice),
		SubtotalPrice:     parseAmount(o.SubtotalPrice),
		TotalTax:          parseAmount(o.TotalTax),
		TotalDiscounts:    parseAmount(o.TotalDiscounts),
		ProcessedAt:       parseTimestamp(o.ProcessedAt),
		CancelledAt:       parseTimestamp(o.CancelledAt),
		LineItems:         make([]integration.LineItem, 0, len(o.LineItems)),
	}
	if o.Customer != nil {
		order.UpstreamCustomerID = o.Customer.ID.Ptr()
	}
	for _, li := range o.LineItems {
		order.LineItems = append(order.LineItems, integration.LineItem{
			SyncMeta:          meta(tenantID, li.ID, updatedAt),
			UpstreamOrderID:   o.ID.String(),
			UpstreamProductID: li.ProductID.Ptr(),
			UpstreamVariantID: li.VariantID.Ptr(),
			Title:             li.Title,
			SKU:               li.SKU,
			Quantity:          parseInt(li.Quantity),
			Price:             parseAmount(li.Price),
		})
	}
	return order
}

// MapCustomer converts a ShopifyCustomer
func MapCustomer(tenantID uuid.UUID, c ShopifyCustomer) integration.Customer {
	return integration.Customer{
		SyncMeta:    meta(tenantID, c.ID, parseTimestamp(c.UpdatedAt)),
		Email:       c.Email,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Phone:       c.Phone,
		State:       c.State,
		OrdersCount: parseInt(c.OrdersCount),
		TotalSpent:  parseAmount(c.TotalSpent),
		Currency:    strings.ToUpper(c.Currency),
	}
}

// MapSubscription converts an app subscription payload
func MapSubscription(s ShopifySubscription) integration.Subscription {
	return integration.Subscription{
		UpstreamID: s.AdminGraphqlAPIID,
		Name:       s.Name,
		Status:     s.Status,
	}
}

func meta(tenantID uuid.UUID, id ShopifyID, updatedAt *time.Time) integration.SyncMeta {
	return integration.SyncMeta{
		TenantID:        tenantID,
		UpstreamID:      id.String(),
		SourceUpdatedAt: updatedAt,
	}
}

func parseAmount(a Amount) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(string(a)))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseOptionalAmount(a Amount) *decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(string(a)))
	if err != nil {
		return nil
	}
	return &d
}

func parseInt(a Amount) int {
	return int(parseAmount(a).IntPart())
}

func parseTimestamp(ts Timestamp) *time.Time {
	if ts == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, string(ts))
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
