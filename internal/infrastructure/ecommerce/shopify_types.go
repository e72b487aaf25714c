package ecommerce

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ---------------------------------------------------------------------------
// Scalar wire types
// ---------------------------------------------------------------------------

// ShopifyID is an upstream identifier. The Admin API sends numeric ids but
// some payloads quote them; both decode to the same decimal string.
type ShopifyID string

// UnmarshalJSON accepts a JSON number, a quoted string or null
func (id *ShopifyID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return err
		}
		*id = ShopifyID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ShopifyID(n.String())
	return nil
}

// String returns the id as a string
func (id ShopifyID) String() string { return string(id) }

// Ptr returns nil for an empty id
func (id ShopifyID) Ptr() *string {
	if id == "" {
		return nil
	}
	s := string(id)
	return &s
}

// Amount is a money or numeric field kept verbatim; the mapper parses it.
type Amount string

// UnmarshalJSON accepts a JSON number, a quoted string or null
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = ""
	case len(data) > 0 && data[0] == '"':
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return err
		}
		*a = Amount(s)
	default:
		*a = Amount(data)
	}
	return nil
}

// Timestamp is an RFC 3339 timestamp kept verbatim; the mapper parses it.
type Timestamp string

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

// ShopifyProduct is a product as returned by /products.json and products/* webhooks
type ShopifyProduct struct {
	ID          ShopifyID        `json:"id" validate:"required"`
	Title       string           `json:"title"`
	BodyHTML    string           `json:"body_html"`
	Vendor      string           `json:"vendor"`
	ProductType string           `json:"product_type"`
	Handle      string           `json:"handle"`
	Status      string           `json:"status"`
	Tags        string           `json:"tags"`
	CreatedAt   Timestamp        `json:"created_at"`
	UpdatedAt   Timestamp        `json:"updated_at"`
	Variants    []ShopifyVariant `json:"variants" validate:"dive"`
}

// ShopifyVariant is a product variant
type ShopifyVariant struct {
	ID                ShopifyID `json:"id" validate:"required"`
	ProductID         ShopifyID `json:"product_id"`
	Title             string    `json:"title"`
	SKU               string    `json:"sku"`
	Price             Amount    `json:"price"`
	CompareAtPrice    Amount    `json:"compare_at_price"`
	InventoryQuantity Amount    `json:"inventory_quantity"`
	UpdatedAt         Timestamp `json:"updated_at"`
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// ShopifyOrder is an order as returned by /orders.json and orders/* webhooks
type ShopifyOrder struct {
	ID                ShopifyID           `json:"id" validate:"required"`
	Name              string              `json:"name"`
	Email             string              `json:"email"`
	FinancialStatus   string              `json:"financial_status"`
	FulfillmentStatus string              `json:"fulfillment_status"`
	Currency          string              `json:"currency"`
	TotalPrice        Amount              `json:"total_price"`
	SubtotalPrice     Amount              `json:"subtotal_price"`
	TotalTax          Amount              `json:"total_tax"`
	TotalDiscounts    Amount              `json:"total_discounts"`
	ProcessedAt       Timestamp           `json:"processed_at"`
	CancelledAt       Timestamp           `json:"cancelled_at"`
	UpdatedAt         Timestamp           `json:"updated_at"`
	Customer          *ShopifyCustomerRef `json:"customer"`
	LineItems         []ShopifyLineItem   `json:"line_items" validate:"dive"`
}

// ShopifyCustomerRef is the customer stub embedded in an order
type ShopifyCustomerRef struct {
	ID ShopifyID `json:"id"`
}

// ShopifyLineItem is one order line
type ShopifyLineItem struct {
	ID        ShopifyID `json:"id" validate:"required"`
	ProductID ShopifyID `json:"product_id"`
	VariantID ShopifyID `json:"variant_id"`
	Title     string    `json:"title"`
	SKU       string    `json:"sku"`
	Quantity  Amount    `json:"quantity"`
	Price     Amount    `json:"price"`
}

// ---------------------------------------------------------------------------
// Customers
// ---------------------------------------------------------------------------

// ShopifyCustomer is a customer as returned by /customers.json and customers/* webhooks
type ShopifyCustomer struct {
	ID          ShopifyID `json:"id" validate:"required"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Phone       string    `json:"phone"`
	State       string    `json:"state"`
	OrdersCount Amount    `json:"orders_count"`
	TotalSpent  Amount    `json:"total_spent"`
	Currency    string    `json:"currency"`
	UpdatedAt   Timestamp `json:"updated_at"`
}

// ---------------------------------------------------------------------------
// Webhook-only payloads
// ---------------------------------------------------------------------------

// ShopifyDeletePayload is the body of every */delete webhook
type ShopifyDeletePayload struct {
	ID ShopifyID `json:"id" validate:"required"`
}

// ShopifySubscriptionPayload is the body of app_subscriptions/update
type ShopifySubscriptionPayload struct {
	AppSubscription ShopifySubscription `json:"app_subscription"`
}

// ShopifySubscription is the app subscription state
type ShopifySubscription struct {
	AdminGraphqlAPIID string `json:"admin_graphql_api_id"`
	Name              string `json:"name"`
	Status            string `json:"status" validate:"required"`
}

// ---------------------------------------------------------------------------
// Collection envelopes
// ---------------------------------------------------------------------------

type productsEnvelope struct {
	Products []ShopifyProduct `json:"products"`
}

type ordersEnvelope struct {
	Orders []ShopifyOrder `json:"orders"`
}

type customersEnvelope struct {
	Customers []ShopifyCustomer `json:"customers"`
}
