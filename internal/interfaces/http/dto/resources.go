package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storesync/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Tenant and sync status
// ---------------------------------------------------------------------------

// SyncStatusResponse is the tenant's sync state as shown to the merchant
type SyncStatusResponse struct {
	TenantID          uuid.UUID  `json:"tenant_id"`
	Domain            string     `json:"domain"`
	SyncStatus        string     `json:"sync_status"`
	SyncStartedAt     *time.Time `json:"sync_started_at,omitempty"`
	SyncFinishedAt    *time.Time `json:"sync_finished_at,omitempty"`
	SyncCheckpointAt  *time.Time `json:"sync_checkpoint_at,omitempty"`
	LastRunErrorCount int        `json:"last_run_error_count"`
	Timezone          string     `json:"timezone"`
	Connected         bool       `json:"connected"`
	PlanName          string     `json:"plan_name,omitempty"`
	BillingActive     bool       `json:"billing_active"`
}

// NewSyncStatusResponse converts a tenant
func NewSyncStatusResponse(t *integration.Tenant) SyncStatusResponse {
	return SyncStatusResponse{
		TenantID:          t.ID,
		Domain:            t.Domain,
		SyncStatus:        string(t.SyncStatus),
		SyncStartedAt:     t.SyncStartedAt,
		SyncFinishedAt:    t.SyncFinishedAt,
		SyncCheckpointAt:  t.SyncCheckpointAt,
		LastRunErrorCount: t.LastRunErrorCount,
		Timezone:          t.Timezone,
		Connected:         t.IsConnected(),
		PlanName:          t.PlanName,
		BillingActive:     t.BillingActive,
	}
}

// DisconnectResponse acknowledges a disconnect
type DisconnectResponse struct {
	TenantID       uuid.UUID  `json:"tenant_id"`
	Domain         string     `json:"domain"`
	DisconnectedAt *time.Time `json:"disconnected_at"`
}

// RunAcceptedResponse acknowledges a background sync run
type RunAcceptedResponse struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Status   string    `json:"status"`
}

// ---------------------------------------------------------------------------
// Audit log
// ---------------------------------------------------------------------------

// SyncErrorResponse is one recorded sync failure
type SyncErrorResponse struct {
	ID        uuid.UUID `json:"id"`
	RunID     uuid.UUID `json:"run_id"`
	Worker    string    `json:"worker"`
	Phase     string    `json:"phase"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSyncErrorResponses converts sync errors
func NewSyncErrorResponses(errs []integration.SyncError) []SyncErrorResponse {
	out := make([]SyncErrorResponse, 0, len(errs))
	for _, e := range errs {
		out = append(out, SyncErrorResponse{
			ID:        e.ID,
			RunID:     e.RunID,
			Worker:    e.Worker,
			Phase:     string(e.Phase),
			Message:   e.Message,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

// WebhookEventResponse is one stored webhook delivery
type WebhookEventResponse struct {
	ID         uuid.UUID       `json:"id"`
	Topic      string          `json:"topic"`
	Status     string          `json:"status"`
	Error      string          `json:"error,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

// NewWebhookEventResponses converts webhook events; payloads that are not
// valid JSON are left out
func NewWebhookEventResponses(events []integration.WebhookEvent) []WebhookEventResponse {
	out := make([]WebhookEventResponse, 0, len(events))
	for _, e := range events {
		r := WebhookEventResponse{
			ID:         e.ID,
			Topic:      e.Topic,
			Status:     string(e.Status),
			Error:      e.Error,
			ReceivedAt: e.ReceivedAt,
		}
		if len(e.Payload) > 0 && json.Valid(e.Payload) {
			r.Payload = json.RawMessage(e.Payload)
		}
		out = append(out, r)
	}
	return out
}

// WebhookAckResponse is returned for every accepted delivery
type WebhookAckResponse struct {
	EventID   *uuid.UUID `json:"event_id,omitempty"`
	Topic     string     `json:"topic"`
	Status    string     `json:"status"`
	Duplicate bool       `json:"duplicate,omitempty"`
}

// ---------------------------------------------------------------------------
// Synced entities
// ---------------------------------------------------------------------------

// SyncMetaResponse carries the reconciliation fields of a synced entity
type SyncMetaResponse struct {
	ID              uuid.UUID  `json:"id"`
	UpstreamID      string     `json:"upstream_id"`
	IsDeleted       bool       `json:"is_deleted"`
	SyncedAt        time.Time  `json:"synced_at"`
	SourceUpdatedAt *time.Time `json:"source_updated_at,omitempty"`
}

func newSyncMeta(m integration.SyncMeta) SyncMetaResponse {
	return SyncMetaResponse{
		ID:              m.LocalID,
		UpstreamID:      m.UpstreamID,
		IsDeleted:       m.IsDeleted,
		SyncedAt:        m.SyncedAt,
		SourceUpdatedAt: m.SourceUpdatedAt,
	}
}

// VariantResponse is a product variant
type VariantResponse struct {
	SyncMetaResponse
	Title             string           `json:"title"`
	SKU               string           `json:"sku"`
	Price             decimal.Decimal  `json:"price"`
	CompareAtPrice    *decimal.Decimal `json:"compare_at_price,omitempty"`
	InventoryQuantity int              `json:"inventory_quantity"`
}

// ProductResponse is a product; Variants is only filled on the detail view
type ProductResponse struct {
	SyncMetaResponse
	Title       string            `json:"title"`
	BodyHTML    string            `json:"body_html,omitempty"`
	Vendor      string            `json:"vendor"`
	ProductType string            `json:"product_type"`
	Handle      string            `json:"handle"`
	Status      string            `json:"status"`
	Tags        string            `json:"tags"`
	Variants    []VariantResponse `json:"variants,omitempty"`
}

// NewProductResponse converts a product with its variants
func NewProductResponse(p *integration.Product) ProductResponse {
	r := ProductResponse{
		SyncMetaResponse: newSyncMeta(p.SyncMeta),
		Title:            p.Title,
		BodyHTML:         p.BodyHTML,
		Vendor:           p.Vendor,
		ProductType:      p.ProductType,
		Handle:           p.Handle,
		Status:           p.Status,
		Tags:             p.Tags,
	}
	for _, v := range p.Variants {
		r.Variants = append(r.Variants, VariantResponse{
			SyncMetaResponse:  newSyncMeta(v.SyncMeta),
			Title:             v.Title,
			SKU:               v.SKU,
			Price:             v.Price,
			CompareAtPrice:    v.CompareAtPrice,
			InventoryQuantity: v.InventoryQuantity,
		})
	}
	return r
}

// NewProductResponses converts a page of products
func NewProductResponses(products []integration.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for i := range products {
		out = append(out, NewProductResponse(&products[i]))
	}
	return out
}

// LineItemResponse is one order line
type LineItemResponse struct {
	SyncMetaResponse
	UpstreamProductID *string         `json:"upstream_product_id,omitempty"`
	UpstreamVariantID *string         `json:"upstream_variant_id,omitempty"`
	Title             string          `json:"title"`
	SKU               string          `json:"sku"`
	Quantity          int             `json:"quantity"`
	Price             decimal.Decimal `json:"price"`
}

// OrderResponse is an order; LineItems is only filled on the detail view
type OrderResponse struct {
	SyncMetaResponse
	Name               string             `json:"name"`
	Email              string             `json:"email"`
	FinancialStatus    string             `json:"financial_status"`
	FulfillmentStatus  string             `json:"fulfillment_status"`
	Currency           string             `json:"currency"`
	TotalPrice         decimal.Decimal    `json:"total_price"`
	SubtotalPrice      decimal.Decimal    `json:"subtotal_price"`
	TotalTax           decimal.Decimal    `json:"total_tax"`
	TotalDiscounts     decimal.Decimal    `json:"total_discounts"`
	UpstreamCustomerID *string            `json:"upstream_customer_id"`
	ProcessedAt        *time.Time         `json:"processed_at,omitempty"`
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`
	LineItems          []LineItemResponse `json:"line_items,omitempty"`
}

// NewOrderResponse converts an order with its line items
func NewOrderResponse(o *integration.Order) OrderResponse {
	r := OrderResponse{
		SyncMetaResponse:   newSyncMeta(o.SyncMeta),
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
	for _, li := range o.LineItems {
		r.LineItems = append(r.LineItems, LineItemResponse{
			SyncMetaResponse:  newSyncMeta(li.SyncMeta),
			UpstreamProductID: li.UpstreamProductID,
			UpstreamVariantID: li.UpstreamVariantID,
			Title:             li.Title,
			SKU:               li.SKU,
			Quantity:          li.Quantity,
			Price:             li.Price,
		})
	}
	return r
}

// NewOrderResponses converts a page of orders
func NewOrderResponses(orders []integration.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, NewOrderResponse(&orders[i]))
	}
	return out
}

// CustomerResponse is a synced customer
type CustomerResponse struct {
	SyncMetaResponse
	Email       string          `json:"email"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	Phone       string          `json:"phone,omitempty"`
	State       string          `json:"state"`
	OrdersCount int             `json:"orders_count"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
	Currency    string          `json:"currency"`
}

// NewCustomerResponses converts a page of customers
func NewCustomerResponses(customers []integration.Customer) []CustomerResponse {
	out := make([]CustomerResponse, 0, len(customers))
	for _, c := range customers {
		out = append(out, CustomerResponse{
			SyncMetaResponse: newSyncMeta(c.SyncMeta),
			Email:            c.Email,
			FirstName:        c.FirstName,
			LastName:         c.LastName,
			Phone:            c.Phone,
			State:            c.State,
			OrdersCount:      c.OrdersCount,
			TotalSpent:       c.TotalSpent,
			Currency:         c.Currency,
		})
	}
	return out
}

// ---------------------------------------------------------------------------
// Scheduler
// ---------------------------------------------------------------------------

// RunResultResponse is the outcome of one tenant run
type RunResultResponse struct {
	RunID       uuid.UUID `json:"run_id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	Domain      string    `json:"domain"`
	Outcome     string    `json:"outcome"`
	SyncedCount int       `json:"synced_count"`
	ErrorCount  int       `json:"error_count"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// NewRunResultResponse converts a run result
func NewRunResultResponse(r integration.RunResult) RunResultResponse {
	return RunResultResponse{
		RunID:       r.RunID,
		TenantID:    r.TenantID,
		Domain:      r.Domain,
		Outcome:     string(r.Outcome),
		SyncedCount: r.SyncedCount(),
		ErrorCount:  r.ErrorCount,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
	}
}

// DueRunSummaryResponse is what one scheduler pass reports
type DueRunSummaryResponse struct {
	Due       int                 `json:"due"`
	Completed int                 `json:"completed"`
	Degraded  int                 `json:"degraded"`
	Failed    int                 `json:"failed"`
	Skipped   int                 `json:"skipped"`
	Runs      []RunResultResponse `json:"runs"`
}

// NewDueRunSummaryResponse converts a scheduler summary
func NewDueRunSummaryResponse(s *integration.DueRunSummary) DueRunSummaryResponse {
	r := DueRunSummaryResponse{
		Due:       s.Due,
		Completed: s.Completed,
		Degraded:  s.Degraded,
		Failed:    s.Failed,
		Skipped:   s.Skipped,
		Runs:      make([]RunResultResponse, 0, len(s.Results)),
	}
	for _, res := range s.Results {
		r.Runs = append(r.Runs, NewRunResultResponse(res))
	}
	return r
}
