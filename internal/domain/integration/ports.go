package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Tenant registry
// ---------------------------------------------------------------------------

// TenantRepository persists tenants
type TenantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	FindByDomain(ctx context.Context, domain string) (*Tenant, error)
	// FindConnected returns tenants with a credential and no disconnect mark
	FindConnected(ctx context.Context) ([]Tenant, error)
	// Save creates or fully overwrites a tenant
	Save(ctx context.Context, tenant *Tenant) error
	// SaveSyncState writes only the sync status, timestamps, checkpoint and
	// error count, leaving connection and billing columns as stored
	SaveSyncState(ctx context.Context, tenant *Tenant) error
	// SaveConnection writes the credential, disconnect mark and status
	SaveConnection(ctx context.Context, tenant *Tenant) error
	// SaveSubscription writes the billing flags
	SaveSubscription(ctx context.Context, tenant *Tenant) error
}

// Lease is a held per-tenant run lock
type Lease interface {
	Release(ctx context.Context) error
}

// TenantLocker hands out per-tenant leases with expiry.
// TryAcquire returns ErrTenantLeaseHeld when another holder is active.
type TenantLocker interface {
	TryAcquire(ctx context.Context, tenantID uuid.UUID, ttl time.Duration) (Lease, error)
}

// ---------------------------------------------------------------------------
// Local store
// ---------------------------------------------------------------------------

// EntityStore writes synced entities keyed by (tenant_id, upstream_id).
// Every Upsert returns the local id of the row, whether inserted or updated.
type EntityStore interface {
	UpsertProduct(ctx context.Context, p *Product) (uuid.UUID, error)
	UpsertVariant(ctx context.Context, v *Variant) (uuid.UUID, error)
	UpsertOrder(ctx context.Context, o *Order) (uuid.UUID, error)
	UpsertLineItem(ctx context.Context, li *LineItem) (uuid.UUID, error)
	UpsertCustomer(ctx context.Context, c *Customer) (uuid.UUID, error)

	// SoftDelete* flag the row and its children; found is false for unknown ids
	SoftDeleteProduct(ctx context.Context, tenantID uuid.UUID, upstreamID string) (found bool, err error)
	SoftDeleteOrder(ctx context.Context, tenantID uuid.UUID, upstreamID string) (found bool, err error)
	SoftDeleteCustomer(ctx context.Context, tenantID uuid.UUID, upstreamID string) (found bool, err error)
}

// ListFilter pages read queries
type ListFilter struct {
	Page           int
	PageSize       int
	IncludeDeleted bool
}

// Offset returns the row offset for the filter
func (f ListFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// EntityReader serves the read-only query API
type EntityReader interface {
	ListProducts(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Product, int64, error)
	GetProduct(ctx context.Context, tenantID, localID uuid.UUID) (*Product, error)
	ListOrders(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Order, int64, error)
	GetOrder(ctx context.Context, tenantID, localID uuid.UUID) (*Order, error)
	ListCustomers(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Customer, int64, error)
}

// ---------------------------------------------------------------------------
// Audit log
// ---------------------------------------------------------------------------

// AuditLog is the durable, append-only audit trail
type AuditLog interface {
	RecordSyncError(ctx context.Context, e *SyncError) error
	CountSyncErrors(ctx context.Context, runID uuid.UUID) (int64, error)
	ListSyncErrors(ctx context.Context, tenantID uuid.UUID, limit int) ([]SyncError, error)
	RecordWebhookEvent(ctx context.Context, e *WebhookEvent) error
	ListWebhookEvents(ctx context.Context, tenantID uuid.UUID, limit int) ([]WebhookEvent, error)
}

// ---------------------------------------------------------------------------
// Upstream platform
// ---------------------------------------------------------------------------

// Page is one decoded page of an upstream collection
type Page[T any] struct {
	Number  int
	Records []T
}

// PageIterator walks a paged collection lazily. Next fetches the next page
// and returns false once the collection is exhausted or a fetch failed; Err
// tells the two apart.
type PageIterator[T any] interface {
	Next(ctx context.Context) bool
	Page() Page[T]
	Err() error
}

// UpstreamClient opens delta iterators over the platform collections.
// A nil since pulls the full collection.
type UpstreamClient interface {
	ProductPages(tenant *Tenant, since *time.Time) PageIterator[Product]
	OrderPages(tenant *Tenant, since *time.Time) PageIterator[Order]
	CustomerPages(tenant *Tenant, since *time.Time) PageIterator[Customer]
}

// ---------------------------------------------------------------------------
// Webhook deliveries
// ---------------------------------------------------------------------------

// DeliveryStore remembers webhook delivery ids that were fully processed so
// a redelivery of a successful webhook is not dispatched twice.
type DeliveryStore interface {
	// MarkProcessed returns false when the id was already marked
	MarkProcessed(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, deliveryID string) (bool, error)
}
