package ingestion

import (
	"context"

	"github.com/google/uuid"

	"github.com/storesync/backend/internal/domain/integration"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
)

// ListResult is one page of a read query
type ListResult[T any] struct {
	Items    []T
	Total    int64
	Page     int
	PageSize int
}

// QueryService serves the read-only tenant views
type QueryService struct {
	reader integration.EntityReader
	audit  integration.AuditLog
}

// NewQueryService creates a new QueryService
func NewQueryService(reader integration.EntityReader, audit integration.AuditLog) *QueryService {
	return &QueryService{reader: reader, audit: audit}
}

// NormalizeFilter clamps page and page size
func NormalizeFilter(f integration.ListFilter) integration.ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	return f
}

// ListProducts returns a page of products
func (s *QueryService) ListProducts(ctx context.Context, tenantID uuid.UUID, f integration.ListFilter) (*ListResult[integration.Product], error) {
	f = NormalizeFilter(f)
	items, total, err := s.reader.ListProducts(ctx, tenantID, f)
	if err != nil {
		return nil, err
	}
	return &ListResult[integration.Product]{Items: items, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

// GetProduct returns a product with variants
func (s *QueryService) GetProduct(ctx context.Context, tenantID, id uuid.UUID) (*integration.Product, error) {
	return s.reader.GetProduct(ctx, tenantID, id)
}

// ListOrders returns a page of orders
func (s *QueryService) ListOrders(ctx context.Context, tenantID uuid.UUID, f integration.ListFilter) (*ListResult[integration.Order], error) {
	f = NormalizeFilter(f)
	items, total, err := s.reader.ListOrders(ctx, tenantID, f)
	if err != nil {
		return nil, err
	}
	return &ListResult[integration.Order]{Items: items, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

// GetOrder returns an order with line items
func (s *QueryService) GetOrder(ctx context.Context, tenantID, id uuid.UUID) (*integration.Order, error) {
	return s.reader.GetOrder(ctx, tenantID, id)
}

// ListCustomers returns a page of customers
func (s *QueryService) ListCustomers(ctx context.Context, tenantID uuid.UUID, f integration.ListFilter) (*ListResult[integration.Customer], error) {
	f = NormalizeFilter(f)
	items, total, err := s.reader.ListCustomers(ctx, tenantID, f)
	if err != nil {
		return nil, err
	}
	return &ListResult[integration.Customer]{Items: items, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

// SyncErrors returns the most recent sync errors for a tenant
func (s *QueryService) SyncErrors(ctx context.Context, tenantID uuid.UUID, limit int) ([]integration.SyncError, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	return s.audit.ListSyncErrors(ctx, tenantID, limit)
}

// WebhookEvents returns the most recent webhook events for a tenant
func (s *QueryService) WebhookEvents(ctx context.Context, tenantID uuid.UUID, limit int) ([]integration.WebhookEvent, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	return s.audit.ListWebhookEvents(ctx, tenantID, limit)
}
