package ingestion

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/integration"
)

// Reconciler writes mapped records into the local store, parent first.
// A failed parent skips its children; a failed child does not stop its siblings.
type Reconciler struct {
	store  integration.EntityStore
	logger *zap.Logger
}

// NewReconciler creates a new Reconciler
func NewReconciler(store integration.EntityStore, logger *zap.Logger) *Reconciler {
	return &Reconciler{store: store, logger: logger}
}

// Product upserts a product and then each of its variants.
// The returned id is uuid.Nil when the product itself could not be written.
func (r *Reconciler) Product(ctx context.Context, p *integration.Product) (uuid.UUID, []error) {
	id, err := r.store.UpsertProduct(ctx, p)
	if err != nil {
		r.logSkippedChildren(p.TenantID, integration.EntityProduct, p.UpstreamID, len(p.Variants))
		return uuid.Nil, []error{&integration.UpsertError{Entity: integration.EntityProduct, UpstreamID: p.UpstreamID, Err: err}}
	}
	p.LocalID = id

	var errs []error
	for i := range p.Variants {
		v := &p.Variants[i]
		v.ProductLocalID = id
		localID, err := r.store.UpsertVariant(ctx, v)
		if err != nil {
			errs = append(errs, &integration.UpsertError{Entity: integration.EntityVariant, UpstreamID: v.UpstreamID, Err: err})
			continue
		}
		v.LocalID = localID
	}
	return id, errs
}

// Order upserts an order and then each of its line items
func (r *Reconciler) Order(ctx context.Context, o *integration.Order) (uuid.UUID, []error) {
	id, err := r.store.UpsertOrder(ctx, o)
	if err != nil {
		r.logSkippedChildren(o.TenantID, integration.EntityOrder, o.UpstreamID, len(o.LineItems))
		return uuid.Nil, []error{&integration.UpsertError{Entity: integration.EntityOrder, UpstreamID: o.UpstreamID, Err: err}}
	}
	o.LocalID = id

	var errs []error
	for i := range o.LineItems {
		li := &o.LineItems[i]
		li.OrderLocalID = id
		localID, err := r.store.UpsertLineItem(ctx, li)
		if err != nil {
			errs = append(errs, &integration.UpsertError{Entity: integration.EntityLineItem, UpstreamID: li.UpstreamID, Err: err})
			continue
		}
		li.LocalID = localID
	}
	return id, errs
}

// Customer upserts a customer
func (r *Reconciler) Customer(ctx context.Context, c *integration.Customer) (uuid.UUID, []error) {
	id, err := r.store.UpsertCustomer(ctx, c)
	if err != nil {
		return uuid.Nil, []error{&integration.UpsertError{Entity: integration.EntityCustomer, UpstreamID: c.UpstreamID, Err: err}}
	}
	c.LocalID = id
	return id, nil
}

// Delete soft-deletes a root entity and its children. Unknown ids are a no-op.
func (r *Reconciler) Delete(ctx context.Context, entity integration.EntityType, tenantID uuid.UUID, upstreamID string) (bool, error) {
	switch entity {
	case integration.EntityProduct:
		return r.store.SoftDeleteProduct(ctx, tenantID, upstreamID)
	case integration.EntityOrder:
		return r.store.SoftDeleteOrder(ctx, tenantID, upstreamID)
	case integration.EntityCustomer:
		return r.store.SoftDeleteCustomer(ctx, tenantID, upstreamID)
	default:
		return false, integration.ErrInvalidEntityType
	}
}

func (r *Reconciler) logSkippedChildren(tenantID uuid.UUID, entity integration.EntityType, upstreamID string, children int) {
	if children == 0 {
		return
	}
	r.logger.Warn("Parent upsert failed, skipping children",
		zap.String("tenant_id", tenantID.String()),
		zap.String("entity", entity.String()),
		zap.String("upstream_id", upstreamID),
		zap.Int("skipped_children", children),
	)
}
