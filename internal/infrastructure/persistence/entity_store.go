package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
)

// GormEntityStore implements integration.EntityStore and integration.EntityReader.
//
// Every write is an INSERT ... ON CONFLICT (tenant_id, upstream_id) DO UPDATE
// guarded so that an older upstream version never overwrites a newer one.
type GormEntityStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormEntityStore creates a new GormEntityStore
func NewGormEntityStore(db *gorm.DB) *GormEntityStore {
	return &GormEntityStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

// UpsertProduct writes the product row only; variants are written separately
func (s *GormEntityStore) UpsertProduct(ctx context.Context, p *integration.Product) (uuid.UUID, error) {
	if err := s.checkMeta(&p.SyncMeta); err != nil {
		return uuid.Nil, err
	}
	m := models.ProductModelFromDomain(p)
	return s.upsert(ctx, "products", m, &m.SyncedModel, models.ProductColumns)
}

// UpsertVariant writes a variant under an already persisted product
func (s *GormEntityStore) UpsertVariant(ctx context.Context, v *integration.Variant) (uuid.UUID, error) {
	if v.ProductLocalID == uuid.Nil {
		return uuid.Nil, integration.ErrParentNotPersisted
	}
	if err := s.checkMeta(&v.SyncMeta); err != nil {
		return uuid.Nil, err
	}
	m := models.VariantModelFromDomain(v)
	return s.upsert(ctx, "variants", m, &m.SyncedModel, models.VariantColumns)
}

// UpsertOrder writes the order row only; line items are written separately
func (s *GormEntityStore) UpsertOrder(ctx context.Context, o *integration.Order) (uuid.UUID, error) {
	if err := s.checkMeta(&o.SyncMeta); err != nil {
		return uuid.Nil, err
	}
	m := models.OrderModelFromDomain(o)
	return s.upsert(ctx, "orders", m, &m.SyncedModel, models.OrderColumns)
}

// UpsertLineItem writes a line item under an already persisted order
func (s *GormEntityStore) UpsertLineItem(ctx context.Context, li *integration.LineItem) (uuid.UUID, error) {
	if li.OrderLocalID == uuid.Nil {
		return uuid.Nil, integration.ErrParentNotPersisted
	}
	if err := s.checkMeta(&li.SyncMeta); err != nil {
		return uuid.Nil, err
	}
	m := models.LineItemModelFromDomain(li)
	return s.upsert(ctx, "line_items", m, &m.SyncedModel, models.LineItemColumns)
}

// UpsertCustomer writes a customer row
func (s *GormEntityStore) UpsertCustomer(ctx context.Context, c *integration.Customer) (uuid.UUID, error) {
	if err := s.checkMeta(&c.SyncMeta); err != nil {
		return uuid.Nil, err
	}
	m := models.CustomerModelFromDomain(c)
	return s.upsert(ctx, "customers", m, &m.SyncedModel, models.CustomerColumns)
}

// SoftDeleteProduct flags the product and its variants
func (s *GormEntityStore) SoftDeleteProduct(ctx context.Context, tenantID uuid.UUID, upstreamID string) (bool, error) {
	return s.softDelete(ctx, "products", "variants", "product_local_id", tenantID, upstreamID)
}

// SoftDeleteOrder flags the order and its line items
func (s *GormEntityStore) SoftDeleteOrder(ctx context.Context, tenantID uuid.UUID, upstreamID string) (bool, error) {
	return s.softDelete(ctx, "orders", "line_items", "order_local_id", tenantID, upstreamID)
}

// SoftDeleteCustomer flags the customer
func (s *GormEntityStore) SoftDeleteCustomer(ctx context.Context, tenantID uuid.UUID, upstreamID string) (bool, error) {
	return s.softDelete(ctx, "customers", "", "", tenantID, upstreamID)
}

func (s *GormEntityStore) checkMeta(meta *integration.SyncMeta) error {
	if meta.TenantID == uuid.Nil || meta.UpstreamID == "" {
		return integration.ErrInvalidUpstreamID
	}
	meta.SyncedAt = s.now()
	return nil
}

// staleGuard keeps the stored row when it carries a newer upstream timestamp.
// A soft-deleted row is only revived by a strictly newer version, so a page
// read before the delete cannot undo it.
func staleGuard(table string) clause.Expression {
	return clause.Expr{SQL: fmt.Sprintf(
		"((NOT %[1]s.is_deleted AND (%[1]s.source_updated_at IS NULL OR excluded.source_updated_at IS NULL OR %[1]s.source_updated_at <= excluded.source_updated_at))"+
			" OR (%[1]s.is_deleted AND %[1]s.source_updated_at < excluded.source_updated_at))",
		table,
	)}
}

// upsertClause builds the conflict clause for one synced table
func upsertClause(table string, columns []string) clause.OnConflict {
	assignments := make([]string, 0, len(columns)+len(models.SyncedColumns))
	assignments = append(assignments, columns...)
	assignments = append(assignments, models.SyncedColumns...)

	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "upstream_id"}},
		DoUpdates: clause.AssignmentColumns(assignments),
		Where:     clause.Where{Exprs: []clause.Expression{staleGuard(table)}},
	}
}

func (s *GormEntityStore) upsert(ctx context.Context, table string, model any, meta *models.SyncedModel, columns []string) (uuid.UUID, error) {
	if err := s.db.WithContext(ctx).Clauses(upsertClause(table, columns)).Create(model).Error; err != nil {
		return uuid.Nil, err
	}

	// The generated id is discarded on conflict; read back the surviving row.
	return s.localID(ctx, s.db, table, meta.TenantID, meta.UpstreamID)
}

func (s *GormEntityStore) localID(ctx context.Context, db *gorm.DB, table string, tenantID uuid.UUID, upstreamID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.WithContext(ctx).
		Table(table).
		Select("local_id").
		Where("tenant_id = ? AND upstream_id = ?", tenantID, upstreamID).
		Row().
		Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *GormEntityStore) softDelete(ctx context.Context, table, childTable, childFK string, tenantID uuid.UUID, upstreamID string) (bool, error) {
	if upstreamID == "" {
		return false, integration.ErrInvalidUpstreamID
	}
	found := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := s.localID(ctx, tx, table, tenantID, upstreamID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true

		now := s.now()
		flags := map[string]any{"is_deleted": true, "synced_at": now}
		if err := tx.Table(table).Where("local_id = ?", id).Updates(flags).Error; err != nil {
			return err
		}
		if childTable == "" {
			return nil
		}
		return tx.Table(childTable).
			Where("tenant_id = ? AND "+childFK+" = ?", tenantID, id).
			Updates(flags).Error
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func (s *GormEntityStore) scoped(ctx context.Context, model any, tenantID uuid.UUID, filter integration.ListFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(model).Where("tenant_id = ?", tenantID)
	if !filter.IncludeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	return q
}

func paginate(q *gorm.DB, filter integration.ListFilter) *gorm.DB {
	if filter.PageSize > 0 {
		q = q.Limit(filter.PageSize).Offset(filter.Offset())
	}
	return q.Order("synced_at DESC").Order("local_id ASC")
}

// ListProducts pages through a tenant's products (without variants)
func (s *GormEntityStore) ListProducts(ctx context.Context, tenantID uuid.UUID, filter integration.ListFilter) ([]integration.Product, int64, error) {
	var total int64
	if err := s.scoped(ctx, &models.ProductModel{}, tenantID, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.ProductModel
	if err := paginate(s.scoped(ctx, &models.ProductModel{}, tenantID, filter), filter).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]integration.Product, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, total, nil
}

// GetProduct returns a product with its variants. Deleted rows are returned
// with IsDeleted set.
func (s *GormEntityStore) GetProduct(ctx context.Context, tenantID, localID uuid.UUID) (*integration.Product, error) {
	var row models.ProductModel
	err := s.db.WithContext(ctx).Where("tenant_id = ? AND local_id = ?", tenantID, localID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &integration.NotFoundError{Resource: "product", Key: localID.String()}
		}
		return nil, err
	}

	var variants []models.VariantModel
	err = s.db.WithContext(ctx).
		Where("tenant_id = ? AND product_local_id = ?", tenantID, localID).
		Order("upstream_id ASC").
		Find(&variants).Error
	if err != nil {
		return nil, err
	}

	p := row.ToDomain()
	p.Variants = make([]integration.Variant, 0, len(variants))
	for i := range variants {
		p.Variants = append(p.Variants, variants[i].ToDomain())
	}
	return p, nil
}

// ListOrders pages through a tenant's orders (without line items)
func (s *GormEntityStore) ListOrders(ctx context.Context, tenantID uuid.UUID, filter integration.ListFilter) ([]integration.Order, int64, error) {
	var total int64
	if err := s.scoped(ctx, &models.OrderModel{}, tenantID, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.OrderModel
	if err := paginate(s.scoped(ctx, &models.OrderModel{}, tenantID, filter), filter).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]integration.Order, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, total, nil
}

// GetOrder returns an order with its line items
func (s *GormEntityStore) GetOrder(ctx context.Context, tenantID, localID uuid.UUID) (*integration.Order, error) {
	var row models.OrderModel
	err := s.db.WithContext(ctx).Where("tenant_id = ? AND local_id = ?", tenantID, localID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &integration.NotFoundError{Resource: "order", Key: localID.String()}
		}
		return nil, err
	}

	var items []models.LineItemModel
	err = s.db.WithContext(ctx).
		Where("tenant_id = ? AND order_local_id = ?", tenantID, localID).
		Order("upstream_id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	o := row.ToDomain()
	o.LineItems = make([]integration.LineItem, 0, len(items))
	for i := range items {
		o.LineItems = append(o.LineItems, items[i].ToDomain())
	}
	return o, nil
}

// ListCustomers pages through a tenant's customers
func (s *GormEntityStore) ListCustomers(ctx context.Context, tenantID uuid.UUID, filter integration.ListFilter) ([]integration.Customer, int64, error) {
	var total int64
	if err := s.scoped(ctx, &models.CustomerModel{}, tenantID, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.CustomerModel
	if err := paginate(s.scoped(ctx, &models.CustomerModel{}, tenantID, filter), filter).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]integration.Customer, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, total, nil
}

var (
	_ integration.EntityStore  = (*GormEntityStore)(nil)
	_ integration.EntityReader = (*GormEntityStore)(nil)
)
