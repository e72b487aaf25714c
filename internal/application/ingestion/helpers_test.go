package ingestion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/infrastructure/cache"
	"github.com/storesync/backend/internal/infrastructure/persistence"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
	"github.com/storesync/backend/tests/testutil"
)

// fixture wires the ingestion services to an in-memory sqlite store
type fixture struct {
	tenants    *persistence.GormTenantRepository
	store      *persistence.GormEntityStore
	audit      *persistence.GormAuditLog
	locker     *cache.InMemoryTenantLocker
	reconciler *Reconciler
	logger     *zap.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t, models.AllModels()...)
	logger := zaptest.NewLogger(t)
	store := persistence.NewGormEntityStore(db)
	return &fixture{
		tenants:    persistence.NewGormTenantRepository(db, persistence.NewCredentialCipher("test-encryption-key")),
		store:      store,
		audit:      persistence.NewGormAuditLog(db),
		locker:     cache.NewInMemoryTenantLocker(),
		reconciler: NewReconciler(store, logger),
		logger:     logger,
	}
}

func (f *fixture) connectTenant(t *testing.T, domain string) *integration.Tenant {
	t.Helper()
	tenant, err := integration.NewTenant(domain, "shpat_test", "UTC")
	require.NoError(t, err)
	require.NoError(t, f.tenants.Save(context.Background(), tenant))
	return tenant
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *integration.Tenant {
	t.Helper()
	tenant, err := f.tenants.FindByID(context.Background(), id)
	require.NoError(t, err)
	return tenant
}

func (f *fixture) syncErrors(t *testing.T, tenantID uuid.UUID) []integration.SyncError {
	t.Helper()
	errs, err := f.audit.ListSyncErrors(context.Background(), tenantID, 100)
	require.NoError(t, err)
	return errs
}

func (f *fixture) countProducts(t *testing.T, tenantID uuid.UUID) int64 {
	t.Helper()
	_, total, err := f.store.ListProducts(context.Background(), tenantID, integration.ListFilter{IncludeDeleted: true})
	require.NoError(t, err)
	return total
}

// ---------------------------------------------------------------------------
// Record builders
// ---------------------------------------------------------------------------

func updatedAt(hour int) *time.Time {
	t := time.Date(2026, 3, 1, hour, 0, 0, 0, time.UTC)
	return &t
}

func meta(tenantID uuid.UUID, upstreamID string) integration.SyncMeta {
	return integration.SyncMeta{TenantID: tenantID, UpstreamID: upstreamID, SourceUpdatedAt: updatedAt(1)}
}

func testProduct(tenantID uuid.UUID, upstreamID string, variantIDs ...string) integration.Product {
	p := integration.Product{SyncMeta: meta(tenantID, upstreamID), Title: "Product " + upstreamID, Status: "active"}
	for _, vid := range variantIDs {
		p.Variants = append(p.Variants, integration.Variant{
			SyncMeta:          meta(tenantID, vid),
			UpstreamProductID: upstreamID,
			Title:             "Default",
			Price:             decimal.RequireFromString("9.99"),
		})
	}
	return p
}

func testOrder(tenantID uuid.UUID, upstreamID string, lineItemIDs ...string) integration.Order {
	o := integration.Order{
		SyncMeta:   meta(tenantID, upstreamID),
		Name:       "#" + upstreamID,
		Currency:   "EUR",
		TotalPrice: decimal.RequireFromString("19.98"),
	}
	for _, lid := range lineItemIDs {
		o.LineItems = append(o.LineItems, integration.LineItem{
			SyncMeta:        meta(tenantID, lid),
			UpstreamOrderID: upstreamID,
			Quantity:        2,
			Price:           decimal.RequireFromString("9.99"),
		})
	}
	return o
}

func testCustomer(tenantID uuid.UUID, upstreamID string) integration.Customer {
	return integration.Customer{SyncMeta: meta(tenantID, upstreamID), Email: upstreamID + "@example.com", State: "enabled"}
}

// ---------------------------------------------------------------------------
// Fake upstream
// ---------------------------------------------------------------------------

// pagesSpec describes what a fake collection yields: its pages in order,
// then err (if set) in place of the next page. panicOn panics when that
// page number is requested.
type pagesSpec[T any] struct {
	pages   [][]T
	err     error
	panicOn int
}

type fakeIterator[T any] struct {
	spec pagesSpec[T]
	next int
	page integration.Page[T]
	err  error
}

func (it *fakeIterator[T]) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		it.err = err
		return false
	}
	if it.spec.panicOn > 0 && it.next+1 == it.spec.panicOn {
		panic("decoder exploded")
	}
	if it.next >= len(it.spec.pages) {
		it.err = it.spec.err
		return false
	}
	it.page = integration.Page[T]{Number: it.next + 1, Records: it.spec.pages[it.next]}
	it.next++
	return true
}

func (it *fakeIterator[T]) Page() integration.Page[T] { return it.page }
func (it *fakeIterator[T]) Err() error                { return it.err }

// fakeUpstream hands out fresh iterators over fixed pages and records the
// checkpoint each pull was opened with.
type fakeUpstream struct {
	products  pagesSpec[integration.Product]
	orders    pagesSpec[integration.Order]
	customers pagesSpec[integration.Customer]

	mu     sync.Mutex
	sinces []*time.Time
}

func (u *fakeUpstream) observe(since *time.Time) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sinces = append(u.sinces, since)
}

func (u *fakeUpstream) ProductPages(_ *integration.Tenant, since *time.Time) integration.PageIterator[integration.Product] {
	u.observe(since)
	return &fakeIterator[integration.Product]{spec: u.products}
}

func (u *fakeUpstream) OrderPages(_ *integration.Tenant, since *time.Time) integration.PageIterator[integration.Order] {
	u.observe(since)
	return &fakeIterator[integration.Order]{spec: u.orders}
}

func (u *fakeUpstream) CustomerPages(_ *integration.Tenant, since *time.Time) integration.PageIterator[integration.Customer] {
	u.observe(since)
	return &fakeIterator[integration.Customer]{spec: u.customers}
}

func (u *fakeUpstream) lastSince() *time.Time {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.sinces) == 0 {
		return nil
	}
	return u.sinces[len(u.sinces)-1]
}

var _ integration.UpstreamClient = (*fakeUpstream)(nil)
