package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/application/ingestion"
	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/infrastructure/cache"
	"github.com/storesync/backend/internal/infrastructure/ecommerce"
	"github.com/storesync/backend/internal/infrastructure/persistence"
	"github.com/storesync/backend/internal/infrastructure/telemetry"
)

const shopToken = "shpat_integration"

// fakeShop serves the three collections the workers pull. Products span two
// pages linked through the Link header.
type fakeShop struct {
	mu            sync.Mutex
	failCustomers bool
	queries       map[string][]string // collection -> raw queries seen
}

func (f *fakeShop) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	prefix := "/admin/api/" + ecommerce.DefaultShopifyAPIVersion

	mux.HandleFunc(prefix+"/products.json", func(w http.ResponseWriter, r *http.Request) {
		f.record("products", r)
		if r.URL.Query().Get("page_info") == "" {
			next := fmt.Sprintf("http://%s%s/products.json?limit=250&page_info=p2", r.Host, prefix)
			w.Header().Set("Link", fmt.Sprintf(`<%s>; rel="next"`, next))
			writeJSON(t, w, `{"products":[{"id":101,"title":"Mug","status":"active","updated_at":"2024-05-01T10:00:00Z","variants":[]}]}`)
			return
		}
		writeJSON(t, w, `{"products":[{"id":102,"title":"Shirt","status":"active","updated_at":"2024-05-01T11:00:00Z",
			"variants":[{"id":201,"product_id":102,"title":"M","sku":"SH-M","price":"19.90","inventory_quantity":4}]}]}`)
	})
	mux.HandleFunc(prefix+"/orders.json", func(w http.ResponseWriter, r *http.Request) {
		f.record("orders", r)
		writeJSON(t, w, `{"orders":[{"id":301,"name":"#1001","currency":"EUR","total_price":"39.80",
			"customer":{"id":401},
			"line_items":[{"id":501,"product_id":102,"variant_id":201,"title":"Shirt","quantity":2,"price":"19.90"}]}]}`)
	})
	mux.HandleFunc(prefix+"/customers.json", func(w http.ResponseWriter, r *http.Request) {
		f.record("customers", r)
		f.mu.Lock()
		fail := f.failCustomers
		f.mu.Unlock()
		if fail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		writeJSON(t, w, `{"customers":[{"id":401,"email":"jane@example.com","first_name":"Jane","orders_count":1,"total_spent":"39.80"}]}`)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(ecommerce.ShopifyAccessTokenHeader) != shopToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func (f *fakeShop) record(collection string, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries[collection] = append(f.queries[collection], r.URL.RawQuery)
}

func (f *fakeShop) seen(collection string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries[collection]...)
}

func writeJSON(t *testing.T, w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, err := w.Write([]byte(body))
	if err != nil {
		t.Errorf("write response: %v", err)
	}
}

type syncFixture struct {
	tdb     *TestDB
	shop    *fakeShop
	tenants *persistence.GormTenantRepository
	sync    *ingestion.SyncService
	tenant  *integration.Tenant
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	tdb := NewTestDB(t)

	shop := &fakeShop{queries: map[string][]string{}}
	srv := httptest.NewServer(shop.handler(t))
	t.Cleanup(srv.Close)

	cfg := ecommerce.NewShopifyConfig("key", "secret")
	cfg.Scheme = "http"
	client, err := ecommerce.NewShopifyClient(cfg, zap.NewNop())
	require.NoError(t, err)

	log := zap.NewNop()
	metrics := telemetry.NewSyncMetrics(prometheus.NewRegistry())
	tenants := persistence.NewGormTenantRepository(tdb.DB, persistence.NewCredentialCipher(credentialKey))
	store := persistence.NewGormEntityStore(tdb.DB)
	audit := persistence.NewGormAuditLog(tdb.DB)

	workers := ingestion.NewEntityWorkers(client, ingestion.NewReconciler(store, log), audit, metrics, log)
	svc := ingestion.NewSyncService(tenants, cache.NewInMemoryTenantLocker(), audit, workers,
		ingestion.DefaultSyncServiceConfig(), metrics, log)

	tenant := tdb.CreateTenant(tenants, strings.TrimPrefix(srv.URL, "http://"), shopToken)

	return &syncFixture{tdb: tdb, shop: shop, tenants: tenants, sync: svc, tenant: tenant}
}

func TestSyncFlow_FullThenDelta(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	result, err := f.sync.RunTenant(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.SyncStatusCompleted, result.Outcome)
	assert.Zero(t, result.ErrorCount)
	require.Len(t, result.Workers, 3)

	assert.Equal(t, int64(2), f.tdb.Count("products", "tenant_id = ?", f.tenant.ID))
	assert.Equal(t, int64(1), f.tdb.Count("variants", "tenant_id = ?", f.tenant.ID))
	assert.Equal(t, int64(1), f.tdb.Count("orders", "tenant_id = ?", f.tenant.ID))
	assert.Equal(t, int64(1), f.tdb.Count("line_items", "tenant_id = ?", f.tenant.ID))
	assert.Equal(t, int64(1), f.tdb.Count("customers", "tenant_id = ?", f.tenant.ID))

	products := f.shop.seen("products")
	require.Len(t, products, 2, "both product pages are followed")
	assert.NotContains(t, products[0], "updated_at_min")
	assert.Contains(t, products[1], "page_info=p2")
	assert.Contains(t, f.shop.seen("orders")[0], "status=any")

	stored, err := f.tenants.FindByID(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.SyncStatusCompleted, stored.SyncStatus)
	require.NotNil(t, stored.SyncCheckpointAt)

	// second run pulls from the checkpoint and upserts in place
	_, err = f.sync.RunTenant(ctx, f.tenant.ID)
	require.NoError(t, err)
	products = f.shop.seen("products")
	require.Len(t, products, 4)
	assert.Contains(t, products[2], "updated_at_min=")
	assert.Equal(t, int64(2), f.tdb.Count("products", "tenant_id = ?", f.tenant.ID))
}

func TestSyncFlow_WorkerFailureIsIsolated(t *testing.T) {
	f := newSyncFixture(t)
	f.shop.failCustomers = true
	ctx := context.Background()

	result, err := f.sync.RunTenant(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.SyncStatusCompletedWithErrors, result.Outcome)
	assert.Equal(t, 1, result.ErrorCount)

	// products and orders still landed
	assert.Equal(t, int64(2), f.tdb.Count("products", "tenant_id = ?", f.tenant.ID))
	assert.Equal(t, int64(1), f.tdb.Count("orders", "tenant_id = ?", f.tenant.ID))
	assert.Zero(t, f.tdb.Count("customers", "tenant_id = ?", f.tenant.ID))

	assert.Equal(t, int64(1), f.tdb.Count("sync_errors", "run_id = ? AND worker = ? AND phase = ?",
		result.RunID, "customer", string(integration.SyncPhaseFetch)))

	stored, err := f.tenants.FindByID(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.SyncStatusCompletedWithErrors, stored.SyncStatus)
	assert.Nil(t, stored.SyncCheckpointAt)
}

func TestSyncFlow_DisconnectedTenantIsNotRun(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	f.tenant.Disconnect(f.tenant.UpdatedAt)
	require.NoError(t, f.tenants.Save(ctx, f.tenant))

	_, err := f.sync.RunTenant(ctx, f.tenant.ID)
	require.ErrorIs(t, err, integration.ErrTenantDisconnected)
	assert.Empty(t, f.shop.seen("products"))
}
