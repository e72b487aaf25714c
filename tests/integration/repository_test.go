package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/infrastructure/persistence"
)

const credentialKey = "integration-credential-key"

func at(hour int) *time.Time {
	ts := time.Date(2024, 5, 1, hour, 0, 0, 0, time.UTC)
	return &ts
}

func TestTenantRepository_CredentialSealedAtRest(t *testing.T) {
	tdb := NewTestDB(t)
	repo := persistence.NewGormTenantRepository(tdb.DB, persistence.NewCredentialCipher(credentialKey))
	ctx := context.Background()

	tenant := tdb.CreateTenant(repo, "Acme.myshopify.com", "shpat_secret")

	var stored string
	require.NoError(t, tdb.DB.Raw("SELECT access_credential FROM tenants WHERE id = ?", tenant.ID).Scan(&stored).Error)
	assert.NotEmpty(t, stored)
	assert.NotContains(t, stored, "shpat_secret")

	loaded, err := repo.FindByDomain(ctx, "acme.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, loaded.ID)
	assert.Equal(t, "shpat_secret", loaded.AccessCredential)
	assert.Equal(t, integration.SyncStatusIdle, loaded.SyncStatus)

	_, err = repo.FindByDomain(ctx, "missing.myshopify.com")
	assert.ErrorIs(t, err, integration.ErrTenantNotFound)
}

func TestTenantRepository_FindConnected(t *testing.T) {
	tdb := NewTestDB(t)
	repo := persistence.NewGormTenantRepository(tdb.DB, persistence.NewCredentialCipher(credentialKey))
	ctx := context.Background()

	active := tdb.CreateTenant(repo, "active.myshopify.com", "token-a")
	gone := tdb.CreateTenant(repo, "gone.myshopify.com", "token-b")

	gone.Disconnect(time.Now().UTC())
	require.NoError(t, repo.Save(ctx, gone))

	connected, err := repo.FindConnected(ctx)
	require.NoError(t, err)
	require.Len(t, connected, 1)
	assert.Equal(t, active.ID, connected[0].ID)

	reloaded, err := repo.FindByID(ctx, gone.ID)
	require.NoError(t, err)
	assert.NotNil(t, reloaded.DisconnectedAt)
	assert.Empty(t, reloaded.AccessCredential)
}

func TestTenantRepository_SyncStateRoundTrip(t *testing.T) {
	tdb := NewTestDB(t)
	repo := persistence.NewGormTenantRepository(tdb.DB, persistence.NewCredentialCipher(""))
	ctx := context.Background()

	tenant := tdb.CreateTenant(repo, "state.myshopify.com", "token")
	start := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, tenant.StartSync(start))
	require.NoError(t, repo.Save(ctx, tenant))
	require.NoError(t, tenant.FinishSync(start.Add(time.Minute), integration.SyncStatusCompletedWithErrors, 2))
	require.NoError(t, repo.Save(ctx, tenant))

	loaded, err := repo.FindByID(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.SyncStatusCompletedWithErrors, loaded.SyncStatus)
	assert.Equal(t, 2, loaded.LastRunErrorCount)
	require.NotNil(t, loaded.SyncFinishedAt)
	assert.Nil(t, loaded.SyncCheckpointAt, "a degraded run keeps the previous checkpoint")
}

func TestEntityStore_UpsertIsIdempotentAndStaleSafe(t *testing.T) {
	tdb := NewTestDB(t)
	repo := persistence.NewGormTenantRepository(tdb.DB, persistence.NewCredentialCipher(""))
	store := persistence.NewGormEntityStore(tdb.DB)
	ctx := context.Background()

	tenant := tdb.CreateTenant(repo, "upsert.myshopify.com", "token")

	product := integration.Product{
		SyncMeta: integration.SyncMeta{TenantID: tenant.ID, UpstreamID: "1001", SourceUpdatedAt: at(10)},
		Title:    "Original",
		Status:   "active",
	}
	firstID, err := store.UpsertProduct(ctx, &product)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, firstID)

	product.Title = "Renamed"
	product.SourceUpdatedAt = at(12)
	secondID, err := store.UpsertProduct(ctx, &product)
	require.NoError(t, err)
	assert.Equal(t, firstID, secondID, "local id must survive a conflicting upsert")
	assert.Equal(t, int64(1), tdb.Count("products", "tenant_id = ?", tenant.ID))

	stale := product
	stale.Title = "Stale"
	stale.SourceUpdatedAt = at(11)
	_, err = store.UpsertProduct(ctx, &stale)
	require.NoError(t, err)

	loaded, err := store.GetProduct(ctx, tenant.ID, firstID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", loaded.Title)
}

func TestEntityStore_SoftDeleteCascadesToChildren(t *testing.T) {
	tdb := NewTestDB(t)
	repo := persistence.NewGormTenantRepository(tdb.DB, persistence.NewCredentialCipher(""))
	store := persistence.NewGormEntityStore(tdb.DB)
	ctx := context.Background()

	tenant := tdb.CreateTenant(repo, "delete.myshopify.com", "token")

	productID, err := store.UpsertProduct(ctx, &integration.Product{
		SyncMeta: integration.SyncMeta{TenantID: tenant.ID, UpstreamID: "2001"},
		Title:    "Boots",
	})
	require.NoError(t, err)
	_, err = store.UpsertVariant(ctx, &integration.Variant{
		SyncMeta:          integration.SyncMeta{TenantID: tenant.ID, UpstreamID: "3001"},
		ProductLocalID:    productID,
		UpstreamProductID: "2001",
		Title:             "Size 42",
		Price:             decimal.RequireFromString("89.90"),
	})
	require.NoError(t, err)

	found, err := store.SoftDeleteProduct(ctx, tenant.ID, "2001")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(1), tdb.Count("variants", "product_local_id = ? AND is_deleted", productID))

	// replaying the pre-delete snapshot keeps the tombstone
	_, err = store.UpsertProduct(ctx, &integration.Product{
		SyncMeta: integration.SyncMeta{TenantID: tenant.ID, UpstreamID: "2001"},
		Title:    "Boots",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), tdb.Count("products", "local_id = ? AND is_deleted", productID))

	found, err = store.SoftDeleteProduct(ctx, tenant.ID, "9999")
	require.NoError(t, err)
	assert.False(t, found)

	visible, total, err := store.ListProducts(ctx, tenant.ID, integration.ListFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, visible)
	assert.Zero(t, total)

	all, total, err := store.ListProducts(ctx, tenant.ID, integration.ListFilter{Page: 1, PageSize: 10, IncludeDeleted: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsDeleted)
}

func TestEntityStore_TenantIsolation(t *testing.T) {
	tdb := NewTestDB(t)
	repo := persistence.NewGormTenantRepository(tdb.DB, persistence.NewCredentialCipher(""))
	store := persistence.NewGormEntityStore(tdb.DB)
	ctx := context.Background()

	a := tdb.CreateTenant(repo, "a.myshopify.com", "token-a")
	b := tdb.CreateTenant(repo, "b.myshopify.com", "token-b")

	// the same upstream id under two tenants is two rows
	idA, err := store.UpsertCustomer(ctx, &integration.Customer{
		SyncMeta: integration.SyncMeta{TenantID: a.ID, UpstreamID: "555"},
		Email:    "a@example.com",
	})
	require.NoError(t, err)
	idB, err := store.UpsertCustomer(ctx, &integration.Customer{
		SyncMeta: integration.SyncMeta{TenantID: b.ID, UpstreamID: "555"},
		Email:    "b@example.com",
	})
	require.NoError(t, err)
	assert.NotEqual(t, idA, idB)

	customers, total, err := store.ListCustomers(ctx, a.ID, integration.ListFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, customers, 1)
	assert.Equal(t, "a@example.com", customers[0].Email)

	orderID, err := store.UpsertOrder(ctx, &integration.Order{
		SyncMeta:   integration.SyncMeta{TenantID: a.ID, UpstreamID: "700"},
		Name:       "#1001",
		TotalPrice: decimal.RequireFromString("10.00"),
	})
	require.NoError(t, err)
	_, err = store.GetOrder(ctx, b.ID, orderID)
	assert.ErrorIs(t, err, integration.ErrEntityNotFound)
}

func TestAuditLog_SyncErrorsAndWebhookEvents(t *testing.T) {
	tdb := NewTestDB(t)
	repo := persistence.NewGormTenantRepository(tdb.DB, persistence.NewCredentialCipher(""))
	audit := persistence.NewGormAuditLog(tdb.DB)
	ctx := context.Background()

	tenant := tdb.CreateTenant(repo, "audit.myshopify.com", "token")
	runID := uuid.New()

	require.NoError(t, audit.RecordSyncError(ctx,
		integration.NewSyncError(tenant.ID, runID, "product", integration.SyncPhaseFetch, assert.AnError)))
	require.NoError(t, audit.RecordSyncError(ctx,
		integration.NewSyncError(tenant.ID, runID, "order", integration.SyncPhaseUpsert, assert.AnError)))

	count, err := audit.CountSyncErrors(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	errs, err := audit.ListSyncErrors(ctx, tenant.ID, 1)
	require.NoError(t, err)
	assert.Len(t, errs, 1)

	require.NoError(t, audit.RecordWebhookEvent(ctx, &integration.WebhookEvent{
		ID:         uuid.New(),
		TenantID:   tenant.ID,
		Topic:      "products/update",
		Payload:    []byte(`{"id":1}`),
		Status:     integration.WebhookEventProcessed,
		ReceivedAt: time.Now().UTC(),
	}))
	events, err := audit.ListWebhookEvents(ctx, tenant.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"id":1}`, string(events[0].Payload))
}
