package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storesync/backend/internal/domain/integration"
)

func productWorker(f *fixture, up *fakeUpstream) EntityWorker {
	return NewEntityWorkers(up, f.reconciler, f.audit, nil, f.logger)[0]
}

func phases(errs []integration.SyncError) []integration.SyncPhase {
	out := make([]integration.SyncPhase, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Phase)
	}
	return out
}

func TestNewEntityWorkers_RunOrder(t *testing.T) {
	f := newFixture(t)
	workers := NewEntityWorkers(&fakeUpstream{}, f.reconciler, f.audit, nil, f.logger)

	var got []integration.EntityType
	for _, w := range workers {
		got = append(got, w.Entity())
	}
	assert.Equal(t, integration.RootEntityTypes(), got)
}

func TestDeltaSyncWorker_WalksEveryPage(t *testing.T) {
	f := newFixture(t)
	tenant := f.connectTenant(t, "walk.myshopify.com")
	up := &fakeUpstream{products: pagesSpec[integration.Product]{pages: [][]integration.Product{
		{testProduct(tenant.ID, "1", "11"), testProduct(tenant.ID, "2", "21")},
		{testProduct(tenant.ID, "3")},
	}}}

	result := productWorker(f, up).Run(context.Background(), tenant, uuid.New())

	assert.Equal(t, integration.EntityProduct, result.Entity)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 3, result.SyncedCount)
	assert.Zero(t, result.FailedCount)
	assert.False(t, result.Halted)
	assert.Empty(t, result.Errors)
	assert.Equal(t, int64(3), f.countProducts(t, tenant.ID))
	assert.Empty(t, f.syncErrors(t, tenant.ID))
}

func TestDeltaSyncWorker_FetchFailureHaltsPagination(t *testing.T) {
	f := newFixture(t)
	tenant := f.connectTenant(t, "halt.myshopify.com")
	fetchErr := &integration.UpstreamFetchError{URL: "https://halt.myshopify.com/admin/api/2024-10/products.json", StatusCode: 500}
	up := &fakeUpstream{products: pagesSpec[integration.Product]{
		pages: [][]integration.Product{{testProduct(tenant.ID, "1")}},
		err:   fetchErr,
	}}
	runID := uuid.New()

	result := productWorker(f, up).Run(context.Background(), tenant, runID)

	assert.True(t, result.Halted)
	assert.True(t, result.MadeProgress())
	assert.Equal(t, 1, result.SyncedCount)
	require.Len(t, result.Errors, 1)
	assert.ErrorAs(t, result.Errors[0], &fetchErr)

	recorded := f.syncErrors(t, tenant.ID)
	require.Len(t, recorded, 1)
	assert.Equal(t, integration.SyncPhaseFetch, recorded[0].Phase)
	assert.Equal(t, runID, recorded[0].RunID)
	assert.Equal(t, "product", recorded[0].Worker)
	assert.Equal(t, int64(1), f.countProducts(t, tenant.ID), "records before the failed page are kept")
}

func TestDeltaSyncWorker_UpsertFailuresDoNotStopThePage(t *testing.T) {
	f := newFixture(t)
	tenant := f.connectTenant(t, "partial.myshopify.com")
	up := &fakeUpstream{products: pagesSpec[integration.Product]{pages: [][]integration.Product{{
		testProduct(tenant.ID, "1"),
		testProduct(tenant.ID, ""), // no upstream id
		testProduct(tenant.ID, "3", "31", ""),
	}}}}

	result := productWorker(f, up).Run(context.Background(), tenant, uuid.New())

	assert.False(t, result.Halted)
	assert.Equal(t, 2, result.SyncedCount)
	assert.Equal(t, 2, result.FailedCount)
	assert.Equal(t, 2, result.ErrorCount())
	for _, err := range result.Errors {
		assert.ErrorIs(t, err, integration.ErrInvalidUpstreamID)
	}
	assert.Equal(t, []integration.SyncPhase{integration.SyncPhaseUpsert, integration.SyncPhaseUpsert}, phases(f.syncErrors(t, tenant.ID)))
	assert.Equal(t, int64(2), f.countProducts(t, tenant.ID))
}

func TestDeltaSyncWorker_RecoversFromPanic(t *testing.T) {
	f := newFixture(t)
	tenant := f.connectTenant(t, "panic.myshopify.com")
	up := &fakeUpstream{products: pagesSpec[integration.Product]{
		pages:   [][]integration.Product{{testProduct(tenant.ID, "1")}},
		panicOn: 2,
	}}

	var result integration.WorkerResult
	require.NotPanics(t, func() {
		result = productWorker(f, up).Run(context.Background(), tenant, uuid.New())
	})

	assert.True(t, result.Halted)
	require.Error(t, result.TopLevel)
	assert.Contains(t, result.TopLevel.Error(), "decoder exploded")
	assert.Equal(t, 1, result.SyncedCount)
	assert.Equal(t, []integration.SyncPhase{integration.SyncPhaseTopLevel}, phases(f.syncErrors(t, tenant.ID)))
}

func TestDeltaSyncWorker_CancelledContextIsRecorded(t *testing.T) {
	f := newFixture(t)
	tenant := f.connectTenant(t, "deadline.myshopify.com")
	up := &fakeUpstream{products: pagesSpec[integration.Product]{
		pages: [][]integration.Product{{testProduct(tenant.ID, "1")}},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := productWorker(f, up).Run(ctx, tenant, uuid.New())

	assert.True(t, result.Halted)
	assert.False(t, result.MadeProgress())
	require.Len(t, result.Errors, 1)
	assert.True(t, errors.Is(result.Errors[0], context.Canceled))
	assert.Equal(t, []integration.SyncPhase{integration.SyncPhaseFetch}, phases(f.syncErrors(t, tenant.ID)),
		"the error is written even though the run context is gone")
}

func TestDeltaSyncWorker_PassesCheckpoint(t *testing.T) {
	f := newFixture(t)
	tenant := f.connectTenant(t, "since.myshopify.com")
	tenant.SyncCheckpointAt = updatedAt(6)
	up := &fakeUpstream{}

	productWorker(f, up).Run(context.Background(), tenant, uuid.New())

	require.NotNil(t, up.lastSince())
	assert.True(t, up.lastSince().Equal(*updatedAt(6)))
}
