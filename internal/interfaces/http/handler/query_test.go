package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/storesync/backend/internal/application/ingestion"
	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/interfaces/http/dto"
)

type MockEntityQueries struct {
	mock.Mock
}

func (m *MockEntityQueries) ListProducts(ctx context.Context, tenantID uuid.UUID, f integration.ListFilter) (*ingestion.ListResult[integration.Product], error) {
	args := m.Called(ctx, tenantID, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ingestion.ListResult[integration.Product]), args.Error(1)
}

func (m *MockEntityQueries) GetProduct(ctx context.Context, tenantID, id uuid.UUID) (*integration.Product, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Product), args.Error(1)
}

func (m *MockEntityQueries) ListOrders(ctx context.Context, tenantID uuid.UUID, f integration.ListFilter) (*ingestion.ListResult[integration.Order], error) {
	args := m.Called(ctx, tenantID, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ingestion.ListResult[integration.Order]), args.Error(1)
}

func (m *MockEntityQueries) GetOrder(ctx context.Context, tenantID, id uuid.UUID) (*integration.Order, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Order), args.Error(1)
}

func (m *MockEntityQueries) ListCustomers(ctx context.Context, tenantID uuid.UUID, f integration.ListFilter) (*ingestion.ListResult[integration.Customer], error) {
	args := m.Called(ctx, tenantID, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ingestion.ListResult[integration.Customer]), args.Error(1)
}

func (m *MockEntityQueries) WebhookEvents(ctx context.Context, tenantID uuid.UUID, limit int) ([]integration.WebhookEvent, error) {
	args := m.Called(ctx, tenantID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.WebhookEvent), args.Error(1)
}

func queryRouter(tenant *integration.Tenant, q EntityQueries) *gin.Engine {
	h := NewQueryHandler(q)
	router := gin.New()
	api := router.Group("/api/v1", withTenant(tenant))
	api.GET("/products", h.ListProducts)
	api.GET("/products/:id", h.GetProduct)
	api.GET("/orders", h.ListOrders)
	api.GET("/orders/:id", h.GetOrder)
	api.GET("/customers", h.ListCustomers)
	api.GET("/webhook-events", h.WebhookEvents)
	return router
}

func TestQueryHandler_ListProducts(t *testing.T) {
	tenant := newTestTenant(t)
	q := new(MockEntityQueries)
	q.On("ListProducts", mock.Anything, tenant.ID, integration.ListFilter{Page: 2, PageSize: 1, IncludeDeleted: true}).
		Return(&ingestion.ListResult[integration.Product]{
			Items:    []integration.Product{{SyncMeta: integration.SyncMeta{LocalID: uuid.New(), UpstreamID: "632910392"}, Title: "IPod Nano"}},
			Total:    3,
			Page:     2,
			PageSize: 1,
		}, nil)

	w := httptest.NewRecorder()
	queryRouter(tenant, q).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/products?page=2&page_size=1&include_deleted=true", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.ListResponse[dto.ProductResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "IPod Nano", resp.Items[0].Title)
	assert.Equal(t, int64(3), resp.Total)
	assert.Equal(t, 3, resp.TotalPages)
	q.AssertExpectations(t)
}

func TestQueryHandler_ListRejectsBadPaging(t *testing.T) {
	tenant := newTestTenant(t)
	q := new(MockEntityQueries)

	for _, path := range []string{"/api/v1/orders?page=-1", "/api/v1/customers?page_size=500", "/api/v1/products?page=abc"} {
		w := httptest.NewRecorder()
		queryRouter(tenant, q).ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
	q.AssertNotCalled(t, "ListOrders", mock.Anything, mock.Anything, mock.Anything)
}

func TestQueryHandler_GetProduct(t *testing.T) {
	tenant := newTestTenant(t)
	id := uuid.New()
	q := new(MockEntityQueries)
	q.On("GetProduct", mock.Anything, tenant.ID, id).Return(&integration.Product{
		SyncMeta: integration.SyncMeta{LocalID: id, UpstreamID: "1"},
		Title:    "Mug",
		Variants: []integration.Variant{
			{SyncMeta: integration.SyncMeta{LocalID: uuid.New(), UpstreamID: "11"}, SKU: "MUG-1", Price: decimal.RequireFromString("9.50")},
		},
	}, nil)
	missing := uuid.New()
	q.On("GetProduct", mock.Anything, tenant.ID, missing).Return(nil, integration.ErrEntityNotFound)

	w := httptest.NewRecorder()
	queryRouter(tenant, q).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/products/"+id.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.ProductResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Variants, 1)
	assert.Equal(t, "MUG-1", resp.Variants[0].SKU)

	w = httptest.NewRecorder()
	queryRouter(tenant, q).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/products/"+missing.String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	queryRouter(tenant, q).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/products/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryHandler_GetOrder(t *testing.T) {
	tenant := newTestTenant(t)
	id := uuid.New()
	q := new(MockEntityQueries)
	q.On("GetOrder", mock.Anything, tenant.ID, id).Return(&integration.Order{
		SyncMeta:  integration.SyncMeta{LocalID: id, UpstreamID: "450789469"},
		Name:      "#1001",
		LineItems: []integration.LineItem{{SyncMeta: integration.SyncMeta{UpstreamID: "466157049"}, Quantity: 1}},
	}, nil)

	w := httptest.NewRecorder()
	queryRouter(tenant, q).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+id.String(), nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"line_items"`)
	assert.Contains(t, w.Body.String(), `"466157049"`)
}

func TestQueryHandler_ListCustomersAndEvents(t *testing.T) {
	tenant := newTestTenant(t)
	q := new(MockEntityQueries)
	q.On("ListCustomers", mock.Anything, tenant.ID, integration.ListFilter{}).
		Return(&ingestion.ListResult[integration.Customer]{Page: 1, PageSize: 50}, nil)
	q.On("WebhookEvents", mock.Anything, tenant.ID, 0).Return([]integration.WebhookEvent{
		{ID: uuid.New(), Topic: "app/uninstalled", Status: integration.WebhookEventProcessed, Payload: []byte(`{}`)},
	}, nil)

	w := httptest.NewRecorder()
	queryRouter(tenant, q).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/customers", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"items":[]`)

	w = httptest.NewRecorder()
	queryRouter(tenant, q).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/webhook-events", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"topic":"app/uninstalled"`)
	q.AssertExpectations(t)
}
