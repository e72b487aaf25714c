package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/infrastructure/persistence"
	"github.com/storesync/backend/internal/interfaces/http/middleware"
	"github.com/storesync/backend/tests/testutil"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestSystemHandler_Health(t *testing.T) {
	t.Run("database up", func(t *testing.T) {
		h := NewSystemHandler(pingFunc(func(context.Context) error { return nil }), "1.2.3")
		router := gin.New()
		router.GET("/health", h.Health)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "1.2.3", resp.Version)
		assert.NotEmpty(t, resp.GoVersion)
	})

	t.Run("database down", func(t *testing.T) {
		h := NewSystemHandler(pingFunc(func(context.Context) error { return errors.New("connection refused") }), "1.2.3")
		router := gin.New()
		router.GET("/health", h.Health)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"database":"unreachable"`)
	})
}

func TestSystemHandler_HealthReportsPool(t *testing.T) {
	db := &persistence.Database{DB: testutil.NewSQLiteDB(t)}
	h := NewSystemHandler(db, "1.2.3")
	router := gin.New()
	router.GET("/health", h.Health)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Pool)
	assert.Equal(t, 1, resp.Pool.MaxOpenConnections)
	assert.GreaterOrEqual(t, resp.Pool.OpenConnections, resp.Pool.InUse)

	plain := NewSystemHandler(pingFunc(func(context.Context) error { return nil }), "1.2.3")
	router = gin.New()
	router.GET("/health", plain.Health)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotContains(t, w.Body.String(), `"pool"`)
}

func TestSystemHandler_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "storesync_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Add(3)

	h := NewSystemHandler(pingFunc(func(context.Context) error { return nil }), "dev")
	router := gin.New()
	router.GET("/metrics", h.Metrics(reg))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "storesync_test_total 3")
}

type MockDueRunner struct {
	mock.Mock
}

func (m *MockDueRunner) RunDue(ctx context.Context) (*integration.DueRunSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.DueRunSummary), args.Error(1)
}

func TestCronHandler_RunDue(t *testing.T) {
	runner := new(MockDueRunner)
	runner.On("RunDue", mock.Anything).Return(&integration.DueRunSummary{
		Due:       3,
		Completed: 1,
		Degraded:  1,
		Skipped:   1,
		Results: []integration.RunResult{
			{RunID: uuid.New(), TenantID: uuid.New(), Domain: "a.myshopify.com", Outcome: integration.SyncStatusCompleted},
			{RunID: uuid.New(), TenantID: uuid.New(), Domain: "b.myshopify.com", Outcome: integration.SyncStatusCompletedWithErrors, ErrorCount: 4},
		},
	}, nil)

	router := gin.New()
	router.POST("/internal/cron/sync", middleware.CronAuth("cron-secret"), NewCronHandler(runner).RunDue)

	req := httptest.NewRequest(http.MethodPost, "/internal/cron/sync", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body["due"])
	assert.Equal(t, float64(1), body["skipped"])
	assert.Len(t, body["runs"], 2)

	req = httptest.NewRequest(http.MethodPost, "/internal/cron/sync", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	runner.AssertNumberOfCalls(t, "RunDue", 1)
}

func TestCronHandler_ListFailure(t *testing.T) {
	runner := new(MockDueRunner)
	runner.On("RunDue", mock.Anything).Return(nil, errors.New("failed to list connected tenants: timeout"))

	router := gin.New()
	router.POST("/cron", NewCronHandler(runner).RunDue)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cron", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
