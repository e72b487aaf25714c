package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/storesync/backend/internal/application/ingestion"
	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/infrastructure/ecommerce"
	"github.com/storesync/backend/internal/interfaces/http/dto"
	"github.com/storesync/backend/internal/interfaces/http/middleware"
)

type MockWebhookProcessor struct {
	mock.Mock
}

func (m *MockWebhookProcessor) Handle(ctx context.Context, req ingestion.WebhookRequest) (*ingestion.WebhookResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ingestion.WebhookResult), args.Error(1)
}

func webhookRouter(p WebhookProcessor, maxBody int64) *gin.Engine {
	router := gin.New()
	router.POST("/webhooks/:resource/:action", middleware.BodyLimit(maxBody), NewWebhookHandler(p).Receive)
	return router
}

func TestWebhookHandler_Receive(t *testing.T) {
	body := []byte(`{"id":632910392,"title":"IPod Nano"}`)
	eventID := uuid.New()

	processor := new(MockWebhookProcessor)
	processor.On("Handle", mock.Anything, ingestion.WebhookRequest{
		Route:      "products/update",
		Topic:      "products/update",
		Domain:     "acme.myshopify.com",
		DeliveryID: "d-1",
		Signature:  "sig",
		Body:       body,
	}).Return(&ingestion.WebhookResult{
		EventID: eventID,
		Topic:   "products/update",
		Status:  integration.WebhookEventProcessed,
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/products/update", bytes.NewReader(body))
	req.Header.Set(ecommerce.HeaderWebhookHMAC, "sig")
	req.Header.Set(ecommerce.HeaderWebhookDomain, "acme.myshopify.com")
	req.Header.Set(ecommerce.HeaderWebhookTopic, "products/update")
	req.Header.Set(ecommerce.HeaderWebhookID, "d-1")
	w := httptest.NewRecorder()
	webhookRouter(processor, 1<<20).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var ack dto.WebhookAckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	require.NotNil(t, ack.EventID)
	assert.Equal(t, eventID, *ack.EventID)
	assert.Equal(t, "processed", ack.Status)
	processor.AssertExpectations(t)
}

func TestWebhookHandler_DuplicateHasNoEventID(t *testing.T) {
	processor := new(MockWebhookProcessor)
	processor.On("Handle", mock.Anything, mock.Anything).Return(&ingestion.WebhookResult{
		Topic:     "orders/paid",
		Status:    integration.WebhookEventProcessed,
		Duplicate: true,
	}, nil)

	w := httptest.NewRecorder()
	webhookRouter(processor, 1<<20).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhooks/orders/paid", strings.NewReader("{}")))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"topic":"orders/paid","status":"processed","duplicate":true}`, w.Body.String())
}

func TestWebhookHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"bad signature", &integration.AuthError{Reason: "webhook signature rejected", Err: integration.ErrInvalidSignature}, http.StatusUnauthorized},
		{"unknown tenant", integration.ErrTenantNotFound, http.StatusNotFound},
		{"disconnected tenant", &integration.NotFoundError{Resource: "tenant", Key: "acme.myshopify.com"}, http.StatusNotFound},
		{"topic mismatch", integration.ErrTopicMismatch, http.StatusBadRequest},
		{"missing id", &integration.ValidationError{Field: "id", Message: "is required"}, http.StatusBadRequest},
		{"dispatch failure", &integration.InternalError{Op: "dispatch products/update", Err: assert.AnError}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := new(MockWebhookProcessor)
			processor.On("Handle", mock.Anything, mock.Anything).Return(nil, tt.err)

			w := httptest.NewRecorder()
			webhookRouter(processor, 1<<20).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhooks/products/update", strings.NewReader("{}")))
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestWebhookHandler_BodyTooLarge(t *testing.T) {
	processor := new(MockWebhookProcessor)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/products/update", strings.NewReader(strings.Repeat("x", 64)))
	req.ContentLength = -1
	w := httptest.NewRecorder()
	webhookRouter(processor, 16).ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, dto.ErrCodeTooLarge, decodeError(t, w).Code)
	processor.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
}

func TestWebhookHandler_EndToEndSignature(t *testing.T) {
	// a real signature check in front of the mock proves the raw body reaches it untouched
	const secret = "hush"
	body := []byte(`{"id":1}`)

	processor := new(MockWebhookProcessor)
	processor.On("Handle", mock.Anything, mock.MatchedBy(func(req ingestion.WebhookRequest) bool {
		return ecommerce.VerifyWebhook(secret, req.Body, req.Signature) == nil
	})).Return(&ingestion.WebhookResult{Topic: "customers/create", Status: integration.WebhookEventProcessed}, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/customers/create", bytes.NewReader(body))
	req.Header.Set(ecommerce.HeaderWebhookHMAC, ecommerce.SignWebhook(secret, body))
	w := httptest.NewRecorder()
	webhookRouter(processor, 1<<20).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
