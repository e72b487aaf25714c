package handler

import (
	"context"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/storesync/backend/internal/application/ingestion"
	"github.com/storesync/backend/internal/infrastructure/ecommerce"
	"github.com/storesync/backend/internal/interfaces/http/dto"
)

// WebhookProcessor runs one webhook delivery end to end
type WebhookProcessor interface {
	Handle(ctx context.Context, req ingestion.WebhookRequest) (*ingestion.WebhookResult, error)
}

// WebhookHandler receives platform webhooks on /webhooks/:resource/:action
type WebhookHandler struct {
	BaseHandler
	processor WebhookProcessor
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(processor WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// Receive reads the raw body, since the signature covers the exact bytes,
// and hands the delivery to the processor.
//
// @Summary      Receive a platform webhook
// @Description  Verifies the HMAC signature over the raw body, records the delivery and applies it to the tenant's store
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        resource path string true "Webhook resource, e.g. products"
// @Param        action path string true "Webhook action, e.g. update"
// @Param        X-Shopify-Topic header string true "Webhook topic"
// @Param        X-Shopify-Shop-Domain header string true "Shop domain"
// @Param        X-Shopify-Webhook-Id header string false "Delivery id used for de-duplication"
// @Param        X-Shopify-Hmac-Sha256 header string true "Base64 HMAC-SHA256 of the body"
// @Param        payload body object true "Platform payload"
// @Success      200 {object} dto.WebhookAckResponse
// @Failure      400 {object} dto.ErrorResponse
// @Failure      401 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      413 {object} dto.ErrorResponse
// @Failure      429 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /webhooks/{resource}/{action} [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	resource := strings.TrimSpace(c.Param("resource"))
	action := strings.TrimSpace(c.Param("action"))
	if resource == "" || action == "" {
		h.BadRequest(c, "webhook route must be /webhooks/{resource}/{action}")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.processor.Handle(c.Request.Context(), ingestion.WebhookRequest{
		Route:      resource + "/" + action,
		Topic:      c.GetHeader(ecommerce.HeaderWebhookTopic),
		Domain:     c.GetHeader(ecommerce.HeaderWebhookDomain),
		DeliveryID: c.GetHeader(ecommerce.HeaderWebhookID),
		Signature:  c.GetHeader(ecommerce.HeaderWebhookHMAC),
		Body:       body,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	ack := dto.WebhookAckResponse{
		Topic:     result.Topic,
		Status:    string(result.Status),
		Duplicate: result.Duplicate,
	}
	if result.EventID != uuid.Nil {
		id := result.EventID
		ack.EventID = &id
	}
	h.Success(c, ack)
}
