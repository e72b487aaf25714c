package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/storesync/backend/internal/application/ingestion"
	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/interfaces/http/dto"
)

// EntityQueries is the read side of the synced store
type EntityQueries interface {
	ListProducts(ctx context.Context, tenantID uuid.UUID, f integration.ListFilter) (*ingestion.ListResult[integration.Product], error)
	GetProduct(ctx context.Context, tenantID, id uuid.UUID) (*integration.Product, error)
	ListOrders(ctx context.Context, tenantID uuid.UUID, f integration.ListFilter) (*ingestion.ListResult[integration.Order], error)
	GetOrder(ctx context.Context, tenantID, id uuid.UUID) (*integration.Order, error)
	ListCustomers(ctx context.Context, tenantID uuid.UUID, f integration.ListFilter) (*ingestion.ListResult[integration.Customer], error)
	WebhookEvents(ctx context.Context, tenantID uuid.UUID, limit int) ([]integration.WebhookEvent, error)
}

// QueryHandler serves the read-only views of the caller's tenant
type QueryHandler struct {
	BaseHandler
	queries EntityQueries
}

// NewQueryHandler creates a new QueryHandler
func NewQueryHandler(queries EntityQueries) *QueryHandler {
	return &QueryHandler{queries: queries}
}

// bindList reads the paging parameters, answering 400 on bad input
func (h *QueryHandler) bindList(c *gin.Context) (integration.ListFilter, bool) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "page must be >= 1 and page_size between 1 and 250")
		return integration.ListFilter{}, false
	}
	return req.Filter(), true
}

// ListProducts godoc
// @Summary      List products
// @Description  Lists the tenant's products without variants
// @Tags         products
// @Produce      json
// @Param        page query int false "Page number" minimum(1)
// @Param        page_size query int false "Page size" minimum(1) maximum(250)
// @Param        include_deleted query bool false "Include soft-deleted products"
// @Success      200 {object} dto.ListResponse[dto.ProductResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      401 {object} dto.ErrorResponse
// @Failure      429 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/products [get]
func (h *QueryHandler) ListProducts(c *gin.Context) {
	tenant, ok := h.currentTenant(c)
	if !ok {
		return
	}
	filter, ok := h.bindList(c)
	if !ok {
		return
	}
	page, err := h.queries.ListProducts(c.Request.Context(), tenant.ID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewListResponse(dto.NewProductResponses(page.Items), page.Total, page.Page, page.PageSize))
}

// GetProduct godoc
// @Summary      Get product by ID
// @Description  Returns one product with its variants
// @Tags         products
// @Produce      json
// @Param        id path string true "Product ID" format(uuid)
// @Success      200 {object} dto.ProductResponse
// @Failure      400 {object} dto.ErrorResponse
// @Failure      401 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/products/{id} [get]
func (h *QueryHandler) GetProduct(c *gin.Context) {
	tenant, ok := h.currentTenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	product, err := h.queries.GetProduct(c.Request.Context(), tenant.ID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewProductResponse(product))
}

// ListOrders godoc
// @Summary      List orders
// @Description  Lists the tenant's orders without line items
// @Tags         orders
// @Produce      json
// @Param        page query int false "Page number" minimum(1)
// @Param        page_size query int false "Page size" minimum(1) maximum(250)
// @Param        include_deleted query bool false "Include soft-deleted orders"
// @Success      200 {object} dto.ListResponse[dto.OrderResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      401 {object} dto.ErrorResponse
// @Failure      429 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/orders [get]
func (h *QueryHandler) ListOrders(c *gin.Context) {
	tenant, ok := h.currentTenant(c)
	if !ok {
		return
	}
	filter, ok := h.bindList(c)
	if !ok {
		return
	}
	page, err := h.queries.ListOrders(c.Request.Context(), tenant.ID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewListResponse(dto.NewOrderResponses(page.Items), page.Total, page.Page, page.PageSize))
}

// GetOrder godoc
// @Summary      Get order by ID
// @Description  Returns one order with its line items
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} dto.OrderResponse
// @Failure      400 {object} dto.ErrorResponse
// @Failure      401 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/orders/{id} [get]
func (h *QueryHandler) GetOrder(c *gin.Context) {
	tenant, ok := h.currentTenant(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	order, err := h.queries.GetOrder(c.Request.Context(), tenant.ID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewOrderResponse(order))
}

// ListCustomers godoc
// @Summary      List customers
// @Tags         customers
// @Produce      json
// @Param        page query int false "Page number" minimum(1)
// @Param        page_size query int false "Page size" minimum(1) maximum(250)
// @Param        include_deleted query bool false "Include soft-deleted customers"
// @Success      200 {object} dto.ListResponse[dto.CustomerResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      401 {object} dto.ErrorResponse
// @Failure      429 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/customers [get]
func (h *QueryHandler) ListCustomers(c *gin.Context) {
	tenant, ok := h.currentTenant(c)
	if !ok {
		return
	}
	filter, ok := h.bindList(c)
	if !ok {
		return
	}
	page, err := h.queries.ListCustomers(c.Request.Context(), tenant.ID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewListResponse(dto.NewCustomerResponses(page.Items), page.Total, page.Page, page.PageSize))
}

// WebhookEvents godoc
// @Summary      List webhook deliveries
// @Description  Lists the most recent webhook deliveries recorded for the tenant
// @Tags         webhooks
// @Produce      json
// @Param        limit query int false "Maximum number of events" minimum(1) maximum(250)
// @Success      200 {object} object{items=[]dto.WebhookEventResponse}
// @Failure      400 {object} dto.ErrorResponse
// @Failure      401 {object} dto.ErrorResponse
// @Failure      429 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/webhook-events [get]
func (h *QueryHandler) WebhookEvents(c *gin.Context) {
	tenant, ok := h.currentTenant(c)
	if !ok {
		return
	}
	var req dto.LimitRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "limit must be between 1 and 250")
		return
	}
	events, err := h.queries.WebhookEvents(c.Request.Context(), tenant.ID, req.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"items": dto.NewWebhookEventResponses(events)})
}
