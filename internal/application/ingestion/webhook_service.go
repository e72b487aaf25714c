package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/infrastructure/ecommerce"
	"github.com/storesync/backend/internal/infrastructure/telemetry"
)

// DefaultDeliveryTTL is how long processed delivery ids are remembered
const DefaultDeliveryTTL = 48 * time.Hour

// upsertActions are the webhook actions that carry a full record
var upsertActions = map[string]bool{
	"create":    true,
	"update":    true,
	"updated":   true,
	"paid":      true,
	"cancelled": true,
	"fulfilled": true,
}

// WebhookRequest is one inbound webhook delivery as received over HTTP
type WebhookRequest struct {
	Route      string // topic derived from the path, e.g. "products/update"
	Topic      string // X-Shopify-Topic, optional
	Domain     string // X-Shopify-Shop-Domain
	DeliveryID string // X-Shopify-Webhook-Id, optional
	Signature  string // X-Shopify-Hmac-Sha256
	Body       []byte
}

// WebhookResult is what the gateway acknowledges
type WebhookResult struct {
	EventID   uuid.UUID
	TenantID  uuid.UUID
	Topic     string
	Status    integration.WebhookEventStatus
	Duplicate bool
}

// WebhookService verifies, resolves and dispatches webhook deliveries
type WebhookService struct {
	secret      string
	tenants     integration.TenantRepository
	reconciler  *Reconciler
	audit       integration.AuditLog
	deliveries  integration.DeliveryStore
	deliveryTTL time.Duration
	validate    *validator.Validate
	metrics     *telemetry.SyncMetrics
	logger      *zap.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewWebhookService creates a new WebhookService. deliveries may be nil to
// disable redelivery dedupe.
func NewWebhookService(
	secret string,
	tenants integration.TenantRepository,
	reconciler *Reconciler,
	audit integration.AuditLog,
	deliveries integration.DeliveryStore,
	metrics *telemetry.SyncMetrics,
	logger *zap.Logger,
) *WebhookService {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &WebhookService{
		secret:      secret,
		tenants:     tenants,
		reconciler:  reconciler,
		audit:       audit,
		deliveries:  deliveries,
		deliveryTTL: DefaultDeliveryTTL,
		validate:    v,
		metrics:     metrics,
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetDeliveryTTL overrides how long processed delivery ids are remembered
func (s *WebhookService) SetDeliveryTTL(ttl time.Duration) {
	if ttl > 0 {
		s.deliveryTTL = ttl
	}
}

// Handle runs one delivery through signature check, tenant resolution,
// topic dispatch and event persistence. Errors are typed for the HTTP layer:
// AuthError, ValidationError, NotFoundError, ErrTopicMismatch or InternalError.
func (s *WebhookService) Handle(ctx context.Context, req WebhookRequest) (*WebhookResult, error) {
	ctx, span := s.tracer.Start(ctx, "webhook.handle", trace.WithAttributes(attribute.String("webhook.route", req.Route)))
	defer span.End()

	if err := ecommerce.VerifyWebhook(s.secret, req.Body, req.Signature); err != nil {
		s.metrics.Webhook(req.Route, "unauthorized")
		return nil, &integration.AuthError{Reason: "webhook signature rejected", Err: err}
	}

	if strings.TrimSpace(req.Domain) == "" {
		return nil, &integration.ValidationError{Field: ecommerce.HeaderWebhookDomain, Message: "header is required"}
	}
	tenant, err := s.tenants.FindByDomain(ctx, req.Domain)
	if err != nil {
		if errors.Is(err, integration.ErrTenantNotFound) {
			return nil, err
		}
		return nil, &integration.InternalError{Op: "resolve tenant", Err: err}
	}
	if tenant.DisconnectedAt != nil {
		return nil, &integration.NotFoundError{Resource: "tenant", Key: tenant.Domain}
	}

	topic := strings.ToLower(req.Route)
	if req.Topic != "" && !strings.EqualFold(req.Topic, topic) {
		return nil, integration.ErrTopicMismatch
	}
	span.SetAttributes(attribute.String("tenant.domain", tenant.Domain))

	logger := s.logger.With(
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("topic", topic),
		zap.String("delivery_id", req.DeliveryID),
	)

	if req.DeliveryID != "" && s.deliveries != nil {
		seen, err := s.deliveries.IsProcessed(ctx, req.DeliveryID)
		if err != nil {
			logger.Warn("Delivery store unavailable, processing without dedupe", zap.Error(err))
		} else if seen {
			logger.Info("Duplicate webhook delivery acknowledged")
			s.metrics.Webhook(topic, "duplicate")
			return &WebhookResult{TenantID: tenant.ID, Topic: topic, Status: integration.WebhookEventProcessed, Duplicate: true}, nil
		}
	}

	status, dispatchErr := s.dispatch(ctx, logger, tenant, topic, req.Body)

	event := &integration.WebhookEvent{
		ID:         uuid.New(),
		TenantID:   tenant.ID,
		Topic:      topic,
		Payload:    eventPayload(req.Body),
		Status:     status,
		ReceivedAt: s.now(),
	}
	if dispatchErr != nil {
		event.Status = integration.WebhookEventFailed
		event.Error = dispatchErr.Error()
	}
	if err := s.audit.RecordWebhookEvent(ctx, event); err != nil {
		logger.Error("Failed to record webhook event", zap.Error(err))
		s.metrics.Webhook(topic, "error")
		return nil, &integration.InternalError{Op: "record webhook event", Err: err}
	}

	var verr *integration.ValidationError
	if errors.As(dispatchErr, &verr) {
		logger.Warn("Webhook payload rejected", zap.Error(dispatchErr))
		s.metrics.Webhook(topic, "invalid")
		return nil, dispatchErr
	}
	if dispatchErr != nil {
		logger.Error("Webhook dispatch failed", zap.Error(dispatchErr))
		s.metrics.Webhook(topic, "error")
		return nil, &integration.InternalError{Op: "dispatch " + topic, Err: dispatchErr}
	}

	if req.DeliveryID != "" && s.deliveries != nil {
		if _, err := s.deliveries.MarkProcessed(ctx, req.DeliveryID, s.deliveryTTL); err != nil {
			logger.Warn("Failed to mark webhook delivery processed", zap.Error(err))
		}
	}

	s.metrics.Webhook(topic, string(status))
	logger.Info("Webhook processed", zap.String("status", string(status)))
	return &WebhookResult{EventID: event.ID, TenantID: tenant.ID, Topic: topic, Status: status}, nil
}

// dispatch applies the mutation for a topic. A *ValidationError means the
// payload was rejected before any write; the event is still recorded as failed.
func (s *WebhookService) dispatch(ctx context.Context, logger *zap.Logger, tenant *integration.Tenant, topic string, body []byte) (integration.WebhookEventStatus, error) {
	resource, action, _ := strings.Cut(topic, "/")

	switch topic {
	case "app/uninstalled":
		tenant.Disconnect(s.now())
		if err := s.tenants.SaveConnection(ctx, tenant); err != nil {
			return integration.WebhookEventFailed, err
		}
		logger.Info("Tenant disconnected by uninstall")
		return integration.WebhookEventProcessed, nil

	case "app_subscriptions/update":
		payload, err := decodePayload[ecommerce.ShopifySubscriptionPayload](s.validate, body)
		if err != nil {
			return integration.WebhookEventFailed, err
		}
		sub := ecommerce.MapSubscription(payload.AppSubscription)
		tenant.UpdateSubscription(sub.Name, sub.Status, s.now())
		if err := s.tenants.SaveSubscription(ctx, tenant); err != nil {
			return integration.WebhookEventFailed, err
		}
		return integration.WebhookEventProcessed, nil

	case "customers/redact", "shop/redact", "customers/data_request":
		logger.Info("Compliance webhook received")
		return integration.WebhookEventProcessed, nil
	}

	entity := integration.EntityType(strings.TrimSuffix(resource, "s"))
	if !entity.IsRoot() {
		logger.Info("Ignoring webhook with unhandled topic")
		return integration.WebhookEventIgnored, nil
	}

	if action == "delete" {
		payload, err := decodePayload[ecommerce.ShopifyDeletePayload](s.validate, body)
		if err != nil {
			return integration.WebhookEventFailed, err
		}
		found, err := s.reconciler.Delete(ctx, entity, tenant.ID, payload.ID.String())
		if err != nil {
			return integration.WebhookEventFailed, err
		}
		if !found {
			logger.Info("Delete for unknown record ignored", zap.String("upstream_id", payload.ID.String()))
		}
		return integration.WebhookEventProcessed, nil
	}

	if !upsertActions[action] {
		logger.Info("Ignoring webhook with unhandled action")
		return integration.WebhookEventIgnored, nil
	}

	var errs []error
	switch entity {
	case integration.EntityProduct:
		payload, err := decodePayload[ecommerce.ShopifyProduct](s.validate, body)
		if err != nil {
			return integration.WebhookEventFailed, err
		}
		p := ecommerce.MapProduct(tenant.ID, *payload)
		_, errs = s.reconciler.Product(ctx, &p)
	case integration.EntityOrder:
		payload, err := decodePayload[ecommerce.ShopifyOrder](s.validate, body)
		if err != nil {
			return integration.WebhookEventFailed, err
		}
		o := ecommerce.MapOrder(tenant.ID, *payload)
		_, errs = s.reconciler.Order(ctx, &o)
	case integration.EntityCustomer:
		payload, err := decodePayload[ecommerce.ShopifyCustomer](s.validate, body)
		if err != nil {
			return integration.WebhookEventFailed, err
		}
		c := ecommerce.MapCustomer(tenant.ID, *payload)
		_, errs = s.reconciler.Customer(ctx, &c)
	}
	if len(errs) > 0 {
		return integration.WebhookEventFailed, errors.Join(errs...)
	}
	return integration.WebhookEventProcessed, nil
}

// eventPayload returns body as stored on the event; a body that is not JSON
// is kept as a JSON string so the payload column accepts it.
func eventPayload(body []byte) []byte {
	if json.Valid(body) {
		return body
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}

// decodePayload decodes a webhook body and checks its required fields
func decodePayload[T any](v *validator.Validate, body []byte) (*T, error) {
	var payload T
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &integration.ValidationError{Message: "payload is not valid JSON: " + err.Error()}
	}
	if err := v.Struct(&payload); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			field := fe.Namespace()
			if _, rest, ok := strings.Cut(field, "."); ok {
				field = rest
			}
			msg := "is invalid"
			if fe.Tag() == "required" {
				msg = "is required"
			}
			return nil, &integration.ValidationError{Field: field, Message: msg}
		}
		return nil, &integration.ValidationError{Message: err.Error()}
	}
	return &payload, nil
}
