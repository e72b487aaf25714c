package ingestion

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/integration"
)

// TenantService manages the tenant registry outside of sync runs
type TenantService struct {
	tenants integration.TenantRepository
	logger  *zap.Logger
	now     func() time.Time
}

// NewTenantService creates a new TenantService
func NewTenantService(tenants integration.TenantRepository, logger *zap.Logger) *TenantService {
	return &TenantService{
		tenants: tenants,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Connect registers a tenant after a successful authorization, or
// re-activates an existing one with a fresh credential.
func (s *TenantService) Connect(ctx context.Context, domain, credential, timezone string) (*integration.Tenant, error) {
	if credential == "" {
		return nil, integration.ErrTenantNoCredential
	}
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return nil, &integration.ValidationError{Field: "timezone", Message: "unknown time zone " + timezone}
		}
	}

	tenant, err := s.tenants.FindByDomain(ctx, domain)
	switch {
	case err == nil:
		tenant.Reconnect(credential, timezone, s.now())
	case errors.Is(err, integration.ErrTenantNotFound):
		tenant, err = integration.NewTenant(domain, credential, timezone)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if err := s.tenants.Save(ctx, tenant); err != nil {
		return nil, err
	}
	s.logger.Info("Tenant connected",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("domain", tenant.Domain),
	)
	return tenant, nil
}

// Disconnect clears the tenant credential and stops scheduling it
func (s *TenantService) Disconnect(ctx context.Context, tenantID uuid.UUID) (*integration.Tenant, error) {
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	tenant.Disconnect(s.now())
	if err := s.tenants.SaveConnection(ctx, tenant); err != nil {
		return nil, err
	}
	s.logger.Info("Tenant disconnected",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("domain", tenant.Domain),
	)
	return tenant, nil
}

// Get returns a tenant by id
func (s *TenantService) Get(ctx context.Context, tenantID uuid.UUID) (*integration.Tenant, error) {
	return s.tenants.FindByID(ctx, tenantID)
}

// GetByDomain returns a tenant by shop domain
func (s *TenantService) GetByDomain(ctx context.Context, domain string) (*integration.Tenant, error) {
	return s.tenants.FindByDomain(ctx, domain)
}
