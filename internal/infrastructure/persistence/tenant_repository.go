package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
)

// GormTenantRepository implements integration.TenantRepository using GORM.
// Access credentials are sealed on write and opened on read.
type GormTenantRepository struct {
	db     *gorm.DB
	cipher CredentialCipher
}

// NewGormTenantRepository creates a new GormTenantRepository
func NewGormTenantRepository(db *gorm.DB, cipher CredentialCipher) *GormTenantRepository {
	if cipher == nil {
		cipher = plaintextCipher{}
	}
	return &GormTenantRepository{db: db, cipher: cipher}
}

// FindByID finds a tenant by its ID
func (r *GormTenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Tenant, error) {
	var model models.TenantModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &integration.NotFoundError{Resource: "tenant", Key: id.String()}
		}
		return nil, err
	}
	return r.toDomain(&model)
}

// FindByDomain finds a tenant by its normalized shop domain
func (r *GormTenantRepository) FindByDomain(ctx context.Context, domain string) (*integration.Tenant, error) {
	domain = integration.NormalizeDomain(domain)
	if domain == "" {
		return nil, &integration.NotFoundError{Resource: "tenant", Key: domain}
	}
	var model models.TenantModel
	if err := r.db.WithContext(ctx).Where("domain = ?", domain).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &integration.NotFoundError{Resource: "tenant", Key: domain}
		}
		return nil, err
	}
	return r.toDomain(&model)
}

// FindConnected returns every tenant with a credential and no disconnect mark
func (r *GormTenantRepository) FindConnected(ctx context.Context) ([]integration.Tenant, error) {
	var rows []models.TenantModel
	err := r.db.WithContext(ctx).
		Where("disconnected_at IS NULL").
		Where("access_credential IS NOT NULL AND access_credential <> ''").
		Order("domain ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	tenants := make([]integration.Tenant, 0, len(rows))
	for i := range rows {
		t, err := r.toDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, *t)
	}
	return tenants, nil
}

// Save creates or updates a tenant
func (r *GormTenantRepository) Save(ctx context.Context, tenant *integration.Tenant) error {
	model := models.TenantModelFromDomain(tenant)
	sealed, err := r.cipher.Seal(tenant.AccessCredential)
	if err != nil {
		return fmt.Errorf("failed to seal tenant credential: %w", err)
	}
	model.AccessCredential = sealed
	return r.db.WithContext(ctx).Save(model).Error
}

var (
	syncStateColumns    = []string{"sync_status", "sync_started_at", "sync_finished_at", "sync_checkpoint_at", "last_run_error_count", "updated_at"}
	connectionColumns   = []string{"access_credential", "timezone", "disconnected_at", "sync_status", "updated_at"}
	subscriptionColumns = []string{"plan_name", "subscription_status", "billing_active", "updated_at"}
)

// SaveSyncState writes the sync state machine columns of an existing tenant
func (r *GormTenantRepository) SaveSyncState(ctx context.Context, tenant *integration.Tenant) error {
	return r.updateColumns(ctx, models.TenantModelFromDomain(tenant), syncStateColumns)
}

// SaveConnection writes the sealed credential and disconnect mark of an existing tenant
func (r *GormTenantRepository) SaveConnection(ctx context.Context, tenant *integration.Tenant) error {
	model := models.TenantModelFromDomain(tenant)
	sealed, err := r.cipher.Seal(tenant.AccessCredential)
	if err != nil {
		return fmt.Errorf("failed to seal tenant credential: %w", err)
	}
	model.AccessCredential = sealed
	return r.updateColumns(ctx, model, connectionColumns)
}

// SaveSubscription writes the billing flags of an existing tenant
func (r *GormTenantRepository) SaveSubscription(ctx context.Context, tenant *integration.Tenant) error {
	return r.updateColumns(ctx, models.TenantModelFromDomain(tenant), subscriptionColumns)
}

// updateColumns writes only columns, zero values included, so concurrent
// writers of other columns are not reverted
func (r *GormTenantRepository) updateColumns(ctx context.Context, model *models.TenantModel, columns []string) error {
	result := r.db.WithContext(ctx).Model(model).Select(columns).Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &integration.NotFoundError{Resource: "tenant", Key: model.ID.String()}
	}
	return nil
}

func (r *GormTenantRepository) toDomain(model *models.TenantModel) (*integration.Tenant, error) {
	t := model.ToDomain()
	plain, err := r.cipher.Open(model.AccessCredential)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", model.Domain, err)
	}
	t.AccessCredential = plain
	return t, nil
}

var _ integration.TenantRepository = (*GormTenantRepository)(nil)
