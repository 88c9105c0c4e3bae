package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/atrium-dev/atrium/internal/application/tenant/dto"
	"github.com/atrium-dev/atrium/internal/domain/tenant"
	"github.com/atrium-dev/atrium/internal/infrastructure/pubsub"
	"github.com/atrium-dev/atrium/internal/shared/config"
	"github.com/atrium-dev/atrium/internal/shared/errors"
	"github.com/atrium-dev/atrium/internal/shared/logger"
)

// OnboardTenantUseCase runs the full onboarding pipeline: provision
// storage, migrate it to the current schema version, and persist the
// registry record.
type OnboardTenantUseCase struct {
	provisioner StorageProvisioner
	migrator    TenantMigrator
	cipher      CredentialCipher
	recordRepo  tenant.RecordRepository
	publisher   InvalidationPublisher // Optional, can be nil
	cfg         *config.TenancyConfig
	logger      logger.Interface
}

// NewOnboardTenantUseCase creates a new onboard tenant use case
func NewOnboardTenantUseCase(
	provisioner StorageProvisioner,
	migrator TenantMigrator,
	cipher CredentialCipher,
	recordRepo tenant.RecordRepository,
	cfg *config.TenancyConfig,
	logger logger.Interface,
) *OnboardTenantUseCase {
	return &OnboardTenantUseCase{
		provisioner: provisioner,
		migrator:    migrator,
		cipher:      cipher,
		recordRepo:  recordRepo,
		cfg:         cfg,
		logger:      logger,
	}
}

// SetInvalidationPublisher sets the cross-instance publisher (optional dependency injection)
func (uc *OnboardTenantUseCase) SetInvalidationPublisher(publisher InvalidationPublisher) {
	uc.publisher = publisher
}

// Execute executes the onboard tenant use case
func (uc *OnboardTenantUseCase) Execute(ctx context.Context, request dto.OnboardTenantRequest) (*dto.TenantResponse, error) {
	uc.logger.Infow("executing onboard tenant use case",
		"tenant_id", request.TenantID,
		"storage_mode", request.StorageMode)

	id, err := tenant.ParseID(request.TenantID)
	if err != nil {
		return nil, errors.NewValidationError("invalid tenant id", err.Error())
	}
	mode, err := tenant.ParseStorageMode(request.StorageMode)
	if err != nil {
		return nil, errors.NewValidationError("invalid storage mode", err.Error())
	}

	existing, err := uc.recordRepo.GetByTenantID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing tenant record: %w", err)
	}
	if existing != nil {
		uc.logger.Warnw("tenant is already onboarded", "tenant_id", id)
		return nil, errors.NewConflictError("tenant is already onboarded", string(id))
	}

	result, err := uc.provisioner.Provision(ctx, id, mode)
	if errors.IsStorageExists(err) {
		// Storage left behind by an interrupted run with no surviving
		// record. Adopt it and continue where that run stopped.
		uc.logger.Warnw("storage exists without a record, resuming onboarding",
			"tenant_id", id)
		result, err = uc.provisioner.Adopt(ctx, id, mode)
	}
	if err != nil {
		return nil, err
	}

	info := &tenant.ConnectionInfo{
		DSN:      result.DSN,
		Username: result.Username,
		Password: result.Password,
	}

	version, err := uc.migrator.Migrate(ctx, id, info)
	if err != nil {
		uc.rollbackStorage(id, mode)
		return nil, err
	}

	encrypted, err := uc.cipher.Encrypt(result.Password)
	if err != nil {
		uc.rollbackStorage(id, mode)
		return nil, fmt.Errorf("failed to encrypt tenant credential: %w", err)
	}

	record := &tenant.Record{
		TenantID:             id,
		Mode:                 mode,
		StorageIdentifier:    result.StorageIdentifier,
		DSN:                  result.DSN,
		Username:             result.Username,
		EncryptedPassword:    encrypted,
		Status:               tenant.StatusActive,
		LastMigrationVersion: version,
	}
	if err := uc.recordRepo.Create(ctx, record); err != nil {
		uc.rollbackStorage(id, mode)
		return nil, fmt.Errorf("failed to persist tenant record: %w", err)
	}

	uc.notifyInvalidation(id, pubsub.ReasonRecordUpdated)

	uc.logger.Infow("tenant onboarded successfully",
		"tenant_id", id,
		"storage_mode", mode,
		"migration_version", version)

	return &dto.TenantResponse{
		TenantID:          string(id),
		StorageMode:       string(mode),
		StorageIdentifier: record.StorageIdentifier,
		Status:            string(record.Status),
		MigrationVersion:  version,
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
	}, nil
}

// rollbackStorage tears freshly provisioned storage back down when a later
// onboarding step fails, if configuration asks for that.
func (uc *OnboardTenantUseCase) rollbackStorage(id tenant.ID, mode tenant.StorageMode) {
	if !uc.cfg.DropStorageOnFailure {
		uc.logger.Warnw("leaving storage in place after failed onboarding",
			"tenant_id", id)
		return
	}
	if err := uc.provisioner.Drop(context.Background(), id, mode); err != nil {
		uc.logger.Errorw("failed to roll back tenant storage",
			"tenant_id", id,
			"error", err)
	}
}

func (uc *OnboardTenantUseCase) notifyInvalidation(id tenant.ID, reason pubsub.InvalidationReason) {
	if uc.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := uc.publisher.PublishInvalidation(ctx, id, reason); err != nil {
		uc.logger.Warnw("failed to publish tenant invalidation",
			"tenant_id", id,
			"error", err)
	}
}
