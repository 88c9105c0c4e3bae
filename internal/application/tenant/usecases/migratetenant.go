package usecases

import (
	"context"
	"fmt"

	"github.com/atrium-dev/atrium/internal/application/tenant/dto"
	"github.com/atrium-dev/atrium/internal/domain/tenant"
	"github.com/atrium-dev/atrium/internal/shared/errors"
	"github.com/atrium-dev/atrium/internal/shared/logger"
)

// MigrateTenantUseCase brings an onboarded tenant's storage up to the
// current schema version.
type MigrateTenantUseCase struct {
	migrator   TenantMigrator
	cipher     CredentialCipher
	recordRepo tenant.RecordRepository
	logger     logger.Interface
}

// NewMigrateTenantUseCase creates a new migrate tenant use case
func NewMigrateTenantUseCase(
	migrator TenantMigrator,
	cipher CredentialCipher,
	recordRepo tenant.RecordRepository,
	logger logger.Interface,
) *MigrateTenantUseCase {
	return &MigrateTenantUseCase{
		migrator:   migrator,
		cipher:     cipher,
		recordRepo: recordRepo,
		logger:     logger,
	}
}

// Execute executes the migrate tenant use case
func (uc *MigrateTenantUseCase) Execute(ctx context.Context, tenantID string) (*dto.MigrateTenantResponse, error) {
	id, err := tenant.ParseID(tenantID)
	if err != nil {
		return nil, errors.NewValidationError("invalid tenant id", err.Error())
	}

	record, err := uc.recordRepo.GetByTenantID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant record: %w", err)
	}
	if record == nil {
		return nil, errors.NewTenantNotFoundError(string(id))
	}

	password, err := uc.cipher.Decrypt(record.EncryptedPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt tenant credential: %w", err)
	}

	fromVersion := record.LastMigrationVersion

	version, err := uc.migrator.Migrate(ctx, id, &tenant.ConnectionInfo{
		DSN:      record.DSN,
		Username: record.Username,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	if version != record.LastMigrationVersion {
		record.LastMigrationVersion = version
		if err := uc.recordRepo.Update(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to update tenant record: %w", err)
		}
	}

	uc.logger.Infow("tenant migrated",
		"tenant_id", id,
		"from_version", fromVersion,
		"to_version", version)

	return &dto.MigrateTenantResponse{
		TenantID:    string(id),
		FromVersion: fromVersion,
		ToVersion:   version,
	}, nil
}
