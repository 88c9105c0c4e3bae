package usecases

import (
	"context"
	"fmt"

	"github.com/atrium-dev/atrium/internal/application/tenant/dto"
	"github.com/atrium-dev/atrium/internal/domain/tenant"
	"github.com/atrium-dev/atrium/internal/shared/errors"
	"github.com/atrium-dev/atrium/internal/shared/logger"
)

// GetConnectionInfoUseCase serves the db-info lookup the data-plane
// instances resolve tenants through. The password stays encrypted on the
// wire; consumers decrypt it with the shared secret.
type GetConnectionInfoUseCase struct {
	recordRepo tenant.RecordRepository
	logger     logger.Interface
}

// NewGetConnectionInfoUseCase creates a new get connection info use case
func NewGetConnectionInfoUseCase(recordRepo tenant.RecordRepository, logger logger.Interface) *GetConnectionInfoUseCase {
	return &GetConnectionInfoUseCase{
		recordRepo: recordRepo,
		logger:     logger,
	}
}

// Execute executes the get connection info use case
func (uc *GetConnectionInfoUseCase) Execute(ctx context.Context, tenantID string) (*dto.ConnectionInfoResponse, error) {
	id, err := tenant.ParseID(tenantID)
	if err != nil {
		return nil, errors.NewTenantNotFoundError(tenantID)
	}

	record, err := uc.recordRepo.GetByTenantID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant record: %w", err)
	}
	if record == nil {
		return nil, errors.NewTenantNotFoundError(string(id))
	}
	// Suspended tenants must not be resolvable by the data plane.
	if record.Status != tenant.StatusActive {
		uc.logger.Debugw("refusing db-info for inactive tenant",
			"tenant_id", id,
			"status", record.Status)
		return nil, errors.NewTenantNotFoundError(string(id))
	}

	return &dto.ConnectionInfoResponse{
		JDBCURL:  record.DSN,
		Username: record.Username,
		Password: record.EncryptedPassword,
	}, nil
}

// GetTenantUseCase returns a tenant's registry record for operators.
type GetTenantUseCase struct {
	recordRepo tenant.RecordRepository
}

// NewGetTenantUseCase creates a new get tenant use case
func NewGetTenantUseCase(recordRepo tenant.RecordRepository) *GetTenantUseCase {
	return &GetTenantUseCase{recordRepo: recordRepo}
}

// Execute executes the get tenant use case
func (uc *GetTenantUseCase) Execute(ctx context.Context, tenantID string) (*dto.TenantResponse, error) {
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

	return &dto.TenantResponse{
		TenantID:          string(record.TenantID),
		StorageMode:       string(record.Mode),
		StorageIdentifier: record.StorageIdentifier,
		Status:            string(record.Status),
		MigrationVersion:  record.LastMigrationVersion,
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
	}, nil
}

// ListTenantsUseCase returns every registry record.
type ListTenantsUseCase struct {
	recordRepo tenant.RecordRepository
}

// NewListTenantsUseCase creates a new list tenants use case
func NewListTenantsUseCase(recordRepo tenant.RecordRepository) *ListTenantsUseCase {
	return &ListTenantsUseCase{recordRepo: recordRepo}
}

// Execute executes the list tenants use case
func (uc *ListTenantsUseCase) Execute(ctx context.Context) ([]*dto.TenantResponse, error) {
	records, err := uc.recordRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant records: %w", err)
	}

	responses := make([]*dto.TenantResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, &dto.TenantResponse{
			TenantID:          string(record.TenantID),
			StorageMode:       string(record.Mode),
			StorageIdentifier: record.StorageIdentifier,
			Status:            string(record.Status),
			MigrationVersion:  record.LastMigrationVersion,
			CreatedAt:         record.CreatedAt,
			UpdatedAt:         record.UpdatedAt,
		})
	}
	return responses, nil
}
