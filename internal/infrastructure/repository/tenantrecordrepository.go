package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/atrium-dev/atrium/internal/domain/tenant"
	"github.com/atrium-dev/atrium/internal/infrastructure/persistence/models"
	"github.com/atrium-dev/atrium/internal/shared/db"
	apperrors "github.com/atrium-dev/atrium/internal/shared/errors"
)

type TenantRecordRepositoryImpl struct {
	db *gorm.DB
}

func NewTenantRecordRepository(db *gorm.DB) tenant.RecordRepository {
	return &TenantRecordRepositoryImpl{db: db}
}

func (r *TenantRecordRepositoryImpl) Create(ctx context.Context, record *tenant.Record) error {
	model := toModel(record)

	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		if apperrors.IsDuplicateError(err) {
			return apperrors.NewConflictError("tenant record already exists", string(record.TenantID))
		}
		return fmt.Errorf("failed to create tenant record: %w", err)
	}

	record.CreatedAt = model.CreatedAt
	record.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *TenantRecordRepositoryImpl) GetByTenantID(ctx context.Context, id tenant.ID) (*tenant.Record, error) {
	var model models.TenantRecordModel

	if err := db.GetTxFromContext(ctx, r.db).Where("tenant_id = ?", string(id)).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tenant record: %w", err)
	}

	return toRecord(&model), nil
}

func (r *TenantRecordRepositoryImpl) Update(ctx context.Context, record *tenant.Record) error {
	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.TenantRecordModel{}).
		Where("tenant_id = ?", string(record.TenantID)).
		Updates(map[string]interface{}{
			"storage_mode":           string(record.Mode),
			"storage_identifier":     record.StorageIdentifier,
			"dsn":                    record.DSN,
			"username":               record.Username,
			"encrypted_password":     record.EncryptedPassword,
			"status":                 string(record.Status),
			"last_migration_version": record.LastMigrationVersion,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update tenant record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewTenantNotFoundError(string(record.TenantID))
	}
	return nil
}

func (r *TenantRecordRepositoryImpl) UpdateStatus(ctx context.Context, id tenant.ID, status tenant.Status) error {
	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.TenantRecordModel{}).
		Where("tenant_id = ?", string(id)).
		Update("status", string(status))
	if result.Error != nil {
		return fmt.Errorf("failed to update tenant status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewTenantNotFoundError(string(id))
	}
	return nil
}

func (r *TenantRecordRepositoryImpl) Delete(ctx context.Context, id tenant.ID) error {
	result := db.GetTxFromContext(ctx, r.db).
		Where("tenant_id = ?", string(id)).
		Delete(&models.TenantRecordModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete tenant record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewTenantNotFoundError(string(id))
	}
	return nil
}

func (r *TenantRecordRepositoryImpl) List(ctx context.Context) ([]*tenant.Record, error) {
	var found []models.TenantRecordModel
	if err := db.GetTxFromContext(ctx, r.db).Order("tenant_id").Find(&found).Error; err != nil {
		return nil, fmt.Errorf("failed to list tenant records: %w", err)
	}

	records := make([]*tenant.Record, 0, len(found))
	for i := range found {
		records = append(records, toRecord(&found[i]))
	}
	return records, nil
}

func toModel(record *tenant.Record) *models.TenantRecordModel {
	return &models.TenantRecordModel{
		TenantID:             string(record.TenantID),
		StorageMode:          string(record.Mode),
		StorageIdentifier:    record.StorageIdentifier,
		DSN:                  record.DSN,
		Username:             record.Username,
		EncryptedPassword:    record.EncryptedPassword,
		Status:               string(record.Status),
		LastMigrationVersion: record.LastMigrationVersion,
	}
}

func toRecord(model *models.TenantRecordModel) *tenant.Record {
	return &tenant.Record{
		TenantID:             tenant.ID(model.TenantID),
		Mode:                 tenant.StorageMode(model.StorageMode),
		StorageIdentifier:    model.StorageIdentifier,
		DSN:                  model.DSN,
		Username:             model.Username,
		EncryptedPassword:    model.EncryptedPassword,
		Status:               tenant.Status(model.Status),
		LastMigrationVersion: model.LastMigrationVersion,
		CreatedAt:            model.CreatedAt,
		UpdatedAt:            model.UpdatedAt,
	}
}
