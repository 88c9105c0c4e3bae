package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/atrium-dev/atrium/internal/domain/tenant"
	"github.com/atrium-dev/atrium/internal/infrastructure/persistence/models"
	apperrors "github.com/atrium-dev/atrium/internal/shared/errors"
)

func setupTestRepo(t *testing.T) tenant.RecordRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.TenantRecordModel{}))
	return NewTenantRecordRepository(db)
}

func sampleRecord(id tenant.ID) *tenant.Record {
	return &tenant.Record{
		TenantID:          id,
		Mode:              tenant.StorageModeSchema,
		StorageIdentifier: tenant.SanitizeIdentifier(string(id)),
		DSN:               "postgres://db:5432/app?search_path=" + string(id),
		Username:          "t_" + string(id),
		EncryptedPassword: "enc:v1:ZmFrZQ==",
		Status:            tenant.StatusActive,
	}
}

func TestTenantRecordCreateAndGet(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleRecord("acme")))

	record, err := repo.GetByTenantID(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, tenant.ID("acme"), record.TenantID)
	assert.Equal(t, tenant.StorageModeSchema, record.Mode)
	assert.Equal(t, tenant.StatusActive, record.Status)
	assert.Equal(t, "enc:v1:ZmFrZQ==", record.EncryptedPassword)
}

func TestTenantRecordGetMissingReturnsNil(t *testing.T) {
	repo := setupTestRepo(t)

	record, err := repo.GetByTenantID(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestTenantRecordDuplicateCreateConflicts(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleRecord("acme")))

	err := repo.Create(ctx, sampleRecord("acme"))
	assert.True(t, apperrors.IsConflictError(err))
}

func TestTenantRecordUpdate(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	record := sampleRecord("acme")
	require.NoError(t, repo.Create(ctx, record))

	record.LastMigrationVersion = 3
	record.Status = tenant.StatusSuspended
	require.NoError(t, repo.Update(ctx, record))

	got, err := repo.GetByTenantID(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, uint(3), got.LastMigrationVersion)
	assert.Equal(t, tenant.StatusSuspended, got.Status)
}

func TestTenantRecordUpdateMissingIsNotFound(t *testing.T) {
	repo := setupTestRepo(t)

	err := repo.Update(context.Background(), sampleRecord("ghost"))
	assert.True(t, apperrors.IsTenantNotFound(err))
}

func TestTenantRecordUpdateStatus(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleRecord("acme")))
	require.NoError(t, repo.UpdateStatus(ctx, "acme", tenant.StatusSuspended))

	got, err := repo.GetByTenantID(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, tenant.StatusSuspended, got.Status)
}

func TestTenantRecordDelete(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleRecord("acme")))
	require.NoError(t, repo.Delete(ctx, "acme"))

	record, err := repo.GetByTenantID(ctx, "acme")
	require.NoError(t, err)
	assert.Nil(t, record)

	err = repo.Delete(ctx, "acme")
	assert.True(t, apperrors.IsTenantNotFound(err))
}

func TestTenantRecordDeleteThenRecreate(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleRecord("acme")))
	require.NoError(t, repo.Delete(ctx, "acme"))

	// Offboarding must fully release the identifier so the tenant can
	// onboard again under the same ID.
	require.NoError(t, repo.Create(ctx, sampleRecord("acme")))

	record, err := repo.GetByTenantID(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, tenant.ID("acme"), record.TenantID)
}

func TestTenantRecordList(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleRecord("globex")))
	require.NoError(t, repo.Create(ctx, sampleRecord("acme")))

	records, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, tenant.ID("acme"), records[0].TenantID)
	assert.Equal(t, tenant.ID("globex"), records[1].TenantID)
}
