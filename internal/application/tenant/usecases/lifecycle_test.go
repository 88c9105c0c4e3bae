package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrium-dev/atrium/internal/domain/tenant"
	"github.com/atrium-dev/atrium/internal/infrastructure/pubsub"
	apperrors "github.com/atrium-dev/atrium/internal/shared/errors"
)

// fakeInvalidator records local cache invalidations.
type fakeInvalidator struct {
	invalidated []tenant.ID
}

func (f *fakeInvalidator) Invalidate(id tenant.ID) {
	f.invalidated = append(f.invalidated, id)
}

// fakeEvictor records local pool evictions.
type fakeEvictor struct {
	evicted []tenant.ID
}

func (f *fakeEvictor) Evict(id tenant.ID) {
	f.evicted = append(f.evicted, id)
}

func seedRecord(t *testing.T, repo tenant.RecordRepository, id tenant.ID) *tenant.Record {
	t.Helper()
	record := &tenant.Record{
		TenantID:             id,
		Mode:                 tenant.StorageModeSchema,
		StorageIdentifier:    tenant.SanitizeIdentifier(string(id)),
		DSN:                  "postgres://db:5432/app?search_path=" + string(id),
		Username:             "t_" + string(id),
		EncryptedPassword:    "enc:v1:plain-pw",
		Status:               tenant.StatusActive,
		LastMigrationVersion: 1,
	}
	require.NoError(t, repo.Create(context.Background(), record))
	return record
}

func TestMigrateTenantUpdatesRecordVersion(t *testing.T) {
	repo := newMemoryRecordRepo()
	seedRecord(t, repo, "acme")
	migrator := &fakeMigrator{version: 4}

	uc := NewMigrateTenantUseCase(migrator, fakeCipher{}, repo, newNopLogger())

	response, err := uc.Execute(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, uint(1), response.FromVersion)
	assert.Equal(t, uint(4), response.ToVersion)

	record, err := repo.GetByTenantID(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, uint(4), record.LastMigrationVersion)
}

func TestMigrateTenantMissingIsNotFound(t *testing.T) {
	uc := NewMigrateTenantUseCase(&fakeMigrator{}, fakeCipher{}, newMemoryRecordRepo(), newNopLogger())

	_, err := uc.Execute(context.Background(), "ghost")
	assert.True(t, apperrors.IsTenantNotFound(err))
}

func TestMigrateTenantSurfacesMigrationFailure(t *testing.T) {
	repo := newMemoryRecordRepo()
	seedRecord(t, repo, "acme")
	migrator := &fakeMigrator{err: apperrors.NewMigrationFailedError("acme", 2, assert.AnError)}

	uc := NewMigrateTenantUseCase(migrator, fakeCipher{}, repo, newNopLogger())

	_, err := uc.Execute(context.Background(), "acme")
	require.Error(t, err)
	assert.True(t, apperrors.IsMigrationFailed(err))

	record, _ := repo.GetByTenantID(context.Background(), "acme")
	assert.Equal(t, uint(1), record.LastMigrationVersion, "version must not advance on failure")
}

func TestSuspendTenantFlushesEverywhere(t *testing.T) {
	repo := newMemoryRecordRepo()
	seedRecord(t, repo, "acme")
	invalidator := &fakeInvalidator{}
	evictor := &fakeEvictor{}
	publisher := &fakePublisher{}

	uc := NewSuspendTenantUseCase(repo, invalidator, evictor, newNopLogger())
	uc.SetInvalidationPublisher(publisher)

	require.NoError(t, uc.Execute(context.Background(), "acme"))

	record, err := repo.GetByTenantID(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, tenant.StatusSuspended, record.Status)
	assert.Equal(t, []tenant.ID{"acme"}, invalidator.invalidated)
	assert.Equal(t, []tenant.ID{"acme"}, evictor.evicted)
	assert.Equal(t, []pubsub.InvalidationReason{pubsub.ReasonTenantSuspended}, publisher.events)
}

func TestSuspendTenantMissingIsNotFound(t *testing.T) {
	uc := NewSuspendTenantUseCase(newMemoryRecordRepo(), &fakeInvalidator{}, &fakeEvictor{}, newNopLogger())

	err := uc.Execute(context.Background(), "ghost")
	assert.True(t, apperrors.IsTenantNotFound(err))
}

func TestOffboardTenantDropsStorageAndRecord(t *testing.T) {
	repo := newMemoryRecordRepo()
	seedRecord(t, repo, "acme")
	provisioner := &fakeProvisioner{}
	invalidator := &fakeInvalidator{}
	evictor := &fakeEvictor{}
	publisher := &fakePublisher{}

	uc := NewOffboardTenantUseCase(provisioner, repo, invalidator, evictor, newNopLogger())
	uc.SetInvalidationPublisher(publisher)

	require.NoError(t, uc.Execute(context.Background(), "acme"))

	assert.Equal(t, []tenant.ID{"acme"}, provisioner.dropped)
	record, _ := repo.GetByTenantID(context.Background(), "acme")
	assert.Nil(t, record)
	assert.Equal(t, []tenant.ID{"acme"}, evictor.evicted)
	assert.Equal(t, []pubsub.InvalidationReason{pubsub.ReasonTenantDeleted}, publisher.events)
}

func TestGetConnectionInfoServesEncryptedCredential(t *testing.T) {
	repo := newMemoryRecordRepo()
	seedRecord(t, repo, "acme")

	uc := NewGetConnectionInfoUseCase(repo, newNopLogger())

	response, err := uc.Execute(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "postgres://db:5432/app?search_path=acme", response.JDBCURL)
	assert.Equal(t, "t_acme", response.Username)
	assert.Equal(t, "enc:v1:plain-pw", response.Password, "wire credential stays encrypted")
}

func TestGetConnectionInfoHidesSuspendedTenant(t *testing.T) {
	repo := newMemoryRecordRepo()
	seedRecord(t, repo, "acme")
	require.NoError(t, repo.UpdateStatus(context.Background(), "acme", tenant.StatusSuspended))

	uc := NewGetConnectionInfoUseCase(repo, newNopLogger())

	_, err := uc.Execute(context.Background(), "acme")
	assert.True(t, apperrors.IsTenantNotFound(err))
}

func TestListTenants(t *testing.T) {
	repo := newMemoryRecordRepo()
	seedRecord(t, repo, "acme")
	seedRecord(t, repo, "globex")

	uc := NewListTenantsUseCase(repo)

	responses, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Len(t, responses, 2)
}
