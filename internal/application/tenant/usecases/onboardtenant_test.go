package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrium-dev/atrium/internal/application/tenant/dto"
	"github.com/atrium-dev/atrium/internal/domain/tenant"
	"github.com/atrium-dev/atrium/internal/infrastructure/pubsub"
	"github.com/atrium-dev/atrium/internal/infrastructure/tenancy"
	"github.com/atrium-dev/atrium/internal/shared/config"
	apperrors "github.com/atrium-dev/atrium/internal/shared/errors"
	"github.com/atrium-dev/atrium/internal/shared/logger"
)

// nopLogger is a no-op logger for testing.
type nopLogger struct{}

func newNopLogger() logger.Interface { return &nopLogger{} }

func (l *nopLogger) Debug(msg string, args ...any)                   {}
func (l *nopLogger) Info(msg string, args ...any)                    {}
func (l *nopLogger) Warn(msg string, args ...any)                    {}
func (l *nopLogger) Error(msg string, args ...any)                   {}
func (l *nopLogger) Fatal(msg string, args ...any)                   {}
func (l *nopLogger) With(args ...any) logger.Interface               { return l }
func (l *nopLogger) Named(name string) logger.Interface              { return l }
func (l *nopLogger) Debugw(msg string, keysAndValues ...interface{}) {}
func (l *nopLogger) Infow(msg string, keysAndValues ...interface{})  {}
func (l *nopLogger) Warnw(msg string, keysAndValues ...interface{})  {}
func (l *nopLogger) Errorw(msg string, keysAndValues ...interface{}) {}
func (l *nopLogger) Fatalw(msg string, keysAndValues ...interface{}) {}

// fakeProvisioner returns canned results and records which operations ran.
type fakeProvisioner struct {
	provisionErr error
	adoptErr     error
	provisioned  []tenant.ID
	adopted      []tenant.ID
	dropped      []tenant.ID
}

func (p *fakeProvisioner) result(id tenant.ID, mode tenant.StorageMode) *tenancy.ProvisionResult {
	ident := tenant.SanitizeIdentifier(string(id))
	return &tenancy.ProvisionResult{
		TenantID:          id,
		Mode:              mode,
		StorageIdentifier: ident,
		DSN:               "postgres://db:5432/app?search_path=" + ident,
		Username:          "t_" + ident,
		Password:          "plain-pw",
	}
}

func (p *fakeProvisioner) Provision(ctx context.Context, id tenant.ID, mode tenant.StorageMode) (*tenancy.ProvisionResult, error) {
	if p.provisionErr != nil {
		return nil, p.provisionErr
	}
	p.provisioned = append(p.provisioned, id)
	return p.result(id, mode), nil
}

func (p *fakeProvisioner) Adopt(ctx context.Context, id tenant.ID, mode tenant.StorageMode) (*tenancy.ProvisionResult, error) {
	if p.adoptErr != nil {
		return nil, p.adoptErr
	}
	p.adopted = append(p.adopted, id)
	return p.result(id, mode), nil
}

func (p *fakeProvisioner) Drop(ctx context.Context, id tenant.ID, mode tenant.StorageMode) error {
	p.dropped = append(p.dropped, id)
	return nil
}

// fakeMigrator reports a fixed version or a canned failure.
type fakeMigrator struct {
	version uint
	err     error
	runs    int
}

func (m *fakeMigrator) Migrate(ctx context.Context, id tenant.ID, info *tenant.ConnectionInfo) (uint, error) {
	m.runs++
	if m.err != nil {
		return 0, m.err
	}
	return m.version, nil
}

// fakeCipher marks values instead of encrypting them.
type fakeCipher struct{}

func (fakeCipher) Encrypt(plaintext string) (string, error)  { return "enc:v1:" + plaintext, nil }
func (fakeCipher) Decrypt(ciphertext string) (string, error) { return ciphertext[len("enc:v1:"):], nil }

// memoryRecordRepo is an in-memory tenant.RecordRepository.
type memoryRecordRepo struct {
	records map[tenant.ID]*tenant.Record
}

func newMemoryRecordRepo() *memoryRecordRepo {
	return &memoryRecordRepo{records: make(map[tenant.ID]*tenant.Record)}
}

func (r *memoryRecordRepo) Create(ctx context.Context, record *tenant.Record) error {
	if _, ok := r.records[record.TenantID]; ok {
		return apperrors.NewConflictError("tenant record already exists")
	}
	clone := *record
	r.records[record.TenantID] = &clone
	return nil
}

func (r *memoryRecordRepo) GetByTenantID(ctx context.Context, id tenant.ID) (*tenant.Record, error) {
	record, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

func (r *memoryRecordRepo) Update(ctx context.Context, record *tenant.Record) error {
	if _, ok := r.records[record.TenantID]; !ok {
		return apperrors.NewTenantNotFoundError(string(record.TenantID))
	}
	clone := *record
	r.records[record.TenantID] = &clone
	return nil
}

func (r *memoryRecordRepo) UpdateStatus(ctx context.Context, id tenant.ID, status tenant.Status) error {
	record, ok := r.records[id]
	if !ok {
		return apperrors.NewTenantNotFoundError(string(id))
	}
	record.Status = status
	return nil
}

func (r *memoryRecordRepo) Delete(ctx context.Context, id tenant.ID) error {
	if _, ok := r.records[id]; !ok {
		return apperrors.NewTenantNotFoundError(string(id))
	}
	delete(r.records, id)
	return nil
}

func (r *memoryRecordRepo) List(ctx context.Context) ([]*tenant.Record, error) {
	out := make([]*tenant.Record, 0, len(r.records))
	for _, record := range r.records {
		clone := *record
		out = append(out, &clone)
	}
	return out, nil
}

// fakePublisher records published invalidations.
type fakePublisher struct {
	events []pubsub.InvalidationReason
}

func (p *fakePublisher) PublishInvalidation(ctx context.Context, id tenant.ID, reason pubsub.InvalidationReason) error {
	p.events = append(p.events, reason)
	return nil
}

func newOnboardUseCase(p *fakeProvisioner, m *fakeMigrator, repo tenant.RecordRepository, drop bool) *OnboardTenantUseCase {
	return NewOnboardTenantUseCase(p, m, fakeCipher{}, repo, &config.TenancyConfig{
		DropStorageOnFailure: drop,
	}, newNopLogger())
}

func TestOnboardTenantHappyPath(t *testing.T) {
	provisioner := &fakeProvisioner{}
	migrator := &fakeMigrator{version: 3}
	repo := newMemoryRecordRepo()
	publisher := &fakePublisher{}

	uc := newOnboardUseCase(provisioner, migrator, repo, false)
	uc.SetInvalidationPublisher(publisher)

	response, err := uc.Execute(context.Background(), dto.OnboardTenantRequest{
		TenantID:    "acme",
		StorageMode: "SCHEMA",
	})
	require.NoError(t, err)

	assert.Equal(t, "acme", response.TenantID)
	assert.Equal(t, "SCHEMA", response.StorageMode)
	assert.Equal(t, uint(3), response.MigrationVersion)
	assert.Equal(t, string(tenant.StatusActive), response.Status)

	record, err := repo.GetByTenantID(context.Background(), "acme")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "enc:v1:plain-pw", record.EncryptedPassword, "credential must be stored encrypted")
	assert.Equal(t, uint(3), record.LastMigrationVersion)

	assert.Equal(t, []pubsub.InvalidationReason{pubsub.ReasonRecordUpdated}, publisher.events)
}

func TestOnboardTenantRejectsDuplicate(t *testing.T) {
	provisioner := &fakeProvisioner{}
	repo := newMemoryRecordRepo()
	uc := newOnboardUseCase(provisioner, &fakeMigrator{version: 1}, repo, false)

	_, err := uc.Execute(context.Background(), dto.OnboardTenantRequest{TenantID: "acme", StorageMode: "SCHEMA"})
	require.NoError(t, err)

	_, err = uc.Execute(context.Background(), dto.OnboardTenantRequest{TenantID: "acme", StorageMode: "SCHEMA"})
	assert.True(t, apperrors.IsConflictError(err))
	assert.Len(t, provisioner.provisioned, 1, "no second provisioning attempt")
}

func TestOnboardTenantResumesOrphanedStorage(t *testing.T) {
	provisioner := &fakeProvisioner{
		provisionErr: apperrors.NewStorageExistsError("acme", "acme"),
	}
	repo := newMemoryRecordRepo()
	uc := newOnboardUseCase(provisioner, &fakeMigrator{version: 2}, repo, false)

	response, err := uc.Execute(context.Background(), dto.OnboardTenantRequest{
		TenantID:    "acme",
		StorageMode: "SCHEMA",
	})
	require.NoError(t, err)

	assert.Equal(t, []tenant.ID{"acme"}, provisioner.adopted)
	assert.Equal(t, uint(2), response.MigrationVersion)
}

func TestOnboardTenantRollsBackOnMigrationFailure(t *testing.T) {
	provisioner := &fakeProvisioner{}
	migrator := &fakeMigrator{err: apperrors.NewMigrationFailedError("acme", 2, assert.AnError)}
	repo := newMemoryRecordRepo()

	uc := newOnboardUseCase(provisioner, migrator, repo, true)

	_, err := uc.Execute(context.Background(), dto.OnboardTenantRequest{
		TenantID:    "acme",
		StorageMode: "SCHEMA",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsMigrationFailed(err))

	assert.Equal(t, []tenant.ID{"acme"}, provisioner.dropped)
	record, _ := repo.GetByTenantID(context.Background(), "acme")
	assert.Nil(t, record, "no record may survive a failed onboarding")
}

func TestOnboardTenantKeepsStorageWhenRollbackDisabled(t *testing.T) {
	provisioner := &fakeProvisioner{}
	migrator := &fakeMigrator{err: apperrors.NewMigrationFailedError("acme", 1, assert.AnError)}

	uc := newOnboardUseCase(provisioner, migrator, newMemoryRecordRepo(), false)

	_, err := uc.Execute(context.Background(), dto.OnboardTenantRequest{
		TenantID:    "acme",
		StorageMode: "SCHEMA",
	})
	require.Error(t, err)
	assert.Empty(t, provisioner.dropped)
}

func TestOnboardTenantPassesThroughModeDisabled(t *testing.T) {
	provisioner := &fakeProvisioner{
		provisionErr: apperrors.NewStorageModeDisabledError("acme", "DATABASE"),
	}
	uc := newOnboardUseCase(provisioner, &fakeMigrator{}, newMemoryRecordRepo(), false)

	_, err := uc.Execute(context.Background(), dto.OnboardTenantRequest{
		TenantID:    "acme",
		StorageMode: "DATABASE",
	})
	assert.True(t, apperrors.IsStorageModeDisabled(err))
}

func TestOnboardTenantValidatesInput(t *testing.T) {
	uc := newOnboardUseCase(&fakeProvisioner{}, &fakeMigrator{}, newMemoryRecordRepo(), false)

	_, err := uc.Execute(context.Background(), dto.OnboardTenantRequest{TenantID: "x", StorageMode: "SCHEMA"})
	assert.True(t, apperrors.IsValidationError(err), "too-short tenant id")

	_, err = uc.Execute(context.Background(), dto.OnboardTenantRequest{TenantID: "acme", StorageMode: "TRIPLICATE"})
	assert.True(t, apperrors.IsValidationError(err), "unknown storage mode")
}
