package tenant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrium-dev/atrium/internal/application/tenant/usecases"
	domaintenant "github.com/atrium-dev/atrium/internal/domain/tenant"
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

type stubProvisioner struct {
	modeDisabled bool
}

func (p *stubProvisioner) result(id domaintenant.ID, mode domaintenant.StorageMode) *tenancy.ProvisionResult {
	ident := domaintenant.SanitizeIdentifier(string(id))
	return &tenancy.ProvisionResult{
		TenantID:          id,
		Mode:              mode,
		StorageIdentifier: ident,
		DSN:               "postgres://db:5432/app?search_path=" + ident,
		Username:          "t_" + ident,
		Password:          "plain-pw",
	}
}

func (p *stubProvisioner) Provision(ctx context.Context, id domaintenant.ID, mode domaintenant.StorageMode) (*tenancy.ProvisionResult, error) {
	if p.modeDisabled && mode == domaintenant.StorageModeDatabase {
		return nil, apperrors.NewStorageModeDisabledError(string(id), string(mode))
	}
	return p.result(id, mode), nil
}

func (p *stubProvisioner) Adopt(ctx context.Context, id domaintenant.ID, mode domaintenant.StorageMode) (*tenancy.ProvisionResult, error) {
	return p.result(id, mode), nil
}

func (p *stubProvisioner) Drop(ctx context.Context, id domaintenant.ID, mode domaintenant.StorageMode) error {
	return nil
}

type stubMigrator struct{}

func (stubMigrator) Migrate(ctx context.Context, id domaintenant.ID, info *domaintenant.ConnectionInfo) (uint, error) {
	return 2, nil
}

type stubCipher struct{}

func (stubCipher) Encrypt(plaintext string) (string, error)  { return "enc:v1:" + plaintext, nil }
func (stubCipher) Decrypt(ciphertext string) (string, error) { return strings.TrimPrefix(ciphertext, "enc:v1:"), nil }

type memoryRepo struct {
	records map[domaintenant.ID]*domaintenant.Record
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: make(map[domaintenant.ID]*domaintenant.Record)}
}

func (r *memoryRepo) Create(ctx context.Context, record *domaintenant.Record) error {
	if _, ok := r.records[record.TenantID]; ok {
		return apperrors.NewConflictError("tenant record already exists")
	}
	clone := *record
	r.records[record.TenantID] = &clone
	return nil
}

func (r *memoryRepo) GetByTenantID(ctx context.Context, id domaintenant.ID) (*domaintenant.Record, error) {
	record, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

func (r *memoryRepo) Update(ctx context.Context, record *domaintenant.Record) error {
	clone := *record
	r.records[record.TenantID] = &clone
	return nil
}

func (r *memoryRepo) UpdateStatus(ctx context.Context, id domaintenant.ID, status domaintenant.Status) error {
	record, ok := r.records[id]
	if !ok {
		return apperrors.NewTenantNotFoundError(string(id))
	}
	record.Status = status
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id domaintenant.ID) error {
	if _, ok := r.records[id]; !ok {
		return apperrors.NewTenantNotFoundError(string(id))
	}
	delete(r.records, id)
	return nil
}

func (r *memoryRepo) List(ctx context.Context) ([]*domaintenant.Record, error) {
	out := make([]*domaintenant.Record, 0, len(r.records))
	for _, record := range r.records {
		clone := *record
		out = append(out, &clone)
	}
	return out, nil
}

type noopEvictor struct{}

func (noopEvictor) Evict(id domaintenant.ID) {}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(id domaintenant.ID) {}

func setupTestServer(t *testing.T, modeDisabled bool) (*gin.Engine, *memoryRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newMemoryRepo()
	provisioner := &stubProvisioner{modeDisabled: modeDisabled}
	log := newNopLogger()
	cfg := &config.TenancyConfig{}

	handler := NewHandler(
		usecases.NewOnboardTenantUseCase(provisioner, stubMigrator{}, stubCipher{}, repo, cfg, log),
		usecases.NewMigrateTenantUseCase(stubMigrator{}, stubCipher{}, repo, log),
		usecases.NewSuspendTenantUseCase(repo, noopInvalidator{}, noopEvictor{}, log),
		usecases.NewOffboardTenantUseCase(provisioner, repo, noopInvalidator{}, noopEvictor{}, log),
		usecases.NewGetTenantUseCase(repo),
		usecases.NewListTenantsUseCase(repo),
		usecases.NewGetConnectionInfoUseCase(repo, log),
	)

	router := gin.New()
	handler.RegisterRoutes(router.Group("/internal"))
	return router, repo
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestOnboardEndpoint(t *testing.T) {
	router, repo := setupTestServer(t, false)

	rec := doRequest(router, http.MethodPost, "/internal/tenants",
		`{"tenant_id":"acme","storage_mode":"SCHEMA"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	record, err := repo.GetByTenantID(context.Background(), "acme")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "enc:v1:plain-pw", record.EncryptedPassword)
}

func TestOnboardEndpointRejectsBadBody(t *testing.T) {
	router, _ := setupTestServer(t, false)

	rec := doRequest(router, http.MethodPost, "/internal/tenants",
		`{"tenant_id":"acme","storage_mode":"TRIPLICATE"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodPost, "/internal/tenants", `{"tenant_id":"acme"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOnboardEndpointModeDisabled(t *testing.T) {
	router, _ := setupTestServer(t, true)

	rec := doRequest(router, http.MethodPost, "/internal/tenants",
		`{"tenant_id":"acme","storage_mode":"DATABASE"}`)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func TestOnboardEndpointDuplicateConflicts(t *testing.T) {
	router, _ := setupTestServer(t, false)

	body := `{"tenant_id":"acme","storage_mode":"SCHEMA"}`
	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/internal/tenants", body).Code)
	assert.Equal(t, http.StatusConflict, doRequest(router, http.MethodPost, "/internal/tenants", body).Code)
}

func TestDBInfoEndpointServesWireContract(t *testing.T) {
	router, _ := setupTestServer(t, false)
	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/internal/tenants",
		`{"tenant_id":"acme","storage_mode":"SCHEMA"}`).Code)

	rec := doRequest(router, http.MethodGet, "/internal/tenants/acme/db-info", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "postgres://db:5432/app?search_path=acme", payload["jdbcUrl"])
	assert.Equal(t, "t_acme", payload["username"])
	assert.Equal(t, "enc:v1:plain-pw", payload["password"])
}

func TestDBInfoEndpointMissingTenant(t *testing.T) {
	router, _ := setupTestServer(t, false)

	rec := doRequest(router, http.MethodGet, "/internal/tenants/ghost/db-info", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSuspendEndpointHidesDBInfo(t *testing.T) {
	router, _ := setupTestServer(t, false)
	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/internal/tenants",
		`{"tenant_id":"acme","storage_mode":"SCHEMA"}`).Code)

	require.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/internal/tenants/acme/suspend", "").Code)
	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodGet, "/internal/tenants/acme/db-info", "").Code)
}

func TestMigrateEndpoint(t *testing.T) {
	router, _ := setupTestServer(t, false)
	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/internal/tenants",
		`{"tenant_id":"acme","storage_mode":"SCHEMA"}`).Code)

	rec := doRequest(router, http.MethodPost, "/internal/tenants/acme/migrate", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMigrateEndpointMissingTenant(t *testing.T) {
	router, _ := setupTestServer(t, false)

	rec := doRequest(router, http.MethodPost, "/internal/tenants/ghost/migrate", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOffboardEndpoint(t *testing.T) {
	router, repo := setupTestServer(t, false)
	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/internal/tenants",
		`{"tenant_id":"acme","storage_mode":"SCHEMA"}`).Code)

	rec := doRequest(router, http.MethodDelete, "/internal/tenants/acme", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	record, err := repo.GetByTenantID(context.Background(), "acme")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestListEndpoint(t *testing.T) {
	router, _ := setupTestServer(t, false)
	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/internal/tenants",
		`{"tenant_id":"acme","storage_mode":"SCHEMA"}`).Code)

	rec := doRequest(router, http.MethodGet, "/internal/tenants", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"acme"`)
}
