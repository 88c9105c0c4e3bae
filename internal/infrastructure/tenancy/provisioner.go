// Package tenancy implements tenant storage provisioning and per-tenant
// schema migrations against the shared PostgreSQL cluster.
package tenancy

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/atrium-dev/atrium/internal/domain/tenant"
	"github.com/atrium-dev/atrium/internal/shared/config"
	apperrors "github.com/atrium-dev/atrium/internal/shared/errors"
	"github.com/atrium-dev/atrium/internal/shared/logger"
)

// AdminConn is the administrative connection the provisioner issues DDL
// through. Kept narrow so tests can count and inspect statements.
type AdminConn interface {
	Exec(ctx context.Context, query string, args ...interface{}) error
	QueryValue(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// gormAdminConn adapts a gorm handle to AdminConn.
type gormAdminConn struct {
	db *gorm.DB
}

// NewGormAdminConn wraps the administrative gorm handle.
func NewGormAdminConn(db *gorm.DB) AdminConn {
	return &gormAdminConn{db: db}
}

func (c *gormAdminConn) Exec(ctx context.Context, query string, args ...interface{}) error {
	return c.db.WithContext(ctx).Exec(query, args...).Error
}

func (c *gormAdminConn) QueryValue(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return c.db.WithContext(ctx).Raw(query, args...).Scan(dest).Error
}

// ProvisionResult carries everything the registry record needs after
// storage has been created.
type ProvisionResult struct {
	TenantID          tenant.ID
	Mode              tenant.StorageMode
	StorageIdentifier string
	DSN               string
	Username          string
	Password          string
}

// Provisioner creates and destroys tenant storage. SCHEMA mode creates a
// schema inside the shared database; DATABASE mode creates a dedicated
// database and requires explicit enablement in configuration.
type Provisioner struct {
	conn   AdminConn
	cfg    *config.TenancyConfig
	logger logger.Interface
}

// NewProvisioner builds a provisioner over the administrative connection.
func NewProvisioner(conn AdminConn, cfg *config.TenancyConfig, log logger.Interface) *Provisioner {
	return &Provisioner{
		conn:   conn,
		cfg:    cfg,
		logger: log.With("component", "tenancy.provisioner"),
	}
}

// Provision creates fresh storage, a dedicated database role, and the
// grants binding them. It fails before touching the cluster when the mode
// is disabled, and fails without mutating when the storage already exists.
func (p *Provisioner) Provision(ctx context.Context, id tenant.ID, mode tenant.StorageMode) (*ProvisionResult, error) {
	if err := p.checkMode(id, mode); err != nil {
		return nil, err
	}

	ident := tenant.SanitizeIdentifier(string(id))

	exists, err := p.storageExists(ctx, ident, mode)
	if err != nil {
		return nil, fmt.Errorf("check storage existence: %w", err)
	}
	if exists {
		return nil, apperrors.NewStorageExistsError(string(id), ident)
	}

	password, err := generatePassword()
	if err != nil {
		return nil, fmt.Errorf("generate credential: %w", err)
	}
	username := roleName(ident)

	if err := p.createStorage(ctx, ident, mode); err != nil {
		return nil, fmt.Errorf("create storage %q: %w", ident, err)
	}
	if err := p.createRole(ctx, username, password); err != nil {
		return nil, fmt.Errorf("create role %q: %w", username, err)
	}
	if err := p.grant(ctx, ident, username, mode); err != nil {
		return nil, fmt.Errorf("grant on %q: %w", ident, err)
	}

	p.logger.Info("provisioned tenant storage",
		"tenant_id", id,
		"mode", mode,
		"identifier", ident)

	return &ProvisionResult{
		TenantID:          id,
		Mode:              mode,
		StorageIdentifier: ident,
		DSN:               p.buildDSN(ident, mode),
		Username:          username,
		Password:          password,
	}, nil
}

// Adopt takes over existing storage for a tenant whose provisioning was
// interrupted after the storage step. It rotates the role credential so
// the returned result is usable regardless of what the earlier run left.
func (p *Provisioner) Adopt(ctx context.Context, id tenant.ID, mode tenant.StorageMode) (*ProvisionResult, error) {
	if err := p.checkMode(id, mode); err != nil {
		return nil, err
	}

	ident := tenant.SanitizeIdentifier(string(id))

	exists, err := p.storageExists(ctx, ident, mode)
	if err != nil {
		return nil, fmt.Errorf("check storage existence: %w", err)
	}
	if !exists {
		return nil, apperrors.NewTenantNotFoundError(string(id))
	}

	password, err := generatePassword()
	if err != nil {
		return nil, fmt.Errorf("generate credential: %w", err)
	}
	username := roleName(ident)

	roleExists, err := p.roleExists(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check role existence: %w", err)
	}
	if roleExists {
		if err := p.conn.Exec(ctx, fmt.Sprintf(`ALTER USER %s WITH PASSWORD %s`,
			quoteIdent(username), quoteLiteral(password))); err != nil {
			return nil, fmt.Errorf("rotate role credential: %w", err)
		}
	} else {
		if err := p.createRole(ctx, username, password); err != nil {
			return nil, fmt.Errorf("create role %q: %w", username, err)
		}
	}
	if err := p.grant(ctx, ident, username, mode); err != nil {
		return nil, fmt.Errorf("grant on %q: %w", ident, err)
	}

	p.logger.Info("adopted existing tenant storage",
		"tenant_id", id,
		"mode", mode,
		"identifier", ident)

	return &ProvisionResult{
		TenantID:          id,
		Mode:              mode,
		StorageIdentifier: ident,
		DSN:               p.buildDSN(ident, mode),
		Username:          username,
		Password:          password,
	}, nil
}

// Drop removes tenant storage and its role. Used for onboarding rollback
// and for explicit offboarding.
func (p *Provisioner) Drop(ctx context.Context, id tenant.ID, mode tenant.StorageMode) error {
	ident := tenant.SanitizeIdentifier(string(id))
	username := roleName(ident)

	switch mode {
	case tenant.StorageModeSchema:
		if err := p.conn.Exec(ctx, fmt.Sprintf(`DROP SCHEMA IF EXISTS %s CASCADE`, quoteIdent(ident))); err != nil {
			return fmt.Errorf("drop schema %q: %w", ident, err)
		}
	case tenant.StorageModeDatabase:
		if err := p.conn.Exec(ctx, fmt.Sprintf(`DROP DATABASE IF EXISTS %s`, quoteIdent(ident))); err != nil {
			return fmt.Errorf("drop database %q: %w", ident, err)
		}
	default:
		return fmt.Errorf("unknown storage mode %q", mode)
	}

	if err := p.conn.Exec(ctx, fmt.Sprintf(`DROP ROLE IF EXISTS %s`, quoteIdent(username))); err != nil {
		return fmt.Errorf("drop role %q: %w", username, err)
	}

	p.logger.Info("dropped tenant storage",
		"tenant_id", id,
		"mode", mode,
		"identifier", ident)
	return nil
}

func (p *Provisioner) checkMode(id tenant.ID, mode tenant.StorageMode) error {
	switch mode {
	case tenant.StorageModeSchema:
		return nil
	case tenant.StorageModeDatabase:
		if !p.cfg.DatabasePerTenantEnabled {
			return apperrors.NewStorageModeDisabledError(string(id), string(mode))
		}
		return nil
	default:
		return fmt.Errorf("unknown storage mode %q", mode)
	}
}

func (p *Provisioner) storageExists(ctx context.Context, ident string, mode tenant.StorageMode) (bool, error) {
	var count int64
	switch mode {
	case tenant.StorageModeSchema:
		if err := p.conn.QueryValue(ctx, &count,
			`SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = ?`, ident); err != nil {
			return false, err
		}
	case tenant.StorageModeDatabase:
		if err := p.conn.QueryValue(ctx, &count,
			`SELECT COUNT(*) FROM pg_database WHERE datname = ?`, ident); err != nil {
			return false, err
		}
	}
	return count > 0, nil
}

func (p *Provisioner) roleExists(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := p.conn.QueryValue(ctx, &count,
		`SELECT COUNT(*) FROM pg_roles WHERE rolname = ?`, username); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *Provisioner) createStorage(ctx context.Context, ident string, mode tenant.StorageMode) error {
	switch mode {
	case tenant.StorageModeSchema:
		return p.conn.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA %s`, quoteIdent(ident)))
	case tenant.StorageModeDatabase:
		// CREATE DATABASE cannot run inside a transaction block.
		return p.conn.Exec(ctx, fmt.Sprintf(`CREATE DATABASE %s`, quoteIdent(ident)))
	}
	return fmt.Errorf("unknown storage mode %q", mode)
}

func (p *Provisioner) createRole(ctx context.Context, username, password string) error {
	return p.conn.Exec(ctx, fmt.Sprintf(`CREATE USER %s WITH PASSWORD %s`,
		quoteIdent(username), quoteLiteral(password)))
}

func (p *Provisioner) grant(ctx context.Context, ident, username string, mode tenant.StorageMode) error {
	switch mode {
	case tenant.StorageModeSchema:
		if err := p.conn.Exec(ctx, fmt.Sprintf(`GRANT USAGE, CREATE ON SCHEMA %s TO %s`,
			quoteIdent(ident), quoteIdent(username))); err != nil {
			return err
		}
		return p.conn.Exec(ctx, fmt.Sprintf(
			`ALTER DEFAULT PRIVILEGES IN SCHEMA %s GRANT ALL ON TABLES TO %s`,
			quoteIdent(ident), quoteIdent(username)))
	case tenant.StorageModeDatabase:
		return p.conn.Exec(ctx, fmt.Sprintf(`GRANT ALL PRIVILEGES ON DATABASE %s TO %s`,
			quoteIdent(ident), quoteIdent(username)))
	}
	return fmt.Errorf("unknown storage mode %q", mode)
}

// buildDSN derives the connection URL stored in the registry record.
// SCHEMA mode points at the shared database with a search_path override;
// DATABASE mode points at the dedicated database.
func (p *Provisioner) buildDSN(ident string, mode tenant.StorageMode) string {
	if mode == tenant.StorageModeDatabase {
		return fmt.Sprintf("postgres://%s:%d/%s", p.cfg.DBHost, p.cfg.DBPort, ident)
	}
	return fmt.Sprintf("postgres://%s:%d/%s?search_path=%s",
		p.cfg.DBHost, p.cfg.DBPort, p.cfg.AdminDatabase, ident)
}

// roleName derives the database role for a storage identifier, keeping the
// result inside the PostgreSQL identifier limit.
func roleName(ident string) string {
	name := "t_" + strings.TrimPrefix(ident, "t_")
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}

// quoteIdent double-quotes a PostgreSQL identifier.
func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// quoteLiteral single-quotes a PostgreSQL string literal.
func quoteLiteral(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

// generatePassword produces a random credential for a tenant role.
func generatePassword() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
