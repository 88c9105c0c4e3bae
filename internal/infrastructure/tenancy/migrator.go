package tenancy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/atrium-dev/atrium/internal/domain/tenant"
	"github.com/atrium-dev/atrium/internal/shared/config"
	apperrors "github.com/atrium-dev/atrium/internal/shared/errors"
	"github.com/atrium-dev/atrium/internal/shared/logger"
)

// migrationsTable keeps tenant migration history separate from any table
// the application schema itself defines.
const migrationsTable = "tenant_schema_migrations"

// BaselineVersion is the version reported for storage that has had no
// migration applied yet.
const BaselineVersion uint = 0

// driverFactory builds a golang-migrate database driver over an open
// connection. Injected so tests can run against a local database.
type driverFactory func(db *sql.DB) (database.Driver, error)

// Migrator applies versioned schema migrations to a single tenant's
// storage. Runs are idempotent: applying the same set twice is a no-op.
type Migrator struct {
	scriptsPath  string
	databaseName string
	newDriver    driverFactory
	logger       logger.Interface
}

// NewMigrator builds a PostgreSQL migrator from configuration.
func NewMigrator(cfg *config.TenancyConfig, log logger.Interface) *Migrator {
	return &Migrator{
		scriptsPath:  cfg.MigrationsPath,
		databaseName: "pgx5",
		newDriver: func(db *sql.DB) (database.Driver, error) {
			return migratepgx.WithInstance(db, &migratepgx.Config{
				MigrationsTable: migrationsTable,
			})
		},
		logger: log.With("component", "tenancy.migrator"),
	}
}

// Open dials the tenant's storage with the credentials from its record.
func (m *Migrator) Open(info *tenant.ConnectionInfo) (*sql.DB, error) {
	u, err := url.Parse(info.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse tenant DSN: %w", err)
	}
	if info.Username != "" {
		u.User = url.UserPassword(info.Username, info.Password)
	}

	db, err := sql.Open("pgx", u.String())
	if err != nil {
		return nil, fmt.Errorf("open tenant storage: %w", err)
	}
	return db, nil
}

// Migrate runs all pending migrations for the tenant and returns the
// resulting version. A failing script surfaces as a migration failure
// carrying the version the run stopped at.
func (m *Migrator) Migrate(ctx context.Context, id tenant.ID, info *tenant.ConnectionInfo) (uint, error) {
	db, err := m.Open(info)
	if err != nil {
		return BaselineVersion, apperrors.NewMigrationFailedError(string(id), BaselineVersion, err)
	}
	defer db.Close()

	return m.Run(ctx, id, db)
}

// Run executes pending migrations against an already-open connection.
func (m *Migrator) Run(ctx context.Context, id tenant.ID, db *sql.DB) (uint, error) {
	if err := ctx.Err(); err != nil {
		return BaselineVersion, err
	}

	driver, err := m.newDriver(db)
	if err != nil {
		return BaselineVersion, apperrors.NewMigrationFailedError(string(id), BaselineVersion,
			fmt.Errorf("create migration driver: %w", err))
	}

	instance, err := migrate.NewWithDatabaseInstance("file://"+m.scriptsPath, m.databaseName, driver)
	if err != nil {
		return BaselineVersion, apperrors.NewMigrationFailedError(string(id), BaselineVersion,
			fmt.Errorf("create migrate instance: %w", err))
	}
	defer instance.Close()

	current, dirty, err := m.version(instance)
	if err != nil {
		return BaselineVersion, apperrors.NewMigrationFailedError(string(id), BaselineVersion, err)
	}
	if dirty {
		return current, apperrors.NewMigrationFailedError(string(id), current,
			fmt.Errorf("migration history is dirty at version %d", current))
	}

	m.logger.Info("running tenant migrations",
		"tenant_id", id,
		"from_version", current)

	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		// Read back where the run stopped so the failure names it.
		failedAt, _, verr := m.version(instance)
		if verr != nil {
			failedAt = current
		}
		return failedAt, apperrors.NewMigrationFailedError(string(id), failedAt, err)
	}

	final, _, err := m.version(instance)
	if err != nil {
		return BaselineVersion, apperrors.NewMigrationFailedError(string(id), BaselineVersion, err)
	}

	m.logger.Info("tenant migrations completed",
		"tenant_id", id,
		"from_version", current,
		"to_version", final)
	return final, nil
}

// Version reports the tenant's current migration version without changing
// anything.
func (m *Migrator) Version(ctx context.Context, id tenant.ID, db *sql.DB) (uint, bool, error) {
	if err := ctx.Err(); err != nil {
		return BaselineVersion, false, err
	}

	driver, err := m.newDriver(db)
	if err != nil {
		return BaselineVersion, false, fmt.Errorf("create migration driver: %w", err)
	}

	instance, err := migrate.NewWithDatabaseInstance("file://"+m.scriptsPath, m.databaseName, driver)
	if err != nil {
		return BaselineVersion, false, fmt.Errorf("create migrate instance: %w", err)
	}
	defer instance.Close()

	return m.version(instance)
}

// version normalizes the no-history case to the baseline sentinel.
func (m *Migrator) version(instance *migrate.Migrate) (uint, bool, error) {
	current, dirty, err := instance.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return BaselineVersion, false, nil
	}
	if err != nil {
		return BaselineVersion, false, fmt.Errorf("read migration version: %w", err)
	}
	return current, dirty, nil
}
