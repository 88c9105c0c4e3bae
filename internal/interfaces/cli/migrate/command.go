package migrate

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atrium-dev/atrium/internal/application/tenant/usecases"
	"github.com/atrium-dev/atrium/internal/domain/tenant"
	"github.com/atrium-dev/atrium/internal/infrastructure/config"
	"github.com/atrium-dev/atrium/internal/infrastructure/database"
	"github.com/atrium-dev/atrium/internal/infrastructure/registry"
	"github.com/atrium-dev/atrium/internal/infrastructure/repository"
	"github.com/atrium-dev/atrium/internal/infrastructure/tenancy"
	"github.com/atrium-dev/atrium/internal/shared/logger"
)

var (
	env      string
	tenantID string
	all      bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Tenant schema migration tools",
		Long:  `Run tenant schema migrations and inspect their status. Migrations apply per tenant, against each tenant's own schema or database.`,
	}

	cmd.PersistentFlags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.PersistentFlags().StringVarP(&tenantID, "tenant", "t", "", "Tenant identifier to migrate")
	cmd.PersistentFlags().BoolVar(&all, "all", false, "Run against every registered tenant")

	cmd.AddCommand(
		newUpCommand(),
		newStatusCommand(),
	)

	return cmd
}

func newUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Run all pending tenant migrations",
		Long:  `Bring one tenant, or every registered tenant, up to the current schema version.`,
		RunE:  runUp,
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show tenant migration status",
		Long:  `Display the recorded schema version for one tenant or every registered tenant.`,
		RunE:  runStatus,
	}
}

type migrateEnv struct {
	migrateUC  *usecases.MigrateTenantUseCase
	recordRepo tenant.RecordRepository
	log        logger.Interface
}

func initEnv() (*migrateEnv, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log := logger.NewLogger()

	if err := database.Init(&cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to initialize administrative database: %w", err)
	}

	cipher, err := registry.NewCredentialCipher(cfg.Registry.CredentialSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to build credential cipher: %w", err)
	}

	recordRepo := repository.NewTenantRecordRepository(database.Get())
	migrator := tenancy.NewMigrator(&cfg.Tenancy, log)

	return &migrateEnv{
		migrateUC:  usecases.NewMigrateTenantUseCase(migrator, cipher, recordRepo, log),
		recordRepo: recordRepo,
		log:        log,
	}, nil
}

func targetTenants(ctx context.Context, menv *migrateEnv) ([]string, error) {
	if all {
		records, err := menv.recordRepo.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list tenant records: %w", err)
		}
		ids := make([]string, 0, len(records))
		for _, record := range records {
			ids = append(ids, string(record.TenantID))
		}
		return ids, nil
	}

	if tenantID == "" {
		return nil, fmt.Errorf("either --tenant or --all is required")
	}
	return []string{tenantID}, nil
}

func runUp(cmd *cobra.Command, args []string) error {
	menv, err := initEnv()
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer database.Close()

	ctx := cmd.Context()

	ids, err := targetTenants(ctx, menv)
	if err != nil {
		return err
	}

	var failed int
	for _, id := range ids {
		result, err := menv.migrateUC.Execute(ctx, id)
		if err != nil {
			menv.log.Errorw("tenant migration failed", "tenant_id", id, "error", err)
			failed++
			continue
		}
		fmt.Printf("%s: %d -> %d\n", id, result.FromVersion, result.ToVersion)
	}

	if failed > 0 {
		return fmt.Errorf("migration failed for %d of %d tenants", failed, len(ids))
	}

	menv.log.Infow("tenant migrations completed", "tenants", len(ids))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	menv, err := initEnv()
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer database.Close()

	ctx := cmd.Context()

	ids, err := targetTenants(ctx, menv)
	if err != nil {
		return err
	}

	fmt.Printf("\nTenant Migration Status:\n")
	for _, rawID := range ids {
		id, err := tenant.ParseID(rawID)
		if err != nil {
			return fmt.Errorf("invalid tenant id %q: %w", rawID, err)
		}

		record, err := menv.recordRepo.GetByTenantID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load record for %s: %w", id, err)
		}
		if record == nil {
			fmt.Printf("  %-24s not onboarded\n", rawID)
			continue
		}

		fmt.Printf("  %-24s mode=%-8s status=%-9s version=%d\n",
			record.TenantID, record.Mode, record.Status, record.LastMigrationVersion)
	}

	return nil
}
