// Package http wires the service's HTTP surface: the internal tenant
// lifecycle API and the tenant-aware request pipeline.
package http

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/atrium-dev/atrium/internal/application/tenant/usecases"
	"github.com/atrium-dev/atrium/internal/infrastructure/config"
	"github.com/atrium-dev/atrium/internal/infrastructure/database"
	"github.com/atrium-dev/atrium/internal/infrastructure/pubsub"
	"github.com/atrium-dev/atrium/internal/infrastructure/registry"
	"github.com/atrium-dev/atrium/internal/infrastructure/repository"
	"github.com/atrium-dev/atrium/internal/infrastructure/tenancy"
	tenanthandler "github.com/atrium-dev/atrium/internal/interfaces/http/handlers/tenant"
	"github.com/atrium-dev/atrium/internal/shared/logger"
)

// Container holds the wired components of the service.
type Container struct {
	Cipher        *registry.CredentialCipher
	Registry      *registry.CachedRegistry
	Router        *database.Router
	Provisioner   *tenancy.Provisioner
	Migrator      *tenancy.Migrator
	Bus           *pubsub.RedisInvalidationBus
	TenantHandler *tenanthandler.Handler
}

// BuildContainer assembles the full component graph. The redis client may
// be nil, in which case cross-instance invalidation is disabled.
func BuildContainer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, log logger.Interface) (*Container, error) {
	cipher, err := registry.NewCredentialCipher(cfg.Registry.CredentialSecret)
	if err != nil {
		return nil, fmt.Errorf("build credential cipher: %w", err)
	}

	client, err := registry.NewClient(&cfg.Registry, cipher, log)
	if err != nil {
		return nil, fmt.Errorf("build registry client: %w", err)
	}

	cached, err := registry.NewCachedRegistry(client, &cfg.TenantCache, log)
	if err != nil {
		return nil, fmt.Errorf("build tenant cache: %w", err)
	}

	poolRouter := database.NewRouter(cached, db, &cfg.Tenancy, nil, log)

	provisioner := tenancy.NewProvisioner(tenancy.NewGormAdminConn(db), &cfg.Tenancy, log)
	migrator := tenancy.NewMigrator(&cfg.Tenancy, log)
	recordRepo := repository.NewTenantRecordRepository(db)

	onboardUC := usecases.NewOnboardTenantUseCase(provisioner, migrator, cipher, recordRepo, &cfg.Tenancy, log)
	migrateUC := usecases.NewMigrateTenantUseCase(migrator, cipher, recordRepo, log)
	suspendUC := usecases.NewSuspendTenantUseCase(recordRepo, cached, poolRouter, log)
	offboardUC := usecases.NewOffboardTenantUseCase(provisioner, recordRepo, cached, poolRouter, log)

	container := &Container{
		Cipher:      cipher,
		Registry:    cached,
		Router:      poolRouter,
		Provisioner: provisioner,
		Migrator:    migrator,
	}

	if redisClient != nil {
		bus := pubsub.NewRedisInvalidationBus(redisClient, log)
		onboardUC.SetInvalidationPublisher(bus)
		suspendUC.SetInvalidationPublisher(bus)
		offboardUC.SetInvalidationPublisher(bus)
		container.Bus = bus
	}

	container.TenantHandler = tenanthandler.NewHandler(
		onboardUC,
		migrateUC,
		suspendUC,
		offboardUC,
		usecases.NewGetTenantUseCase(recordRepo),
		usecases.NewListTenantsUseCase(recordRepo),
		usecases.NewGetConnectionInfoUseCase(recordRepo, log),
	)

	return container, nil
}
