package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/atrium-dev/atrium/internal/domain/tenant"
	"github.com/atrium-dev/atrium/internal/infrastructure/config"
	"github.com/atrium-dev/atrium/internal/infrastructure/database"
	"github.com/atrium-dev/atrium/internal/infrastructure/persistence/models"
	"github.com/atrium-dev/atrium/internal/infrastructure/pubsub"
	"github.com/atrium-dev/atrium/internal/infrastructure/scheduler"
	httpRouter "github.com/atrium-dev/atrium/internal/interfaces/http"
	"github.com/atrium-dev/atrium/internal/shared/goroutine"
	"github.com/atrium-dev/atrium/internal/shared/logger"
)

var (
	env          string
	autoMigrate  bool
	disableRedis bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server",
		Long:  `Start the Atrium data-plane router with the specified configuration.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Create administrative tables on startup (not recommended for production)")
	cmd.Flags().BoolVar(&disableRedis, "no-redis", false, "Disable cross-instance cache invalidation")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Server.Mode = mapEnvToGinMode(env)

	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	log := logger.NewLogger()
	log.Infow("starting server", "environment", env)

	gin.SetMode(cfg.Server.Mode)
	gin.DefaultWriter = io.Discard

	if err := database.Init(&cfg.Database); err != nil {
		log.Fatalw("failed to initialize administrative database", "error", err)
	}
	defer database.Close()

	if autoMigrate {
		if env == "production" {
			log.Warnw("auto-migration is enabled in production environment")
		}
		if err := database.Get().AutoMigrate(&models.TenantRecordModel{}); err != nil {
			log.Fatalw("auto-migration failed", "error", err)
		}
		log.Infow("administrative tables migrated")
	}

	var redisClient *redis.Client
	if !disableRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warnw("redis unavailable, cross-instance invalidation disabled", "error", err)
			_ = redisClient.Close()
			redisClient = nil
		}
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	container, err := httpRouter.BuildContainer(cfg, database.Get(), redisClient, log)
	if err != nil {
		log.Fatalw("failed to build application container", "error", err)
	}
	defer container.Router.Close()

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	if container.Bus != nil {
		startInvalidationListener(bgCtx, container, log)
	}

	sched, err := scheduler.NewSchedulerManager(log)
	if err != nil {
		log.Fatalw("failed to build scheduler", "error", err)
	}
	if err := sched.RegisterPoolMaintenanceJobs(container.Router, cfg.Tenancy.PoolIdleMinutes); err != nil {
		log.Fatalw("failed to register pool maintenance jobs", "error", err)
	}
	if err := sched.RegisterCacheReportJobs(container.Registry); err != nil {
		log.Fatalw("failed to register cache report jobs", "error", err)
	}
	sched.Start()
	defer sched.Stop()

	router := httpRouter.NewRouter(&cfg.Server, container, log)

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      router.Engine(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "address", cfg.Server.GetAddr(), "mode", cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
		return err
	}

	log.Infow("server exited gracefully")
	return nil
}

// startInvalidationListener applies invalidation events published by other
// instances to the local metadata cache and connection pools. The
// subscription blocks, so it runs on its own goroutine until ctx ends.
func startInvalidationListener(ctx context.Context, container *httpRouter.Container, log logger.Interface) {
	goroutine.SafeGo(log, "invalidation-listener", func() {
		err := container.Bus.SubscribeInvalidations(ctx, func(event pubsub.TenantInvalidationEvent) {
			if event.TenantID == "" {
				log.Infow("flushing all tenant metadata", "reason", event.Reason)
				container.Registry.InvalidateAll()
				container.Router.Close()
				return
			}

			id, err := tenant.ParseID(event.TenantID)
			if err != nil {
				log.Warnw("ignoring invalidation for malformed tenant id",
					"tenant_id", event.TenantID, "reason", event.Reason)
				return
			}

			log.Infow("invalidating tenant", "tenant_id", event.TenantID, "reason", event.Reason)
			container.Registry.Invalidate(id)
			container.Router.Evict(id)
		})
		if err != nil && ctx.Err() == nil {
			log.Errorw("invalidation subscription ended", "error", err)
		}
	})
}

func mapEnvToGinMode(environment string) string {
	switch environment {
	case "production", "prod", "release":
		return "release"
	case "test", "testing":
		return "test"
	default:
		return "debug"
	}
}
