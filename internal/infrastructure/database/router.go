package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/singleflight"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/atrium-dev/atrium/internal/domain/tenant"
	"github.com/atrium-dev/atrium/internal/shared/config"
	apperrors "github.com/atrium-dev/atrium/internal/shared/errors"
	"github.com/atrium-dev/atrium/internal/shared/logger"
)

var errEvictedDuringBuild = errors.New("pool evicted while being built")

// PoolOpener builds a connection pool from resolved tenant credentials.
// Injected so tests can substitute a local database.
type PoolOpener func(info *tenant.ConnectionInfo) (*gorm.DB, error)

type tenantPool struct {
	db       *gorm.DB
	lastUsed atomic.Int64 // unix nanos
}

func (p *tenantPool) touch(now time.Time) {
	p.lastUsed.Store(now.UnixNano())
}

// Router resolves the database handle for a unit of work. Requests carrying
// a tenant association get a per-tenant pool built lazily from registry
// metadata; requests without one get the administrative pool.
type Router struct {
	registry tenant.Registry
	admin    *gorm.DB
	opener   PoolOpener

	mu    sync.RWMutex
	pools map[tenant.ID]*tenantPool
	group singleflight.Group

	maxPools int
	idleTTL  time.Duration
	clock    clock.Clock
	logger   logger.Interface
}

// NewRouter builds a router over the given registry and administrative pool.
// A nil opener falls back to opening real PostgreSQL pools.
func NewRouter(registry tenant.Registry, admin *gorm.DB, cfg *config.TenancyConfig, opener PoolOpener, log logger.Interface) *Router {
	if opener == nil {
		opener = openPostgresPool
	}
	return &Router{
		registry: registry,
		admin:    admin,
		opener:   opener,
		pools:    make(map[tenant.ID]*tenantPool),
		maxPools: cfg.MaxTenantPools,
		idleTTL:  time.Duration(cfg.PoolIdleMinutes) * time.Minute,
		clock:    clock.New(),
		logger:   log,
	}
}

// Resolve returns the pool for the tenant associated with ctx, or the
// administrative pool when ctx carries no tenant.
func (r *Router) Resolve(ctx context.Context) (*gorm.DB, error) {
	id, ok := tenant.FromContext(ctx)
	if !ok || id == "" {
		return r.admin, nil
	}

	r.mu.RLock()
	pool, exists := r.pools[id]
	r.mu.RUnlock()
	if exists {
		pool.touch(r.clock.Now())
		return pool.db, nil
	}

	result, err, _ := r.group.Do(string(id), func() (interface{}, error) {
		r.mu.RLock()
		pool, exists := r.pools[id]
		r.mu.RUnlock()
		if exists {
			return pool, nil
		}
		return r.buildPool(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	pool = result.(*tenantPool)
	pool.touch(r.clock.Now())
	return pool.db, nil
}

func (r *Router) buildPool(ctx context.Context, id tenant.ID) (*tenantPool, error) {
	info, err := r.registry.Fetch(ctx, id)
	if err != nil {
		// Registry errors already carry their classification.
		return nil, err
	}

	db, err := r.opener(info)
	if err != nil {
		return nil, apperrors.NewRoutingUnavailableError(string(id), err)
	}

	pool := &tenantPool{db: db}
	pool.touch(r.clock.Now())

	r.mu.Lock()
	r.pools[id] = pool
	victim := r.pickEvictionVictimLocked(id)
	r.mu.Unlock()

	if victim != "" {
		r.Evict(victim)
	}

	// A concurrent Evict may have removed and closed the pool between
	// publication and here. Hand out only a pool that is still published;
	// the next Resolve rebuilds it.
	if !r.stillPublished(id, pool) {
		return nil, apperrors.NewRoutingUnavailableError(string(id), errEvictedDuringBuild)
	}

	r.logger.Info("opened tenant connection pool", "tenant_id", id)
	return pool, nil
}

func (r *Router) stillPublished(id tenant.ID, pool *tenantPool) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pools[id] == pool
}

// pickEvictionVictimLocked returns the least recently used pool when the
// router is over capacity. The just-added tenant is never the victim.
func (r *Router) pickEvictionVictimLocked(added tenant.ID) tenant.ID {
	if r.maxPools <= 0 || len(r.pools) <= r.maxPools {
		return ""
	}

	var victim tenant.ID
	var oldest int64
	for id, pool := range r.pools {
		if id == added {
			continue
		}
		if used := pool.lastUsed.Load(); victim == "" || used < oldest {
			victim = id
			oldest = used
		}
	}
	return victim
}

// Evict closes and removes the pool for a tenant. A later Resolve rebuilds
// it from fresh registry metadata.
func (r *Router) Evict(id tenant.ID) {
	r.mu.Lock()
	pool, exists := r.pools[id]
	delete(r.pools, id)
	r.mu.Unlock()

	if !exists {
		return
	}
	r.closePool(id, pool)
}

// EvictIdle closes pools that have not served a unit of work within the
// configured idle window.
func (r *Router) EvictIdle() int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := r.clock.Now().Add(-r.idleTTL).UnixNano()

	r.mu.Lock()
	stale := make(map[tenant.ID]*tenantPool)
	for id, pool := range r.pools {
		if pool.lastUsed.Load() < cutoff {
			stale[id] = pool
			delete(r.pools, id)
		}
	}
	r.mu.Unlock()

	for id, pool := range stale {
		r.closePool(id, pool)
	}
	return len(stale)
}

// Close tears down every tenant pool. The administrative pool is owned by
// the caller and left open.
func (r *Router) Close() {
	r.mu.Lock()
	pools := r.pools
	r.pools = make(map[tenant.ID]*tenantPool)
	r.mu.Unlock()

	for id, pool := range pools {
		r.closePool(id, pool)
	}
}

// Len reports the number of live tenant pools.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pools)
}

func (r *Router) closePool(id tenant.ID, pool *tenantPool) {
	sqlDB, err := pool.db.DB()
	if err != nil {
		r.logger.Warn("failed to access tenant pool for close", "tenant_id", id, "error", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		r.logger.Warn("failed to close tenant pool", "tenant_id", id, "error", err)
		return
	}
	r.logger.Info("closed tenant connection pool", "tenant_id", id)
}

// openPostgresPool opens a real per-tenant PostgreSQL pool with settings
// sized for many coexisting pools.
func openPostgresPool(info *tenant.ConnectionInfo) (*gorm.DB, error) {
	dsn, err := buildPoolDSN(info)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:      gormlogger.Default.LogMode(gormlogger.Warn),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open tenant pool: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// buildPoolDSN merges the registry credentials into the registry DSN. The
// credentials from the record override any embedded in the URL.
func buildPoolDSN(info *tenant.ConnectionInfo) (string, error) {
	u, err := url.Parse(info.DSN)
	if err != nil {
		return "", fmt.Errorf("parse tenant DSN: %w", err)
	}
	if info.Username != "" {
		u.User = url.UserPassword(info.Username, info.Password)
	}
	return u.String(), nil
}
