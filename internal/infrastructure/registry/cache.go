package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/atrium-dev/atrium/internal/domain/tenant"
	"github.com/atrium-dev/atrium/internal/shared/config"
	"github.com/atrium-dev/atrium/internal/shared/logger"
)

type cacheEntry struct {
	info      *tenant.ConnectionInfo
	expiresAt time.Time
}

// CachedRegistry wraps a Registry with a bounded TTL cache. Concurrent
// misses for the same tenant collapse into a single upstream fetch, and
// failed fetches are never cached.
type CachedRegistry struct {
	inner   tenant.Registry
	entries *lru.Cache[string, *cacheEntry]
	ttl     time.Duration
	group   singleflight.Group
	clock   clock.Clock
	logger  logger.Interface
}

// NewCachedRegistry builds the cache layer from configuration.
func NewCachedRegistry(inner tenant.Registry, cfg *config.TenantCacheConfig, log logger.Interface) (*CachedRegistry, error) {
	entries, err := lru.New[string, *cacheEntry](cfg.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("create tenant cache: %w", err)
	}

	return &CachedRegistry{
		inner:   inner,
		entries: entries,
		ttl:     time.Duration(cfg.TTLMinutes) * time.Minute,
		clock:   clock.New(),
		logger:  log,
	}, nil
}

// Fetch returns the cached connection info when present and fresh,
// otherwise loads it from the inner registry.
func (c *CachedRegistry) Fetch(ctx context.Context, id tenant.ID) (*tenant.ConnectionInfo, error) {
	key := string(id)

	if entry, ok := c.entries.Get(key); ok && c.clock.Now().Before(entry.expiresAt) {
		return entry.info, nil
	}

	// The load is shared by every coalesced caller, so it must not die
	// with whichever caller's context happens to drive it. The inner
	// client bounds its own attempts.
	loadCtx := context.WithoutCancel(ctx)

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Another caller may have completed the load while we waited.
		if entry, ok := c.entries.Get(key); ok && c.clock.Now().Before(entry.expiresAt) {
			return entry.info, nil
		}

		info, err := c.inner.Fetch(loadCtx, id)
		if err != nil {
			return nil, err
		}

		c.entries.Add(key, &cacheEntry{
			info:      info,
			expiresAt: c.clock.Now().Add(c.ttl),
		})
		return info, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*tenant.ConnectionInfo), nil
}

// Invalidate drops a single tenant entry.
func (c *CachedRegistry) Invalidate(id tenant.ID) {
	if c.entries.Remove(string(id)) {
		c.logger.Debug("invalidated tenant cache entry", "tenant_id", id)
	}
}

// InvalidateAll drops every cached entry.
func (c *CachedRegistry) InvalidateAll() {
	c.entries.Purge()
	c.logger.Info("invalidated all tenant cache entries")
}

// Len reports the number of cached entries, fresh or stale.
func (c *CachedRegistry) Len() int {
	return c.entries.Len()
}
