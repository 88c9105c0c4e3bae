// Package scheduler provides unified scheduler management using gocron v2.
package scheduler

import (
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/atrium-dev/atrium/internal/shared/logger"
)

// IdleEvictor closes connection pools that have been idle past their
// threshold and reports how many were closed.
type IdleEvictor interface {
	EvictIdle() int
}

// CacheReporter exposes the current size of the tenant metadata cache.
type CacheReporter interface {
	Len() int
}

// SchedulerManager manages the periodic maintenance jobs of the data plane
// using gocron v2.
type SchedulerManager struct {
	scheduler gocron.Scheduler
	logger    logger.Interface

	started   bool
	startedMu sync.RWMutex
}

// NewSchedulerManager creates a new SchedulerManager instance.
func NewSchedulerManager(log logger.Interface) (*SchedulerManager, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	return &SchedulerManager{
		scheduler: scheduler,
		logger:    log,
	}, nil
}

// RegisterPoolMaintenanceJobs registers the idle pool eviction job. The job
// runs at half the idle threshold so a pool is closed at most one interval
// after it crosses the threshold. Disabled when idleMinutes is zero.
func (m *SchedulerManager) RegisterPoolMaintenanceJobs(evictor IdleEvictor, idleMinutes int) error {
	if idleMinutes <= 0 {
		m.logger.Infow("idle pool eviction disabled")
		return nil
	}

	interval := time.Duration(idleMinutes) * time.Minute / 2
	if interval < time.Minute {
		interval = time.Minute
	}

	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if evicted := evictor.EvictIdle(); evicted > 0 {
				m.logger.Infow("evicted idle tenant pools", "count", evicted)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("pool", "idle-eviction"),
		gocron.WithName("pool-idle-eviction"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered pool maintenance jobs", "interval", interval.String())
	return nil
}

// RegisterCacheReportJobs registers an hourly job that logs the tenant
// metadata cache size. Useful for sizing the cache capacity in production.
func (m *SchedulerManager) RegisterCacheReportJobs(reporter CacheReporter) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(time.Hour),
		gocron.NewTask(func() {
			m.logger.Infow("tenant metadata cache report", "entries", reporter.Len())
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("cache", "report"),
		gocron.WithName("tenant-cache-report"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered cache report jobs", "interval", "1h")
	return nil
}

// Start starts the scheduler and all registered jobs.
func (m *SchedulerManager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return
	}

	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler manager started", "job_count", len(m.scheduler.Jobs()))
}

// Stop gracefully stops the scheduler.
// It waits for all running jobs to complete before returning.
func (m *SchedulerManager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if !m.started {
		return nil
	}

	err := m.scheduler.Shutdown()
	m.started = false

	if err != nil {
		m.logger.Errorw("scheduler manager shutdown with error", "error", err)
		return err
	}

	m.logger.Infow("scheduler manager stopped")
	return nil
}

// IsStarted returns whether the scheduler is running.
func (m *SchedulerManager) IsStarted() bool {
	m.startedMu.RLock()
	defer m.startedMu.RUnlock()
	return m.started
}
