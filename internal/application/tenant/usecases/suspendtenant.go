package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/atrium-dev/atrium/internal/domain/tenant"
	"github.com/atrium-dev/atrium/internal/infrastructure/pubsub"
	"github.com/atrium-dev/atrium/internal/shared/errors"
	"github.com/atrium-dev/atrium/internal/shared/logger"
)

// SuspendTenantUseCase marks a tenant suspended and flushes its metadata
// and pooled connections everywhere.
type SuspendTenantUseCase struct {
	recordRepo  tenant.RecordRepository
	invalidator CacheInvalidator
	evictor     PoolEvictor
	publisher   InvalidationPublisher // Optional, can be nil
	logger      logger.Interface
}

// NewSuspendTenantUseCase creates a new suspend tenant use case
func NewSuspendTenantUseCase(
	recordRepo tenant.RecordRepository,
	invalidator CacheInvalidator,
	evictor PoolEvictor,
	logger logger.Interface,
) *SuspendTenantUseCase {
	return &SuspendTenantUseCase{
		recordRepo:  recordRepo,
		invalidator: invalidator,
		evictor:     evictor,
		logger:      logger,
	}
}

// SetInvalidationPublisher sets the cross-instance publisher (optional dependency injection)
func (uc *SuspendTenantUseCase) SetInvalidationPublisher(publisher InvalidationPublisher) {
	uc.publisher = publisher
}

// Execute executes the suspend tenant use case
func (uc *SuspendTenantUseCase) Execute(ctx context.Context, tenantID string) error {
	id, err := tenant.ParseID(tenantID)
	if err != nil {
		return errors.NewValidationError("invalid tenant id", err.Error())
	}

	if err := uc.recordRepo.UpdateStatus(ctx, id, tenant.StatusSuspended); err != nil {
		return fmt.Errorf("failed to suspend tenant: %w", err)
	}

	uc.invalidator.Invalidate(id)
	uc.evictor.Evict(id)

	if uc.publisher != nil {
		pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := uc.publisher.PublishInvalidation(pubCtx, id, pubsub.ReasonTenantSuspended); err != nil {
			uc.logger.Warnw("failed to publish tenant invalidation",
				"tenant_id", id,
				"error", err)
		}
	}

	uc.logger.Infow("tenant suspended", "tenant_id", id)
	return nil
}
