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

// OffboardTenantUseCase removes a tenant: its storage, its role, and its
// registry record. Destructive and not undoable.
type OffboardTenantUseCase struct {
	provisioner StorageProvisioner
	recordRepo  tenant.RecordRepository
	invalidator CacheInvalidator
	evictor     PoolEvictor
	publisher   InvalidationPublisher // Optional, can be nil
	logger      logger.Interface
}

// NewOffboardTenantUseCase creates a new offboard tenant use case
func NewOffboardTenantUseCase(
	provisioner StorageProvisioner,
	recordRepo tenant.RecordRepository,
	invalidator CacheInvalidator,
	evictor PoolEvictor,
	logger logger.Interface,
) *OffboardTenantUseCase {
	return &OffboardTenantUseCase{
		provisioner: provisioner,
		recordRepo:  recordRepo,
		invalidator: invalidator,
		evictor:     evictor,
		logger:      logger,
	}
}

// SetInvalidationPublisher sets the cross-instance publisher (optional dependency injection)
func (uc *OffboardTenantUseCase) SetInvalidationPublisher(publisher InvalidationPublisher) {
	uc.publisher = publisher
}

// Execute executes the offboard tenant use case
func (uc *OffboardTenantUseCase) Execute(ctx context.Context, tenantID string) error {
	id, err := tenant.ParseID(tenantID)
	if err != nil {
		return errors.NewValidationError("invalid tenant id", err.Error())
	}

	record, err := uc.recordRepo.GetByTenantID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load tenant record: %w", err)
	}
	if record == nil {
		return errors.NewTenantNotFoundError(string(id))
	}

	// Drop connections before the storage disappears under them.
	uc.invalidator.Invalidate(id)
	uc.evictor.Evict(id)

	if err := uc.provisioner.Drop(ctx, id, record.Mode); err != nil {
		return fmt.Errorf("failed to drop tenant storage: %w", err)
	}

	if err := uc.recordRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete tenant record: %w", err)
	}

	if uc.publisher != nil {
		pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := uc.publisher.PublishInvalidation(pubCtx, id, pubsub.ReasonTenantDeleted); err != nil {
			uc.logger.Warnw("failed to publish tenant invalidation",
				"tenant_id", id,
				"error", err)
		}
	}

	uc.logger.Infow("tenant offboarded", "tenant_id", id)
	return nil
}
