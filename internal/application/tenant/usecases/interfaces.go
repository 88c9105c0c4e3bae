package usecases

import (
	"context"

	"github.com/atrium-dev/atrium/internal/domain/tenant"
	"github.com/atrium-dev/atrium/internal/infrastructure/pubsub"
	"github.com/atrium-dev/atrium/internal/infrastructure/tenancy"
)

// StorageProvisioner creates, adopts, and destroys tenant storage.
type StorageProvisioner interface {
	Provision(ctx context.Context, id tenant.ID, mode tenant.StorageMode) (*tenancy.ProvisionResult, error)
	Adopt(ctx context.Context, id tenant.ID, mode tenant.StorageMode) (*tenancy.ProvisionResult, error)
	Drop(ctx context.Context, id tenant.ID, mode tenant.StorageMode) error
}

// TenantMigrator applies pending schema migrations to tenant storage.
type TenantMigrator interface {
	Migrate(ctx context.Context, id tenant.ID, info *tenant.ConnectionInfo) (uint, error)
}

// CredentialCipher seals and opens tenant database passwords.
type CredentialCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// PoolEvictor drops pooled connections for a tenant on this instance.
type PoolEvictor interface {
	Evict(id tenant.ID)
}

// CacheInvalidator drops cached tenant metadata on this instance.
type CacheInvalidator interface {
	Invalidate(id tenant.ID)
}

// InvalidationPublisher fans an invalidation out to the other instances.
type InvalidationPublisher = pubsub.InvalidationPublisher
