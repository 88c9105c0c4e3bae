package tenant

import (
	"context"
	"time"
)

// Record is the registry's view of a tenant: where its storage lives and
// how to connect to it. The password is held encrypted and only decrypted
// at the edge that hands credentials out.
type Record struct {
	TenantID             ID
	Mode                 StorageMode
	StorageIdentifier    string
	DSN                  string
	Username             string
	EncryptedPassword    string
	Status               Status
	LastMigrationVersion uint
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// RecordRepository persists registry records.
type RecordRepository interface {
	Create(ctx context.Context, record *Record) error
	GetByTenantID(ctx context.Context, id ID) (*Record, error)
	Update(ctx context.Context, record *Record) error
	UpdateStatus(ctx context.Context, id ID, status Status) error
	Delete(ctx context.Context, id ID) error
	List(ctx context.Context) ([]*Record, error)
}
