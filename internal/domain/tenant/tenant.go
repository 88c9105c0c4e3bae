// Package tenant holds the core multi-tenancy domain: tenant identity,
// storage identifiers, connection metadata, and the registry port that
// infrastructure implementations satisfy.
package tenant

import (
	"regexp"
	"strings"

	"github.com/atrium-dev/atrium/internal/shared/errors"
)

// ID is the externally assigned tenant identifier. It is opaque, globally
// unique, and immutable once assigned.
type ID string

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

// ParseID validates a raw tenant identifier.
func ParseID(raw string) (ID, error) {
	raw = strings.TrimSpace(raw)
	if !idPattern.MatchString(raw) {
		return "", errors.NewValidationError("invalid tenant id",
			"must be 3-64 characters of [A-Za-z0-9_-]")
	}
	return ID(raw), nil
}

func (id ID) String() string {
	return string(id)
}

// StorageMode selects the isolation topology for a tenant's storage.
// It is chosen at provisioning time and fixed for the tenant's lifetime.
type StorageMode string

const (
	StorageModeSchema   StorageMode = "SCHEMA"
	StorageModeDatabase StorageMode = "DATABASE"
)

// ParseStorageMode validates a raw storage mode string.
func ParseStorageMode(raw string) (StorageMode, error) {
	switch StorageMode(strings.ToUpper(strings.TrimSpace(raw))) {
	case StorageModeSchema:
		return StorageModeSchema, nil
	case StorageModeDatabase:
		return StorageModeDatabase, nil
	default:
		return "", errors.NewValidationError("invalid storage mode", raw)
	}
}

func (m StorageMode) String() string {
	return string(m)
}

// ConnectionInfo is the decrypted connection metadata for one tenant's
// storage. Instances live only in memory; the durable registry record keeps
// the password encrypted.
type ConnectionInfo struct {
	DSN      string
	Username string
	Password string
}

// Status reflects a tenant's lifecycle state in the registry.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)
