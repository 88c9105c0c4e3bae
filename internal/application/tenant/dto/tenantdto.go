package dto

import "time"

// OnboardTenantRequest starts the provisioning pipeline for a new tenant.
type OnboardTenantRequest struct {
	TenantID    string `json:"tenant_id" binding:"required"`
	StorageMode string `json:"storage_mode" binding:"required,oneof=SCHEMA DATABASE schema database"`
}

// TenantResponse describes a tenant's registry record.
type TenantResponse struct {
	TenantID          string    `json:"tenant_id"`
	StorageMode       string    `json:"storage_mode"`
	StorageIdentifier string    `json:"storage_identifier"`
	Status            string    `json:"status"`
	MigrationVersion  uint      `json:"migration_version"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ConnectionInfoResponse is the db-info payload served to data-plane
// instances. The field names are a compatibility contract with existing
// registry consumers and must not change.
type ConnectionInfoResponse struct {
	JDBCURL  string `json:"jdbcUrl"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// MigrateTenantResponse reports the outcome of a migration run.
type MigrateTenantResponse struct {
	TenantID    string `json:"tenant_id"`
	FromVersion uint   `json:"from_version"`
	ToVersion   uint   `json:"to_version"`
}
