package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Tenant lifecycle error types
const (
	ErrorTypeTenantNotFound      ErrorType = "tenant_not_found"
	ErrorTypeRegistryUnavailable ErrorType = "registry_unavailable"
	ErrorTypeRegistryTimeout     ErrorType = "registry_timeout"
	ErrorTypeStorageModeDisabled ErrorType = "storage_mode_disabled"
	ErrorTypeStorageExists       ErrorType = "storage_already_exists"
	ErrorTypeMigrationFailed     ErrorType = "migration_failed"
	ErrorTypeRoutingUnavailable  ErrorType = "routing_unavailable"
)

// TenantError carries the tenant id and lifecycle phase alongside the base
// error so callers can diagnose a failure without retrying blindly.
type TenantError struct {
	*AppError
	TenantID string
	Phase    string
}

// Error implements the error interface
func (e *TenantError) Error() string {
	if e.TenantID != "" {
		return fmt.Sprintf("%s [tenant=%s phase=%s]", e.AppError.Error(), e.TenantID, e.Phase)
	}
	return e.AppError.Error()
}

// Unwrap allows errors.Is and errors.As to work correctly
func (e *TenantError) Unwrap() error {
	return e.AppError
}

// NewTenantNotFoundError creates an error for a tenant missing from the registry
func NewTenantNotFoundError(tenantID string) *TenantError {
	return &TenantError{
		AppError: &AppError{
			Type:    ErrorTypeTenantNotFound,
			Message: "tenant not found",
			Code:    http.StatusNotFound,
		},
		TenantID: tenantID,
		Phase:    "registry_lookup",
	}
}

// NewRegistryUnavailableError creates an error for an exhausted registry fetch
func NewRegistryUnavailableError(tenantID string, cause error) *TenantError {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return &TenantError{
		AppError: &AppError{
			Type:    ErrorTypeRegistryUnavailable,
			Message: "tenant registry unavailable",
			Code:    http.StatusServiceUnavailable,
			Details: detail,
		},
		TenantID: tenantID,
		Phase:    "registry_fetch",
	}
}

// NewRegistryTimeoutError creates an error for a registry attempt exceeding its deadline
func NewRegistryTimeoutError(tenantID string) *TenantError {
	return &TenantError{
		AppError: &AppError{
			Type:    ErrorTypeRegistryTimeout,
			Message: "tenant registry request timed out",
			Code:    http.StatusGatewayTimeout,
		},
		TenantID: tenantID,
		Phase:    "registry_fetch",
	}
}

// NewStorageModeDisabledError creates an error for a provisioning mode switched off by configuration
func NewStorageModeDisabledError(tenantID, mode string) *TenantError {
	return &TenantError{
		AppError: &AppError{
			Type:    ErrorTypeStorageModeDisabled,
			Message: fmt.Sprintf("storage mode %s is disabled by configuration", mode),
			Code:    http.StatusPreconditionFailed,
		},
		TenantID: tenantID,
		Phase:    "provisioning",
	}
}

// NewStorageExistsError creates an error for a provisioning collision
func NewStorageExistsError(tenantID, identifier string) *TenantError {
	return &TenantError{
		AppError: &AppError{
			Type:    ErrorTypeStorageExists,
			Message: "storage already exists",
			Code:    http.StatusConflict,
			Details: identifier,
		},
		TenantID: tenantID,
		Phase:    "provisioning",
	}
}

// NewRoutingUnavailableError creates an error for a failed tenant pool construction
func NewRoutingUnavailableError(tenantID string, cause error) *TenantError {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return &TenantError{
		AppError: &AppError{
			Type:    ErrorTypeRoutingUnavailable,
			Message: "tenant connection routing unavailable",
			Code:    http.StatusServiceUnavailable,
			Details: detail,
		},
		TenantID: tenantID,
		Phase:    "routing",
	}
}

// MigrationError carries the version at which a tenant migration run stopped.
type MigrationError struct {
	*TenantError
	FailedVersion uint
	Cause         error
}

// Error implements the error interface
func (e *MigrationError) Error() string {
	return fmt.Sprintf("%s [version=%d]: %v", e.TenantError.Error(), e.FailedVersion, e.Cause)
}

// Unwrap allows errors.Is and errors.As to work correctly
func (e *MigrationError) Unwrap() error {
	return e.TenantError
}

// NewMigrationFailedError creates an error for a failed tenant migration run
func NewMigrationFailedError(tenantID string, version uint, cause error) *MigrationError {
	return &MigrationError{
		TenantError: &TenantError{
			AppError: &AppError{
				Type:    ErrorTypeMigrationFailed,
				Message: "tenant migration failed",
				Code:    http.StatusInternalServerError,
			},
			TenantID: tenantID,
			Phase:    "migration",
		},
		FailedVersion: version,
		Cause:         cause,
	}
}

// GetTenantError extracts TenantError from error
func GetTenantError(err error) *TenantError {
	var tenantErr *TenantError
	if stderrors.As(err, &tenantErr) {
		return tenantErr
	}
	return nil
}

// IsTenantNotFound checks if the error indicates a missing registry record
func IsTenantNotFound(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == ErrorTypeTenantNotFound
}

// IsRegistryUnavailable checks if the error indicates an exhausted registry fetch
func IsRegistryUnavailable(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == ErrorTypeRegistryUnavailable
}

// IsRegistryTimeout checks if the error indicates a registry deadline hit
func IsRegistryTimeout(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == ErrorTypeRegistryTimeout
}

// IsStorageModeDisabled checks if the error indicates a disabled provisioning mode
func IsStorageModeDisabled(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == ErrorTypeStorageModeDisabled
}

// IsStorageExists checks if the error indicates a provisioning collision
func IsStorageExists(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == ErrorTypeStorageExists
}

// IsMigrationFailed checks if the error indicates a failed migration run
func IsMigrationFailed(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == ErrorTypeMigrationFailed
}

// IsRoutingUnavailable checks if the error indicates a failed pool construction
func IsRoutingUnavailable(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == ErrorTypeRoutingUnavailable
}
