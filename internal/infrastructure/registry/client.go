package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/atrium-dev/atrium/internal/domain/tenant"
	"github.com/atrium-dev/atrium/internal/shared/config"
	apperrors "github.com/atrium-dev/atrium/internal/shared/errors"
	"github.com/atrium-dev/atrium/internal/shared/logger"
)

const retryInitialInterval = 300 * time.Millisecond

// dbInfoResponse is the wire payload of the registry db-info endpoint.
// The field names are a compatibility contract with existing registry
// deployments and must not change.
type dbInfoResponse struct {
	JDBCURL  string `json:"jdbcUrl"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Client fetches tenant connection metadata from the central registry
// service over HTTP, retrying transient failures with exponential backoff.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cipher     *CredentialCipher
	maxRetries int
	logger     logger.Interface
}

// NewClient builds a registry client from configuration. The cipher may be
// nil, in which case encrypted passwords are rejected.
func NewClient(cfg *config.RegistryConfig, cipher *CredentialCipher, log logger.Interface) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("registry base URL must not be empty")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse registry base URL: %w", err)
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		cipher:     cipher,
		maxRetries: cfg.MaxRetries,
		logger:     log,
	}, nil
}

// Fetch resolves the connection info for a tenant. Transient registry
// failures are retried; a missing tenant and an undecryptable credential
// are permanent and fail immediately.
func (c *Client) Fetch(ctx context.Context, id tenant.ID) (*tenant.ConnectionInfo, error) {
	if _, err := tenant.ParseID(string(id)); err != nil {
		return nil, apperrors.NewTenantNotFoundError(string(id))
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = retryInitialInterval

	info, err := backoff.Retry(ctx, func() (*tenant.ConnectionInfo, error) {
		return c.fetchOnce(ctx, id)
	}, backoff.WithBackOff(expBackoff), backoff.WithMaxTries(uint(c.maxRetries)))
	if err != nil {
		return nil, c.classifyError(id, err)
	}

	return info, nil
}

func (c *Client) fetchOnce(ctx context.Context, id tenant.ID) (*tenant.ConnectionInfo, error) {
	endpoint := fmt.Sprintf("%s/internal/tenants/%s/db-info", c.baseURL, url.PathEscape(string(id)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build registry request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call registry: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(apperrors.NewTenantNotFoundError(string(id)))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	var payload dbInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode registry response: %w", err)
	}
	if payload.JDBCURL == "" {
		// An empty body on 200 means the registry has no record either.
		return nil, backoff.Permanent(apperrors.NewTenantNotFoundError(string(id)))
	}

	password := payload.Password
	if IsEncrypted(password) {
		if c.cipher == nil {
			return nil, backoff.Permanent(apperrors.NewRegistryUnavailableError(string(id),
				errors.New("received encrypted credential but no cipher is configured")))
		}
		plain, err := c.cipher.Decrypt(password)
		if err != nil {
			c.logger.Error("failed to decrypt tenant credential", "tenant_id", id, "error", err)
			return nil, backoff.Permanent(apperrors.NewRegistryUnavailableError(string(id),
				fmt.Errorf("decrypt credential: %w", err)))
		}
		password = plain
	}

	return &tenant.ConnectionInfo{
		DSN:      payload.JDBCURL,
		Username: payload.Username,
		Password: password,
	}, nil
}

// classifyError maps the terminal retry error onto the tenant error taxonomy.
func (c *Client) classifyError(id tenant.ID, err error) error {
	if tenantErr := apperrors.GetTenantError(err); tenantErr != nil {
		return tenantErr
	}
	if isTimeout(err) {
		return apperrors.NewRegistryTimeoutError(string(id))
	}
	return apperrors.NewRegistryUnavailableError(string(id), err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
