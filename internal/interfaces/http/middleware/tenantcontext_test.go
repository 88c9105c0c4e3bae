package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/atrium-dev/atrium/internal/domain/tenant"
)

func setupTenantRouter() (*gin.Engine, *struct {
	id    tenant.ID
	bound bool
}) {
	gin.SetMode(gin.TestMode)
	seen := &struct {
		id    tenant.ID
		bound bool
	}{}

	router := gin.New()
	router.Use(TenantContext())
	router.GET("/probe", func(c *gin.Context) {
		seen.id, seen.bound = tenant.FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})
	return router, seen
}

func TestTenantContextBindsHeader(t *testing.T) {
	router, seen := setupTenantRouter()

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(TenantHeader, "acme")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, seen.bound)
	assert.Equal(t, tenant.ID("acme"), seen.id)
}

func TestTenantContextWithoutHeaderLeavesRequestUnbound(t *testing.T) {
	router, seen := setupTenantRouter()

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, seen.bound)
}

func TestTenantContextRejectsInvalidHeader(t *testing.T) {
	router, seen := setupTenantRouter()

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(TenantHeader, "not a tenant!")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, seen.bound)
}
