package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atrium-dev/atrium/internal/domain/tenant"
	"github.com/atrium-dev/atrium/internal/shared/utils"
)

// TenantHeader names the header data-plane requests carry their tenant in.
const TenantHeader = "X-Tenant-ID"

// TenantContext binds the tenant named by the request header to the request
// context for the rest of the pipeline. Requests without the header proceed
// without a tenant association and resolve to the administrative pool.
func TenantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(TenantHeader)
		if raw == "" {
			c.Next()
			return
		}

		id, err := tenant.ParseID(raw)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "invalid tenant identifier")
			c.Abort()
			return
		}

		ctx := tenant.WithTenant(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Set("tenant_id", string(id))

		c.Next()
	}
}
