// Package tenant exposes the internal tenant lifecycle and registry API.
package tenant

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atrium-dev/atrium/internal/application/tenant/dto"
	"github.com/atrium-dev/atrium/internal/application/tenant/usecases"
	"github.com/atrium-dev/atrium/internal/shared/errors"
	"github.com/atrium-dev/atrium/internal/shared/logger"
	"github.com/atrium-dev/atrium/internal/shared/utils"
)

type Handler struct {
	onboardUC     *usecases.OnboardTenantUseCase
	migrateUC     *usecases.MigrateTenantUseCase
	suspendUC     *usecases.SuspendTenantUseCase
	offboardUC    *usecases.OffboardTenantUseCase
	getTenantUC   *usecases.GetTenantUseCase
	listTenantsUC *usecases.ListTenantsUseCase
	dbInfoUC      *usecases.GetConnectionInfoUseCase
	logger        logger.Interface
}

func NewHandler(
	onboardUC *usecases.OnboardTenantUseCase,
	migrateUC *usecases.MigrateTenantUseCase,
	suspendUC *usecases.SuspendTenantUseCase,
	offboardUC *usecases.OffboardTenantUseCase,
	getTenantUC *usecases.GetTenantUseCase,
	listTenantsUC *usecases.ListTenantsUseCase,
	dbInfoUC *usecases.GetConnectionInfoUseCase,
) *Handler {
	return &Handler{
		onboardUC:     onboardUC,
		migrateUC:     migrateUC,
		suspendUC:     suspendUC,
		offboardUC:    offboardUC,
		getTenantUC:   getTenantUC,
		listTenantsUC: listTenantsUC,
		dbInfoUC:      dbInfoUC,
		logger:        logger.NewLogger(),
	}
}

// RegisterRoutes mounts the internal API under the given group.
func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	tenants := group.Group("/tenants")
	{
		tenants.POST("", h.Onboard)
		tenants.GET("", h.List)
		tenants.GET("/:id", h.Get)
		tenants.GET("/:id/db-info", h.GetDBInfo)
		tenants.POST("/:id/migrate", h.Migrate)
		tenants.POST("/:id/suspend", h.Suspend)
		tenants.DELETE("/:id", h.Offboard)
	}
}

// Onboard provisions storage, migrates it, and registers the tenant.
func (h *Handler) Onboard(c *gin.Context) {
	var request dto.OnboardTenantRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	response, err := h.onboardUC.Execute(c.Request.Context(), request)
	if err != nil {
		h.logger.Errorw("tenant onboarding failed",
			"tenant_id", request.TenantID,
			"error", err)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.CreatedResponse(c, response, "tenant onboarded")
}

// List returns every tenant record.
func (h *Handler) List(c *gin.Context) {
	responses, err := h.listTenantsUC.Execute(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", responses)
}

// Get returns a single tenant record.
func (h *Handler) Get(c *gin.Context) {
	response, err := h.getTenantUC.Execute(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", response)
}

// GetDBInfo serves connection metadata to data-plane instances. The
// payload shape is a wire contract; it is served bare, without the
// standard response envelope.
func (h *Handler) GetDBInfo(c *gin.Context) {
	response, err := h.dbInfoUC.Execute(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.IsTenantNotFound(err) {
			c.Status(http.StatusNotFound)
			return
		}
		utils.ErrorResponseWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// Migrate applies pending schema migrations to a tenant's storage.
func (h *Handler) Migrate(c *gin.Context) {
	response, err := h.migrateUC.Execute(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Errorw("tenant migration failed",
			"tenant_id", c.Param("id"),
			"error", err)
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "tenant migrated", response)
}

// Suspend marks a tenant suspended and flushes its cached state.
func (h *Handler) Suspend(c *gin.Context) {
	if err := h.suspendUC.Execute(c.Request.Context(), c.Param("id")); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "tenant suspended", nil)
}

// Offboard destroys a tenant's storage and removes its record.
func (h *Handler) Offboard(c *gin.Context) {
	if err := h.offboardUC.Execute(c.Request.Context(), c.Param("id")); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.NoContentResponse(c)
}
