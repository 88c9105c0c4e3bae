package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atrium-dev/atrium/internal/interfaces/http/middleware"
	"github.com/atrium-dev/atrium/internal/shared/config"
	"github.com/atrium-dev/atrium/internal/shared/logger"
)

// Router owns the gin engine and its route table.
type Router struct {
	engine    *gin.Engine
	container *Container
}

// NewRouter builds the engine with the standard middleware pipeline and
// mounts the service routes.
func NewRouter(cfg *config.ServerConfig, container *Container, log logger.Interface) *Router {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.Recovery())
	engine.Use(middleware.Logger(log))
	engine.Use(middleware.TenantContext())

	router := &Router{
		engine:    engine,
		container: container,
	}
	router.setupRoutes()
	return router
}

func (r *Router) setupRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	internal := r.engine.Group("/internal")
	r.container.TenantHandler.RegisterRoutes(internal)
}

// Engine exposes the underlying gin engine for the HTTP server.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
