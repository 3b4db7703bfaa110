// internal/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pietrospam/serial-weight-reader/internal/config"
	"github.com/pietrospam/serial-weight-reader/internal/handler"
	"github.com/pietrospam/serial-weight-reader/internal/middleware"
	"github.com/pietrospam/serial-weight-reader/internal/session"
	"github.com/pietrospam/serial-weight-reader/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config *config.Config
	logger *zap.Logger
	runner *session.Runner
}

// NewRouter creates a new router instance
func NewRouter(config *config.Config, logger *zap.Logger, runner *session.Runner) *Router {
	return &Router{
		config: config,
		logger: logger,
		runner: runner,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Server))

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.config, r.logger)
	readHandler := handler.NewReadHandler(r.runner, r.logger)
	wsHandler := handler.NewWebSocketHandler(r.runner, r.logger)

	healthHandler.RegisterRoutes(router.Group(""))

	apiV1 := router.Group("/api/v1")
	readHandler.RegisterRoutes(apiV1)

	wsHandler.RegisterRoutes(router.Group("/ws"))

	r.logger.Info("All routes configured successfully")
}
