// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pietrospam/serial-weight-reader/internal/config"
	"github.com/pietrospam/serial-weight-reader/internal/serialport"
	"github.com/pietrospam/serial-weight-reader/internal/utils"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	config    *config.Config
	logger    *utils.ServiceLogger
	startedAt time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		config:    config,
		logger:    utils.NewServiceLogger(logger, "health-handler"),
		startedAt: time.Now(),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck reports service health. The configured serial port is
// checked against the ports present on the machine; a missing port makes
// the service degraded, not down, since scales are hot-plugged.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startedAt).String(),
		Checks:    make(map[string]CheckResult),
	}

	ports, err := serialport.List()
	if err != nil {
		health.Status = "degraded"
		health.Checks["serial_ports"] = CheckResult{
			Status:  "unhealthy",
			Message: err.Error(),
		}
	} else {
		health.Checks["serial_ports"] = CheckResult{
			Status: "healthy",
			Data: map[string]interface{}{
				"available": ports,
			},
		}

		found := false
		for _, p := range ports {
			if p == h.config.Serial.Port {
				found = true
				break
			}
		}
		status := "healthy"
		message := "Configured port present"
		if !found {
			health.Status = "degraded"
			status = "degraded"
			message = "Configured port not present"
		}
		health.Checks["configured_port"] = CheckResult{
			Status:  status,
			Message: message,
			Data: map[string]interface{}{
				"port": h.config.Serial.Port,
			},
		}
	}

	c.JSON(http.StatusOK, health)
}

// ReadinessCheck for Kubernetes readiness probe
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck for Kubernetes liveness probe
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
