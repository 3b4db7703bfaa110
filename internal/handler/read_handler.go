// internal/handler/read_handler.go
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pietrospam/serial-weight-reader/internal/model"
	"github.com/pietrospam/serial-weight-reader/internal/serialport"
	"github.com/pietrospam/serial-weight-reader/internal/session"
	"github.com/pietrospam/serial-weight-reader/internal/utils"
)

// ReadHandler exposes the reading session over HTTP. Requests queue on
// the runner, so two clients can never drive the scale at once.
type ReadHandler struct {
	runner *session.Runner
	logger *utils.ServiceLogger
}

// NewReadHandler creates a new read handler
func NewReadHandler(runner *session.Runner, logger *zap.Logger) *ReadHandler {
	return &ReadHandler{
		runner: runner,
		logger: utils.NewServiceLogger(logger, "read-handler"),
	}
}

// RegisterRoutes registers reading routes
func (h *ReadHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/read", h.Read)
	router.GET("/ports", h.ListPorts)
}

// Read runs one complete reading session and returns its result.
func (h *ReadHandler) Read(c *gin.Context) {
	result := h.runner.Run()

	if result.Success {
		utils.SuccessResponse(c, http.StatusOK, "Reading completed", result)
		return
	}

	var detail error
	if result.Error != "" {
		detail = errors.New(result.Error)
	}
	utils.ErrorResponse(c, statusForReason(result.Reason), "Reading failed: "+string(result.Reason), detail)
}

// ListPorts returns the serial ports available on this machine.
func (h *ReadHandler) ListPorts(c *gin.Context) {
	ports, err := serialport.List()
	if err != nil {
		h.logger.Error("Failed to list serial ports", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list serial ports", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Serial ports listed", gin.H{
		"ports": ports,
		"count": len(ports),
	})
}

// statusForReason maps session failure reasons onto HTTP statuses.
func statusForReason(reason model.FailureReason) int {
	switch reason {
	case model.ReasonInvalidPattern:
		return http.StatusBadRequest
	case model.ReasonPortUnavailable:
		return http.StatusServiceUnavailable
	case model.ReasonTimeout:
		return http.StatusGatewayTimeout
	case model.ReasonTransportError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
