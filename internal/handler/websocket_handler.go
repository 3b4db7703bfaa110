// internal/handler/websocket_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pietrospam/serial-weight-reader/internal/session"
	"github.com/pietrospam/serial-weight-reader/internal/utils"
)

// WebSocketMessage is the envelope for both directions of the readings
// socket.
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// WebSocketHandler serves on-demand readings over a WebSocket: each
// "read" message from the client runs one session and the result comes
// back on the same connection. Sessions still queue on the shared
// runner, so concurrent sockets take turns at the port.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	runner   *session.Runner
	logger   *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(runner *session.Runner, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		runner: runner,
		logger: utils.NewServiceLogger(logger, "websocket-handler"),
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/readings", h.HandleReadings)
}

// HandleReadings upgrades the connection and serves read requests until
// the client disconnects. Messages are handled one at a time: a session
// in flight blocks the next message, which keeps the socket a strict
// request/response pair and needs no write locking.
func (h *WebSocketHandler) HandleReadings(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer conn.Close()

	clientID := uuid.New().String()
	h.logger.Info("WebSocket client connected",
		zap.String("client_id", clientID),
		zap.String("remote_addr", c.Request.RemoteAddr),
	)

	for {
		var message WebSocketMessage
		if err := conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", clientID),
				)
			}
			break
		}

		if err := h.handleMessage(conn, clientID, &message); err != nil {
			h.logger.Error("WebSocket write error",
				zap.Error(err),
				zap.String("client_id", clientID),
			)
			break
		}
	}

	h.logger.Info("WebSocket client disconnected", zap.String("client_id", clientID))
}

func (h *WebSocketHandler) handleMessage(conn *websocket.Conn, clientID string, message *WebSocketMessage) error {
	switch message.Type {
	case "read":
		result := h.runner.Run()
		return h.send(conn, &WebSocketMessage{
			Type:      "reading",
			Data:      result,
			Timestamp: time.Now(),
		})

	case "ping":
		return h.send(conn, &WebSocketMessage{
			Type:      "pong",
			Timestamp: time.Now(),
		})

	default:
		h.logger.Warn("Unknown message type",
			zap.String("type", message.Type),
			zap.String("client_id", clientID),
		)
		return h.send(conn, &WebSocketMessage{
			Type:      "error",
			Data:      gin.H{"error": "unknown message type: " + message.Type},
			Timestamp: time.Now(),
		})
	}
}

func (h *WebSocketHandler) send(conn *websocket.Conn, message *WebSocketMessage) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(message)
}
