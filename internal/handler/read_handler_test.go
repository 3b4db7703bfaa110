// internal/handler/read_handler_test.go
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/pietrospam/serial-weight-reader/internal/config"
	"github.com/pietrospam/serial-weight-reader/internal/serialport"
	"github.com/pietrospam/serial-weight-reader/internal/session"
	"github.com/pietrospam/serial-weight-reader/internal/utils"
)

type stubHandle struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (h *stubHandle) SetReadTimeout(time.Duration) error { return nil }
func (h *stubHandle) SetDTR(bool) error                  { return nil }
func (h *stubHandle) SetRTS(bool) error                  { return nil }
func (h *stubHandle) Close() error                       { return nil }

func (h *stubHandle) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.chunks) == 0 {
		time.Sleep(5 * time.Millisecond)
		return 0, nil
	}
	chunk := h.chunks[0]
	h.chunks = h.chunks[1:]
	return copy(p, chunk), nil
}

func stubOpener(t *testing.T, handle serialport.Handle, openErr error) {
	t.Helper()
	serialport.SetOpener(func(name string, mode *serial.Mode) (serialport.Handle, error) {
		if openErr != nil {
			return nil, openErr
		}
		return handle, nil
	})
	t.Cleanup(func() {
		serialport.SetOpener(func(name string, mode *serial.Mode) (serialport.Handle, error) {
			return serial.Open(name, mode)
		})
	})
}

func newReadRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	runner := session.NewRunner(cfg, zap.NewNop())
	NewReadHandler(runner, zap.NewNop()).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func readerConfig(pattern string) *config.Config {
	return &config.Config{
		Serial: config.SerialConfig{
			Port:     "/dev/ttyTEST",
			BaudRate: 9600,
			DataBits: 8,
			Parity:   "none",
			StopBits: 1,
		},
		Protocol: config.ProtocolConfig{
			Framing:        "line",
			LineTerminator: "\r",
			Pattern:        pattern,
			ReadTimeoutMs:  500,
			MaxBuffer:      4096,
			WeightDivisor:  1000,
			Unit:           "kg",
		},
	}
}

func TestReadEndpointReturnsReading(t *testing.T) {
	stubOpener(t, &stubHandle{chunks: [][]byte{[]byte("D002260\r")}}, nil)
	router := newReadRouter(readerConfig(`[D@F](\d+)`))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/read", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.True(t, body.Success)

	data, ok := body.Data.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, float64(2260), data["value"])
	require.Equal(t, "kg", data["unit"])
}

func TestReadEndpointMapsPortUnavailable(t *testing.T) {
	stubOpener(t, nil, errors.New("permission denied"))
	router := newReadRouter(readerConfig(`[D@F](\d+)`))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/read", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.Contains(t, body.Message, "port_unavailable")
}

func TestReadEndpointMapsTimeout(t *testing.T) {
	stubOpener(t, &stubHandle{chunks: [][]byte{[]byte("????\r")}}, nil)
	router := newReadRouter(readerConfig(`[D@F](\d+)`))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/read", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestReadEndpointMapsInvalidPattern(t *testing.T) {
	stubOpener(t, &stubHandle{}, nil)
	router := newReadRouter(readerConfig(`[D@F](\d+`))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/read", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
