// internal/session/session_test.go
package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/pietrospam/serial-weight-reader/internal/config"
	"github.com/pietrospam/serial-weight-reader/internal/model"
	"github.com/pietrospam/serial-weight-reader/internal/serialport"
)

// scriptedChunk is one chunk the fake port delivers, after an optional
// pause that simulates device pacing.
type scriptedChunk struct {
	delay time.Duration
	data  []byte
}

type scriptedHandle struct {
	mu         sync.Mutex
	script     []scriptedChunk
	finalErr   error // returned once the script is exhausted, if set
	closeCount int
}

func (h *scriptedHandle) SetReadTimeout(time.Duration) error { return nil }
func (h *scriptedHandle) SetDTR(bool) error                  { return nil }
func (h *scriptedHandle) SetRTS(bool) error                  { return nil }

func (h *scriptedHandle) Read(p []byte) (int, error) {
	h.mu.Lock()
	if len(h.script) == 0 {
		err := h.finalErr
		h.mu.Unlock()
		if err != nil {
			return 0, err
		}
		// Idle port: behave like a driver poll timeout.
		time.Sleep(5 * time.Millisecond)
		return 0, nil
	}
	chunk := h.script[0]
	h.script = h.script[1:]
	h.mu.Unlock()

	if chunk.delay > 0 {
		time.Sleep(chunk.delay)
	}
	return copy(p, chunk.data), nil
}

func (h *scriptedHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeCount++
	return nil
}

func (h *scriptedHandle) closes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closeCount
}

// useHandle installs a fake opener and reports how many times the
// session actually opened the port.
func useHandle(t *testing.T, handle *scriptedHandle, openErr error) *int {
	t.Helper()
	opens := 0
	serialport.SetOpener(func(name string, mode *serial.Mode) (serialport.Handle, error) {
		opens++
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
	return &opens
}

func testConfig(framing, pattern string, timeout time.Duration) *config.Config {
	return &config.Config{
		Serial: config.SerialConfig{
			Port:     "/dev/ttyTEST",
			BaudRate: 9600,
			DataBits: 8,
			Parity:   "none",
			StopBits: 1,
		},
		Protocol: config.ProtocolConfig{
			Framing:        framing,
			FrameStart:     "\x02",
			FrameEnd:       "\x03",
			LineTerminator: "\r",
			Pattern:        pattern,
			ReadTimeoutMs:  int(timeout / time.Millisecond),
			MaxBuffer:      4096,
			WeightDivisor:  1000,
			Unit:           "kg",
		},
	}
}

func TestSessionResolvesLineReading(t *testing.T) {
	handle := &scriptedHandle{script: []scriptedChunk{
		{data: []byte("F000000\r")},
		{delay: 10 * time.Millisecond, data: []byte("D002260\r")},
	}}
	useHandle(t, handle, nil)

	result := New(testConfig("line", `[D@F](\d+)`, time.Second), zap.NewNop()).Run()

	require.True(t, result.Success)
	require.Equal(t, model.ProtocolLine, result.Protocol)
	require.Equal(t, int64(2260), result.Value)
	require.True(t, result.Weight.Equal(decimal.RequireFromString("2.26")),
		"weight = %s", result.Weight)
	require.Equal(t, "kg", result.Unit)
	require.Equal(t, "D002260\r", result.RawData)
	require.Equal(t, 1, handle.closes())
}

func TestSessionResolvesFrameReading(t *testing.T) {
	frame := append([]byte{0x02}, []byte("1\r\n20450\r\n0")...)
	frame = append(frame, 0x03)
	handle := &scriptedHandle{script: []scriptedChunk{
		{data: []byte{0x02, 'j', 'u', 'n', 'k'}},
		{data: frame},
	}}
	useHandle(t, handle, nil)

	result := New(testConfig("frame", `\r\n(\d+)\r\n`, time.Second), zap.NewNop()).Run()

	require.True(t, result.Success)
	require.Equal(t, model.ProtocolFrame, result.Protocol)
	require.Equal(t, int64(20450), result.Value)
	require.Equal(t, 1, handle.closes())
}

func TestSessionTimesOutWithoutReading(t *testing.T) {
	// Chunks that never match keep the session collecting until the
	// deadline: a pattern mismatch is never a failure by itself.
	handle := &scriptedHandle{script: []scriptedChunk{
		{data: []byte("????\r")},
		{data: []byte("!!!!\r")},
	}}
	useHandle(t, handle, nil)

	result := New(testConfig("line", `[D@F](\d+)`, 150*time.Millisecond), zap.NewNop()).Run()

	require.False(t, result.Success)
	require.Equal(t, model.ReasonTimeout, result.Reason)
	require.Equal(t, 1, handle.closes())
}

func TestSessionFailsOnTransportError(t *testing.T) {
	handle := &scriptedHandle{
		script:   []scriptedChunk{{data: []byte("F000000\r")}},
		finalErr: errors.New("device unplugged"),
	}
	useHandle(t, handle, nil)

	result := New(testConfig("line", `[D@F](\d+)`, time.Second), zap.NewNop()).Run()

	require.False(t, result.Success)
	require.Equal(t, model.ReasonTransportError, result.Reason)
	require.Contains(t, result.Error, "device unplugged")
	require.Equal(t, 1, handle.closes())
}

func TestSessionRejectsInvalidPatternBeforeOpening(t *testing.T) {
	handle := &scriptedHandle{}
	opens := useHandle(t, handle, nil)

	cfg := testConfig("line", `[D@F](\d+`, time.Second)
	result := New(cfg, zap.NewNop()).Run()

	require.False(t, result.Success)
	require.Equal(t, model.ReasonInvalidPattern, result.Reason)
	require.Equal(t, 0, *opens, "port must not be touched with a bad pattern")
	require.Equal(t, 0, handle.closes())
}

func TestSessionFailsWhenPortUnavailable(t *testing.T) {
	useHandle(t, nil, errors.New("permission denied"))

	result := New(testConfig("line", `[D@F](\d+)`, time.Second), zap.NewNop()).Run()

	require.False(t, result.Success)
	require.Equal(t, model.ReasonPortUnavailable, result.Reason)
}

func TestSessionPrefersDataArrivingBeforeDeadline(t *testing.T) {
	handle := &scriptedHandle{script: []scriptedChunk{
		{delay: 50 * time.Millisecond, data: []byte("D002260\r")},
	}}
	useHandle(t, handle, nil)

	result := New(testConfig("line", `[D@F](\d+)`, 500*time.Millisecond), zap.NewNop()).Run()

	require.True(t, result.Success)
	require.Equal(t, int64(2260), result.Value)
	require.Equal(t, 1, handle.closes())
}

func TestRunnerSerializesSessions(t *testing.T) {
	handle := &scriptedHandle{script: []scriptedChunk{
		{data: []byte("D001000\r")},
		{data: []byte("D002000\r")},
	}}
	useHandle(t, handle, nil)

	runner := NewRunner(testConfig("line", `[D@F](\d+)`, time.Second), zap.NewNop())

	var wg sync.WaitGroup
	results := make([]*model.Result, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = runner.Run()
		}(i)
	}
	wg.Wait()

	require.True(t, results[0].Success)
	require.True(t, results[1].Success)
	require.Equal(t, 2, handle.closes())
}
