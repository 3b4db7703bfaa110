// internal/serialport/port_test.go
package serialport

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/pietrospam/serial-weight-reader/internal/config"
)

// signalChange records one modem-bit transition in order of application.
type signalChange struct {
	line  string
	level bool
}

type fakeHandle struct {
	signals     []signalChange
	readTimeout time.Duration
	closeCount  int
	dtrErr      error
	rtsErr      error
}

func (f *fakeHandle) SetReadTimeout(timeout time.Duration) error {
	f.readTimeout = timeout
	return nil
}

func (f *fakeHandle) SetDTR(dtr bool) error {
	f.signals = append(f.signals, signalChange{"dtr", dtr})
	return f.dtrErr
}

func (f *fakeHandle) SetRTS(rts bool) error {
	f.signals = append(f.signals, signalChange{"rts", rts})
	return f.rtsErr
}

func (f *fakeHandle) Read(p []byte) (int, error) { return 0, nil }

func (f *fakeHandle) Close() error {
	f.closeCount++
	return nil
}

func useFake(t *testing.T, handle *fakeHandle, err error) {
	t.Helper()
	SetOpener(func(name string, mode *serial.Mode) (Handle, error) {
		if err != nil {
			return nil, err
		}
		return handle, nil
	})
	t.Cleanup(func() {
		SetOpener(func(name string, mode *serial.Mode) (Handle, error) {
			return serial.Open(name, mode)
		})
	})
}

func serialConfig(dtr, rts bool) *config.SerialConfig {
	return &config.SerialConfig{
		Port:     "/dev/ttyTEST",
		BaudRate: 9600,
		DataBits: 8,
		Parity:   "none",
		StopBits: 1,
		DTR:      dtr,
		RTS:      rts,
	}
}

func TestOpenAndCloseApplyConfiguredSignalPair(t *testing.T) {
	// Every configured level pair must be applied verbatim on both the
	// open and the close sequence, never a driver default.
	for _, tc := range []struct{ dtr, rts bool }{
		{false, false},
		{false, true},
		{true, false},
		{true, true},
	} {
		handle := &fakeHandle{}
		useFake(t, handle, nil)

		port, err := Open(serialConfig(tc.dtr, tc.rts), zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, port.Close())

		want := []signalChange{
			{"dtr", tc.dtr}, {"rts", tc.rts}, // open sequence
			{"dtr", tc.dtr}, {"rts", tc.rts}, // close sequence
		}
		require.Equal(t, want, handle.signals)
		require.Equal(t, 1, handle.closeCount)
	}
}

func TestOpenSetsPollTimeoutBeforeSignals(t *testing.T) {
	handle := &fakeHandle{}
	useFake(t, handle, nil)

	_, err := Open(serialConfig(false, false), zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, readPollInterval, handle.readTimeout)
}

func TestOpenFailureIsFatal(t *testing.T) {
	useFake(t, nil, errors.New("no such device"))

	_, err := Open(serialConfig(false, false), zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "/dev/ttyTEST")
}

func TestSignalSetFailureIsDowngraded(t *testing.T) {
	// Some drivers cannot set modem bits; the open must still succeed.
	handle := &fakeHandle{dtrErr: errors.New("inappropriate ioctl"), rtsErr: errors.New("inappropriate ioctl")}
	useFake(t, handle, nil)

	port, err := Open(serialConfig(true, true), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, port.Close())
	require.Equal(t, 1, handle.closeCount)
}
