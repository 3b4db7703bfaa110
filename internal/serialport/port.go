// internal/serialport/port.go
package serialport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/pietrospam/serial-weight-reader/internal/config"
)

// readPollInterval is the driver-level read timeout. It only bounds how
// long a single Read blocks; the session owns the overall deadline.
const readPollInterval = 100 * time.Millisecond

// Handle is the slice of go.bug.st/serial.Port the sequencer needs.
// Tests substitute a fake implementation through SetOpener.
type Handle interface {
	SetReadTimeout(timeout time.Duration) error
	SetDTR(dtr bool) error
	SetRTS(rts bool) error
	Read(p []byte) (int, error)
	Close() error
}

// openPort is the seam between the sequencer and the serial driver.
var openPort = func(name string, mode *serial.Mode) (Handle, error) {
	return serial.Open(name, mode)
}

// SetOpener replaces the serial port opener function. Intended for tests.
func SetOpener(opener func(name string, mode *serial.Mode) (Handle, error)) {
	openPort = opener
}

// Port is an open serial connection with the anti-reset signal sequence
// applied. One session owns the port from Open through Close.
type Port struct {
	handle Handle
	cfg    *config.SerialConfig
	logger *zap.Logger
}

// Open opens the serial port and runs the anti-reset open sequence:
// the port is opened with exactly the configured line parameters and no
// flow control the driver would default to; the control signals are NOT
// supplied at open time. Reset-sensitive indicators watch the open call
// itself, so DTR and RTS are driven to the configured levels only after
// the open succeeds, as one signal-set step, followed by the open
// stabilization delay.
//
// A driver that cannot set modem bits does not fail the session: the
// signal step is downgraded to a warning. A failed open is fatal.
func Open(cfg *config.SerialConfig, logger *zap.Logger) (*Port, error) {
	log := logger.With(zap.String("port", cfg.Port))

	log.Info("Opening serial port",
		zap.Int("baud_rate", cfg.BaudRate),
		zap.Bool("dtr", cfg.DTR),
		zap.Bool("rts", cfg.RTS),
	)

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: stopBits(cfg.StopBits),
		Parity:   parity(cfg.Parity),
	}

	handle, err := openPort(cfg.Port, mode)
	if err != nil {
		log.Error("Failed to open serial port", zap.Error(err))
		return nil, fmt.Errorf("opening serial port %s: %w", cfg.Port, err)
	}

	if err := handle.SetReadTimeout(readPollInterval); err != nil {
		handle.Close()
		return nil, fmt.Errorf("setting read timeout: %w", err)
	}

	p := &Port{handle: handle, cfg: cfg, logger: log}
	p.applySignals("open")

	if cfg.FlowControlRequested() {
		// go.bug.st/serial exposes no RTS/CTS or XON/XOFF toggles; the
		// driver never enables flow control on its own, which is what
		// the anti-reset sequence requires.
		log.Warn("Requested flow control is not supported by the serial driver",
			zap.Bool("rtscts", cfg.RTSCTS),
			zap.Bool("xon", cfg.XON),
			zap.Bool("xoff", cfg.XOFF),
			zap.Bool("xany", cfg.XAny),
		)
	}

	if delay := cfg.OpenDelay(); delay > 0 {
		time.Sleep(delay)
	}

	log.Info("Serial port opened")
	return p, nil
}

// Read reads up to len(p) bytes. A zero count with a nil error means the
// poll interval elapsed without data.
func (p *Port) Read(buf []byte) (int, error) {
	return p.handle.Read(buf)
}

// Close runs the anti-reset close sequence: re-assert the configured
// signal levels, wait the close stabilization delay, then close the
// handle. Always attempted; a failure here never overrides a session
// result that is already decided.
func (p *Port) Close() error {
	p.applySignals("close")

	if delay := p.cfg.CloseDelay(); delay > 0 {
		time.Sleep(delay)
	}

	if err := p.handle.Close(); err != nil {
		p.logger.Warn("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("closing serial port %s: %w", p.cfg.Port, err)
	}

	p.logger.Info("Serial port closed")
	return nil
}

// applySignals drives DTR and RTS to the configured levels as one
// sequenced step. Some drivers (and the ptys used in tests) reject modem
// bit changes; that is a warning, not a session failure.
func (p *Port) applySignals(stage string) {
	if err := p.handle.SetDTR(p.cfg.DTR); err != nil {
		p.logger.Warn("Driver rejected DTR level",
			zap.String("stage", stage),
			zap.Bool("dtr", p.cfg.DTR),
			zap.Error(err),
		)
	}
	if err := p.handle.SetRTS(p.cfg.RTS); err != nil {
		p.logger.Warn("Driver rejected RTS level",
			zap.String("stage", stage),
			zap.Bool("rts", p.cfg.RTS),
			zap.Error(err),
		)
	}
}

func parity(name string) serial.Parity {
	switch name {
	case "odd":
		return serial.OddParity
	case "even":
		return serial.EvenParity
	default:
		return serial.NoParity
	}
}

func stopBits(n int) serial.StopBits {
	if n == 2 {
		return serial.TwoStopBits
	}
	return serial.OneStopBit
}
