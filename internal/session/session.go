// internal/session/session.go
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pietrospam/serial-weight-reader/internal/config"
	"github.com/pietrospam/serial-weight-reader/internal/model"
	"github.com/pietrospam/serial-weight-reader/internal/scale"
	"github.com/pietrospam/serial-weight-reader/internal/serialport"
)

// Session executes one complete open -> collect -> close cycle against
// the scale and produces exactly one Result. A session fully owns the
// physical port between Open and Close; it is single-use.
type Session struct {
	cfg    *config.Config
	logger *zap.Logger
	id     string
}

// New creates a session with a fresh correlation ID. The per-session
// child logger replaces any global verbosity state: diagnostics from
// every layer below carry the session ID.
func New(cfg *config.Config, logger *zap.Logger) *Session {
	id := uuid.New().String()
	return &Session{
		cfg:    cfg,
		logger: logger.With(zap.String("session_id", id)),
		id:     id,
	}
}

// Run drives the session through its states:
//
//	Idle -> Opening -> Collecting -> (Succeeded | TimedOut | Failed) -> Closing -> Done
//
// The caller always receives a terminal Result and the port is closed on
// every exit path, including failures.
func (s *Session) Run() *model.Result {
	start := time.Now()
	protocol := model.Protocol(s.cfg.Protocol.Framing)

	// A malformed pattern or marker is a configuration fault: it is
	// reported once, here, before the port is ever touched.
	decoder, err := s.newDecoder()
	if err != nil {
		s.logger.Error("Invalid protocol configuration", zap.Error(err))
		return model.NewFailure(s.id, protocol, model.ReasonInvalidPattern, err, time.Since(start))
	}

	port, err := serialport.Open(&s.cfg.Serial, s.logger)
	if err != nil {
		return model.NewFailure(s.id, protocol, model.ReasonPortUnavailable, err, time.Since(start))
	}

	result := s.collect(port, decoder, protocol, start)

	// Closing happens exactly once, whatever the collection outcome; its
	// failure is logged by the port layer and never changes the result.
	if err := port.Close(); err != nil {
		s.logger.Warn("Close sequence failed after session resolved", zap.Error(err))
	}

	s.logger.Info("Session finished",
		zap.Bool("success", result.Success),
		zap.Int64("elapsed_ms", result.ElapsedMs),
	)
	return result
}

// collect races the decoder against the configured deadline. The two
// event sources resolve into a single outcome: the first emission wins,
// a transport error preempts the deadline, and the deadline itself only
// fires after draining an emission that arrived strictly before it.
func (s *Session) collect(port *serialport.Port, decoder scale.Decoder, protocol model.Protocol, start time.Time) *model.Result {
	readings := make(chan scale.Reading, 1)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go s.readLoop(port, decoder, readings, readErr, done)

	timer := time.NewTimer(s.cfg.Protocol.ReadTimeout())
	defer timer.Stop()

	s.logger.Debug("Collecting",
		zap.String("framing", string(protocol)),
		zap.Duration("deadline", s.cfg.Protocol.ReadTimeout()),
	)

	// The last valid reading backs the deadline fallback. Both shipped
	// disciplines resolve on the first emission, so today this only ever
	// holds the reading that resolves the session; a protocol that keeps
	// sampling past the first emission would make the fallback real.
	var last *scale.Reading

	for {
		select {
		case reading := <-readings:
			last = &reading
			return s.succeed(protocol, *last, start)

		case err := <-readErr:
			s.logger.Error("Transport failed during collection", zap.Error(err))
			return model.NewFailure(s.id, protocol, model.ReasonTransportError, err, time.Since(start))

		case <-timer.C:
			// A reading that arrived before the deadline must win the race.
			select {
			case reading := <-readings:
				last = &reading
			default:
			}
			if last != nil {
				return s.succeed(protocol, *last, start)
			}
			s.logger.Warn("No valid reading within configured timeout")
			return model.NewFailure(s.id, protocol, model.ReasonTimeout,
				fmt.Errorf("no valid reading within %s", s.cfg.Protocol.ReadTimeout()), time.Since(start))
		}
	}
}

// readLoop is the only writer to the decode buffer: chunks are fed
// strictly in arrival order from this single goroutine, so the decoders
// need no locking.
func (s *Session) readLoop(port *serialport.Port, decoder scale.Decoder, readings chan<- scale.Reading, readErr chan<- error, done <-chan struct{}) {
	buf := make([]byte, 256)
	for {
		select {
		case <-done:
			return
		default:
		}

		n, err := port.Read(buf)
		if err != nil {
			select {
			case readErr <- err:
			case <-done:
			}
			return
		}
		if n == 0 {
			// Poll interval elapsed without data.
			continue
		}

		s.logger.Debug("Chunk received", zap.Int("bytes", n))
		if reading, ok := decoder.Feed(buf[:n]); ok {
			select {
			case readings <- reading:
			case <-done:
			}
			return
		}
	}
}

func (s *Session) succeed(protocol model.Protocol, reading scale.Reading, start time.Time) *model.Result {
	s.logger.Info("Reading decoded",
		zap.Int64("value", reading.Value),
		zap.ByteString("raw", reading.Raw),
	)
	return model.NewSuccess(s.id, protocol, reading.Value, reading.Raw,
		s.cfg.Protocol.WeightDivisor, s.cfg.Protocol.Unit, time.Since(start))
}

func (s *Session) newDecoder() (scale.Decoder, error) {
	extractor, err := scale.NewExtractor(s.cfg.Protocol.Pattern)
	if err != nil {
		return nil, err
	}

	switch s.cfg.Protocol.Framing {
	case "frame":
		start, err := s.cfg.Protocol.FrameStartByte()
		if err != nil {
			return nil, err
		}
		end, err := s.cfg.Protocol.FrameEndByte()
		if err != nil {
			return nil, err
		}
		return scale.NewFrameDecoder(extractor, start, end, s.cfg.Protocol.MaxBuffer), nil
	case "line":
		term, err := s.cfg.Protocol.LineTerminatorByte()
		if err != nil {
			return nil, err
		}
		return scale.NewLineDecoder(extractor, term, s.cfg.Protocol.MaxBuffer), nil
	default:
		return nil, fmt.Errorf("unknown framing discipline %q", s.cfg.Protocol.Framing)
	}
}
