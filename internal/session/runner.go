// internal/session/runner.go
package session

import (
	"sync"

	"go.uber.org/zap"

	"github.com/pietrospam/serial-weight-reader/internal/config"
	"github.com/pietrospam/serial-weight-reader/internal/model"
)

// Runner creates and runs sessions one at a time. Sessions must never be
// pipelined against the same physical port, so concurrent callers (the
// HTTP handlers) queue here.
type Runner struct {
	cfg    *config.Config
	logger *zap.Logger
	mu     sync.Mutex
}

// NewRunner creates a runner bound to one configuration.
func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{cfg: cfg, logger: logger}
}

// Run executes one session and returns its result. Blocks while another
// session owns the port.
func (r *Runner) Run() *model.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return New(r.cfg, r.logger).Run()
}
