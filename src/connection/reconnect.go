package connection

import (
	"time"

	"bot-mirror/src/helpers"
	"bot-mirror/src/interfaces"
	"bot-mirror/src/logger"
	"bot-mirror/src/models"
	"bot-mirror/src/utils"
)

// -----------------------------------------------------------------------------
// ReconnectScheduler arranges at most one pending reconnect at a time.
// -----------------------------------------------------------------------------

type ReconnectScheduler struct {
	sched   interfaces.IScheduler
	cfg     models.MReconnectConfig
	logger  *logger.Logger
	attempt int
	pending interfaces.ITask
}

// -----------------------------------------------------------------------------

func NewReconnectScheduler(sched interfaces.IScheduler, cfg models.MReconnectConfig, log *logger.Logger) *ReconnectScheduler {
	if cfg.Strategy == "" {
		cfg.Strategy = models.ReconnectExponential
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = utils.DefaultReconnectBase
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = utils.DefaultReconnectMax
	}
	if cfg.FixedDelay <= 0 {
		cfg.FixedDelay = utils.DefaultReconnectFixed
	}
	if log == nil {
		log = logger.NewNop("Reconnect")
	}
	return &ReconnectScheduler{sched: sched, cfg: cfg, logger: log}
}

// -----------------------------------------------------------------------------

// NextDelay is the delay the next Schedule call will use.
func (r *ReconnectScheduler) NextDelay() time.Duration {
	if r.cfg.Strategy == models.ReconnectFixed {
		return r.cfg.FixedDelay
	}
	return helpers.BackoffDelay(r.cfg.BaseDelay, r.cfg.MaxDelay, r.attempt)
}

// -----------------------------------------------------------------------------

// Schedule replaces any pending reconnect with one that calls connectFn after
// the backoff delay, and returns that delay.
func (r *ReconnectScheduler) Schedule(connectFn func()) time.Duration {
	r.Cancel()

	delay := r.NextDelay()
	r.attempt++

	var task interfaces.ITask
	task = r.sched.AfterFunc(delay, func() {
		if r.pending == task {
			r.pending = nil
		}
		connectFn()
	})
	r.pending = task

	r.logger.Info("Reconnect attempt %d scheduled in %v", r.attempt, delay)
	return delay
}

// -----------------------------------------------------------------------------

func (r *ReconnectScheduler) Cancel() {
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
	}
}

// -----------------------------------------------------------------------------

// Reset restarts the backoff sequence after a successful connect.
func (r *ReconnectScheduler) Reset() {
	r.attempt = 0
}

// -----------------------------------------------------------------------------

func (r *ReconnectScheduler) Attempt() int {
	return r.attempt
}

// -----------------------------------------------------------------------------

func (r *ReconnectScheduler) Pending() bool {
	return r.pending != nil
}
