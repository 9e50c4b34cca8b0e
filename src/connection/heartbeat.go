package connection

import (
	"time"

	"bot-mirror/src/interfaces"
	"bot-mirror/src/logger"
	"bot-mirror/src/models"
	"bot-mirror/src/scheduler"
	"bot-mirror/src/state"
	"bot-mirror/src/utils"
)

var pingFrame = []byte(`{"type":"ping"}`)

// -----------------------------------------------------------------------------
// HeartbeatMonitor checks the connection with ping frames and forces it closed
// when no pong arrived within the timeout.
// -----------------------------------------------------------------------------

type HeartbeatMonitor struct {
	sched          interfaces.IScheduler
	cfg            models.MHeartbeatConfig
	store          *state.Store
	logger         *logger.Logger
	conn           interfaces.IConn
	ticker         interfaces.ITask
	lastLivenessAt time.Time
	forcedClose    bool
}

// -----------------------------------------------------------------------------

func NewHeartbeatMonitor(sched interfaces.IScheduler, cfg models.MHeartbeatConfig, store *state.Store, log *logger.Logger) *HeartbeatMonitor {
	if cfg.Interval <= 0 {
		cfg.Interval = utils.DefaultHeartbeatInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = utils.DefaultHeartbeatTimeout
	}
	if log == nil {
		log = logger.NewNop("Heartbeat")
	}
	return &HeartbeatMonitor{sched: sched, cfg: cfg, store: store, logger: log}
}

// -----------------------------------------------------------------------------

// Start begins probing conn. lastLivenessAt resets to now.
func (h *HeartbeatMonitor) Start(conn interfaces.IConn) {
	h.Stop()

	h.conn = conn
	h.forcedClose = false
	h.lastLivenessAt = h.sched.Now()
	h.store.SetLastLiveness(h.lastLivenessAt)
	h.ticker = scheduler.Every(h.sched, h.cfg.Interval, h.tick)
}

// -----------------------------------------------------------------------------

// Stop clears the interval. Safe to call any number of times.
func (h *HeartbeatMonitor) Stop() {
	if h.ticker != nil {
		h.ticker.Stop()
		h.ticker = nil
	}
	h.conn = nil
}

// -----------------------------------------------------------------------------

// Ack records a liveness acknowledgment. lastLivenessAt never moves backwards.
func (h *HeartbeatMonitor) Ack() {
	if h.conn == nil {
		return
	}
	now := h.sched.Now()
	if now.After(h.lastLivenessAt) {
		h.lastLivenessAt = now
		h.store.SetLastLiveness(now)
	}
}

// -----------------------------------------------------------------------------

func (h *HeartbeatMonitor) LastLivenessAt() time.Time {
	return h.lastLivenessAt
}

// -----------------------------------------------------------------------------

func (h *HeartbeatMonitor) Running() bool {
	return h.ticker != nil
}

// -----------------------------------------------------------------------------

func (h *HeartbeatMonitor) tick() {
	conn := h.conn
	if conn == nil {
		return
	}

	elapsed := h.sched.Now().Sub(h.lastLivenessAt)
	if elapsed > h.cfg.Timeout {
		if h.forcedClose {
			return
		}
		h.forcedClose = true
		h.logger.Warning("No pong for %v (timeout %v), closing connection", elapsed, h.cfg.Timeout)
		h.Stop()
		if err := conn.Close(utils.CloseLivenessTimeout, utils.ReasonLiveness); err != nil {
			h.logger.Error("Failed to close stale connection: %v", err)
		}
		return
	}

	if err := conn.Send(pingFrame); err != nil {
		h.logger.Warning("Failed to send ping: %v", err)
	}
}
