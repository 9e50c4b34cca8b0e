package router

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"bot-mirror/src/helpers"
	"bot-mirror/src/interfaces"
	"bot-mirror/src/logger"
	"bot-mirror/src/state"
)

// -----------------------------------------------------------------------------
// Router applies inbound frames to the store in arrival order. It must only be
// driven from the event loop.
// -----------------------------------------------------------------------------

type Router struct {
	store    *state.Store
	sinks    EffectSinks
	logger   *logger.Logger
	errors   *helpers.ErrorHandler
	holding  bool
	held     []TradeCompleted
	dropped  atomic.Uint64
	unknown  atomic.Uint64
	received atomic.Uint64
}

// -----------------------------------------------------------------------------

func NewRouter(store *state.Store, alerts interfaces.IAlertSink, log *logger.Logger) *Router {
	if log == nil {
		log = logger.NewNop("Router")
	}
	return &Router{
		store:  store,
		sinks:  EffectSinks{Alerts: alerts},
		logger: log,
		errors: helpers.NewErrorHandler(log),
	}
}

// -----------------------------------------------------------------------------

// SetLiveness wires the heartbeat that pong frames acknowledge.
func (r *Router) SetLiveness(acker interfaces.ILivenessAcker) {
	r.sinks.Liveness = acker
}

// -----------------------------------------------------------------------------

// Route decodes and dispatches one frame. Bad frames are logged and dropped;
// nothing escapes to the caller.
func (r *Router) Route(raw []byte) {
	r.received.Add(1)
	defer func() {
		if rec := recover(); rec != nil {
			r.dropped.Add(1)
			r.errors.Handle(fmt.Errorf("panic: %v", rec), "route")
			r.logger.Debug("%s", debug.Stack())
		}
	}()

	action, err := Decode(raw)
	if err != nil {
		if errors.Is(err, ErrUnknownType) {
			r.unknown.Add(1)
			r.logger.Debug("Ignoring frame: %v", err)
			return
		}
		r.dropped.Add(1)
		r.errors.Handle(err, "route")
		return
	}

	r.Dispatch(action)
}

// -----------------------------------------------------------------------------

// Dispatch applies a decoded action.
func (r *Router) Dispatch(action Action) {
	switch a := action.(type) {
	case TradeCompleted:
		if r.holding {
			r.held = append(r.held, a)
			return
		}
		a.Apply(r.store)
	case Mutation:
		a.Apply(r.store)
	case Effect:
		a.Run(r.sinks)
	default:
		r.logger.Warning("No dispatch for action %T", action)
	}
}

// -----------------------------------------------------------------------------

// HoldTrades defers streamed trade completions until ReleaseTrades.
func (r *Router) HoldTrades() {
	r.holding = true
}

// -----------------------------------------------------------------------------

// ReleaseTrades applies held trades in arrival order. A trade is added only
// to the histories whose seed does not already contain it.
func (r *Router) ReleaseTrades() {
	r.holding = false
	held := r.held
	r.held = nil

	for _, t := range held {
		today, allTime := r.store.AppendTradeIfAbsent(t.Trade)
		if !today || !allTime {
			r.logger.Debug("Held trade %s already seeded (today added: %t, all-time added: %t)", t.Trade.Key(), today, allTime)
		}
	}
}

// -----------------------------------------------------------------------------

// Holding reports whether trade completions are currently deferred.
func (r *Router) Holding() bool {
	return r.holding
}

// -----------------------------------------------------------------------------

// RouterStats are counters safe to read from any goroutine.
type RouterStats struct {
	Received uint64 `json:"received"`
	Dropped  uint64 `json:"dropped"`
	Unknown  uint64 `json:"unknown"`
}

func (r *Router) Stats() RouterStats {
	return RouterStats{
		Received: r.received.Load(),
		Dropped:  r.dropped.Load(),
		Unknown:  r.unknown.Load(),
	}
}
