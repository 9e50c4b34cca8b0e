package initsync

import (
	"context"
	"fmt"
	"time"

	"bot-mirror/src/interfaces"
	"bot-mirror/src/logger"
	"bot-mirror/src/models"
	"bot-mirror/src/router"
	"bot-mirror/src/state"
	"bot-mirror/src/trace"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const defaultTimeout = 15 * time.Second

// -----------------------------------------------------------------------------
// InitialSync seeds trade history after every successful open. Fetches run off
// the loop; results are applied on it.
// -----------------------------------------------------------------------------

type InitialSync struct {
	source  interfaces.ITradeHistorySource
	sched   interfaces.IScheduler
	store   *state.Store
	router  *router.Router
	logger  *logger.Logger
	ctx     context.Context
	timeout time.Duration
}

type fetchResult struct {
	today    []models.MTradeRecord
	allTime  []models.MTradeRecord
	todayErr error
	allErr   error
}

// -----------------------------------------------------------------------------

// NewInitialSync builds the syncer. ctx bounds every fetch; cancel it on shutdown.
func NewInitialSync(ctx context.Context, source interfaces.ITradeHistorySource, sched interfaces.IScheduler, store *state.Store, rt *router.Router, timeout time.Duration, log *logger.Logger) *InitialSync {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = logger.NewNop("InitialSync")
	}
	return &InitialSync{
		source:  source,
		sched:   sched,
		store:   store,
		router:  rt,
		logger:  log,
		ctx:     ctx,
		timeout: timeout,
	}
}

// -----------------------------------------------------------------------------

// Run holds streamed trade completions and starts both fetches. It returns
// immediately.
func (s *InitialSync) Run(isCurrent func() bool) {
	s.router.HoldTrades()

	go func() {
		res := s.fetch()
		s.sched.Post(func() { s.apply(isCurrent, res) })
	}()
}

// -----------------------------------------------------------------------------

func (s *InitialSync) fetch() fetchResult {
	ctx, span := trace.StartSpan(s.ctx, "initsync.fetch")
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var res fetchResult
	var g errgroup.Group
	g.Go(func() error {
		res.today, res.todayErr = s.source.TodayTrades(ctx)
		return res.todayErr
	})
	g.Go(func() error {
		res.allTime, res.allErr = s.source.AllTimeTrades(ctx)
		return res.allErr
	})
	err := g.Wait()

	span.SetAttributes(
		attribute.Int("trades.today", len(res.today)),
		attribute.Int("trades.all_time", len(res.allTime)),
	)
	trace.EndSpan(span, err)
	return res
}

// -----------------------------------------------------------------------------

func (s *InitialSync) apply(isCurrent func() bool, res fetchResult) {
	if !isCurrent() {
		s.logger.Debug("Discarding sync result for a superseded connection")
		return
	}

	if res.todayErr != nil {
		s.logger.Error("Failed to fetch today's trades: %v", res.todayErr)
		s.store.PushNotification(models.LevelError, "sync", fmt.Sprintf("Could not load today's trades: %v", res.todayErr))
	} else {
		s.store.SetTradeHistory(res.today)
	}

	if res.allErr != nil {
		s.logger.Error("Failed to fetch all-time trades: %v", res.allErr)
		s.store.PushNotification(models.LevelError, "sync", fmt.Sprintf("Could not load trade history: %v", res.allErr))
	} else {
		s.store.SetAllTimeTradeHistory(res.allTime)
	}

	s.router.ReleaseTrades()
	s.logger.Info("Initial sync done: %d today, %d all-time", len(res.today), len(res.allTime))
}
