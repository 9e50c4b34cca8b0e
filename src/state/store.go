package state

import (
	"sort"
	"sync"
	"time"

	"bot-mirror/src/interfaces"
	"bot-mirror/src/models"
	"bot-mirror/src/utils"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Store is the single source of truth for remote-derived state. Every slice is
// replaced wholesale through its mutator; readers only ever see copies.
// -----------------------------------------------------------------------------

type Store struct {
	stateMutex sync.RWMutex
	version    uint64

	connection     models.ConnectionState
	lastLivenessAt time.Time

	botStatus           models.MBotStatus
	botStatusVersion    uint64
	dailyPerformance    models.MDailyPerformance
	currentTrade        *models.MTradeStatus
	optionChain         []models.MOptionChainRow
	chartSeries         models.MChartSeries
	debugLog            *utils.RingBuffer[models.MDebugLogEntry]
	tradeHistory        []models.MTradeRecord
	allTimeTradeHistory []models.MTradeRecord
	watchlist           []models.MWatchEntry
	notices             *utils.RingBuffer[models.MNotification]
	notifications       *utils.RingBuffer[models.MNotification]

	observerMutex sync.RWMutex
	observers     []interfaces.IStateObserver

	now        func() time.Time
	marketOpen func(time.Time) bool
}

// Options tunes capacities and injects the clock.
type Options struct {
	DebugLogCapacity     int
	NotificationCapacity int
	NoticeCapacity       int
	Now                  func() time.Time
	MarketOpen           func(time.Time) bool
}

// -----------------------------------------------------------------------------

func NewStore(opts Options) *Store {
	if opts.DebugLogCapacity <= 0 {
		opts.DebugLogCapacity = utils.DefaultDebugLogCapacity
	}
	if opts.NotificationCapacity <= 0 {
		opts.NotificationCapacity = utils.DefaultNotificationCapacity
	}
	if opts.NoticeCapacity <= 0 {
		opts.NoticeCapacity = utils.DefaultNoticeCapacity
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Store{
		connection:    models.StateDisconnected,
		debugLog:      utils.NewRingBuffer[models.MDebugLogEntry](opts.DebugLogCapacity),
		notices:       utils.NewRingBuffer[models.MNotification](opts.NoticeCapacity),
		notifications: utils.NewRingBuffer[models.MNotification](opts.NotificationCapacity),
		chartSeries:   models.MChartSeries{},
		now:           opts.Now,
		marketOpen:    opts.MarketOpen,
	}
}

// NewStoreFromConfig sizes the store from the store section of the config.
func NewStoreFromConfig(cfg models.MStoreConfig, marketOpen func(time.Time) bool) *Store {
	return NewStore(Options{
		DebugLogCapacity:     cfg.DebugLogCapacity,
		NotificationCapacity: cfg.NotificationCapacity,
		NoticeCapacity:       cfg.NoticeCapacity,
		MarketOpen:           marketOpen,
	})
}

// -----------------------------------------------------------------------------
// Observers
// -----------------------------------------------------------------------------

// Subscribe registers an observer called after every mutation.
func (s *Store) Subscribe(observer interfaces.IStateObserver) {
	s.observerMutex.Lock()
	defer s.observerMutex.Unlock()
	s.observers = append(s.observers, observer)
}

// -----------------------------------------------------------------------------

// mutate applies fn under the write lock, bumps the version and notifies.
func (s *Store) mutate(fn func()) {
	s.stateMutex.Lock()
	fn()
	s.version++
	version := s.version
	s.stateMutex.Unlock()

	s.observerMutex.RLock()
	observers := s.observers
	s.observerMutex.RUnlock()
	for _, o := range observers {
		o.OnStateChanged(version)
	}
}

// -----------------------------------------------------------------------------
// Mutators
// -----------------------------------------------------------------------------

func (s *Store) SetConnectionState(cs models.ConnectionState) {
	s.mutate(func() { s.connection = cs })
}

// -----------------------------------------------------------------------------

func (s *Store) SetLastLiveness(at time.Time) {
	s.mutate(func() { s.lastLivenessAt = at })
}

// -----------------------------------------------------------------------------

func (s *Store) SetBotStatus(status models.MBotStatus) {
	s.mutate(func() {
		s.botStatus = status
		s.botStatusVersion = s.version + 1
	})
}

// -----------------------------------------------------------------------------

func (s *Store) SetDailyPerformance(perf models.MDailyPerformance) {
	s.mutate(func() { s.dailyPerformance = perf })
}

// -----------------------------------------------------------------------------

// SetCurrentTrade replaces the open position; nil means flat.
func (s *Store) SetCurrentTrade(trade *models.MTradeStatus) {
	var cp *models.MTradeStatus
	if trade != nil {
		t := *trade
		cp = &t
	}
	s.mutate(func() { s.currentTrade = cp })
}

// -----------------------------------------------------------------------------

func (s *Store) SetOptionChain(rows []models.MOptionChainRow) {
	cp := copySlice(rows)
	s.mutate(func() { s.optionChain = cp })
}

// -----------------------------------------------------------------------------

// SetChartSeries replaces every series; points are kept in time order.
func (s *Store) SetChartSeries(series models.MChartSeries) {
	cp := copySeries(series)
	for _, points := range cp {
		sort.SliceStable(points, func(i, j int) bool { return points[i].Time < points[j].Time })
	}
	s.mutate(func() { s.chartSeries = cp })
}

// -----------------------------------------------------------------------------

// AppendDebugLog adds an entry, evicting the oldest once at capacity.
func (s *Store) AppendDebugLog(entry models.MDebugLogEntry) {
	s.mutate(func() { s.debugLog.Append(entry) })
}

// -----------------------------------------------------------------------------

// AppendTrade prepends a completed trade to today's and the all-time history.
func (s *Store) AppendTrade(trade models.MTradeRecord) {
	s.mutate(func() {
		s.tradeHistory = prepend(s.tradeHistory, trade)
		s.allTimeTradeHistory = prepend(s.allTimeTradeHistory, trade)
	})
}

// -----------------------------------------------------------------------------

// AppendTradeIfAbsent prepends trade to each history that does not already
// hold its key. Today's and the all-time history are seeded independently, so
// each is checked on its own. It reports which histories changed.
func (s *Store) AppendTradeIfAbsent(trade models.MTradeRecord) (today, allTime bool) {
	key := trade.Key()
	s.stateMutex.RLock()
	today = !containsKey(s.tradeHistory, key)
	allTime = !containsKey(s.allTimeTradeHistory, key)
	s.stateMutex.RUnlock()
	if !today && !allTime {
		return false, false
	}

	s.mutate(func() {
		if today {
			s.tradeHistory = prepend(s.tradeHistory, trade)
		}
		if allTime {
			s.allTimeTradeHistory = prepend(s.allTimeTradeHistory, trade)
		}
	})
	return today, allTime
}

// -----------------------------------------------------------------------------

func (s *Store) SetTradeHistory(trades []models.MTradeRecord) {
	cp := copySlice(trades)
	s.mutate(func() { s.tradeHistory = cp })
}

// -----------------------------------------------------------------------------

func (s *Store) SetAllTimeTradeHistory(trades []models.MTradeRecord) {
	cp := copySlice(trades)
	s.mutate(func() { s.allTimeTradeHistory = cp })
}

// -----------------------------------------------------------------------------

// ClearTradeHistory empties today's history on operator request.
func (s *Store) ClearTradeHistory() {
	s.mutate(func() { s.tradeHistory = nil })
}

// -----------------------------------------------------------------------------

func (s *Store) SetWatchlist(entries []models.MWatchEntry) {
	cp := copySlice(entries)
	s.mutate(func() { s.watchlist = cp })
}

// -----------------------------------------------------------------------------

// AddNotice records a persistent notice (system warning).
func (s *Store) AddNotice(level, source, message string) {
	n := s.newNotification(level, source, message)
	s.mutate(func() { s.notices.Append(n) })
}

// -----------------------------------------------------------------------------

// DismissNotices drops every persistent notice.
func (s *Store) DismissNotices() {
	s.mutate(func() { s.notices.Clear() })
}

// -----------------------------------------------------------------------------

// PushNotification records a transient notification.
func (s *Store) PushNotification(level, source, message string) {
	n := s.newNotification(level, source, message)
	s.mutate(func() { s.notifications.Append(n) })
}

// -----------------------------------------------------------------------------

// ResetRealtimeSlices restores every bot-derived slice to its empty default.
// Connection state, liveness and notices survive.
func (s *Store) ResetRealtimeSlices() {
	s.resetRealtime(false, 0)
}

// -----------------------------------------------------------------------------

// ResetRealtimeSlicesSince resets like ResetRealtimeSlices but keeps a bot
// status written after version since. The bot announces its final status
// before it answers a stop, so that frame may already be applied.
func (s *Store) ResetRealtimeSlicesSince(since uint64) {
	s.resetRealtime(true, since)
}

func (s *Store) resetRealtime(keepNewerStatus bool, since uint64) {
	s.mutate(func() {
		if !keepNewerStatus || s.botStatusVersion <= since {
			s.botStatus = models.MBotStatus{}
		}
		s.dailyPerformance = models.MDailyPerformance{}
		s.currentTrade = nil
		s.optionChain = nil
		s.chartSeries = models.MChartSeries{}
		s.debugLog.Clear()
		s.tradeHistory = nil
		s.allTimeTradeHistory = nil
		s.watchlist = nil
		s.notifications.Clear()
	})
}

// -----------------------------------------------------------------------------
// Read access
// -----------------------------------------------------------------------------

func (s *Store) Version() uint64 {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	return s.version
}

// -----------------------------------------------------------------------------

func (s *Store) Connection() models.ConnectionState {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	return s.connection
}

// -----------------------------------------------------------------------------

// -----------------------------------------------------------------------------

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() models.MSnapshot {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	snap := models.MSnapshot{
		Version:             s.version,
		Connection:          s.connection,
		Stale:               s.connection != models.StateConnected,
		LastLivenessAt:      s.lastLivenessAt,
		BotStatus:           s.botStatus,
		DailyPerformance:    s.dailyPerformance,
		OptionChain:         copySlice(s.optionChain),
		ChartSeries:         copySeries(s.chartSeries),
		DebugLog:            s.debugLog.NewestFirst(),
		TradeHistory:        copySlice(s.tradeHistory),
		AllTimeTradeHistory: copySlice(s.allTimeTradeHistory),
		Watchlist:           copySlice(s.watchlist),
		Notices:             s.notices.NewestFirst(),
		Notifications:       s.notifications.NewestFirst(),
	}
	if s.currentTrade != nil {
		t := *s.currentTrade
		snap.CurrentTrade = &t
	}
	if s.marketOpen != nil {
		snap.MarketOpen = s.marketOpen(s.now())
	}
	return snap
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func (s *Store) newNotification(level, source, message string) models.MNotification {
	if level == "" {
		level = models.LevelInfo
	}
	return models.MNotification{
		ID:        uuid.NewString(),
		Level:     level,
		Source:    source,
		Message:   message,
		CreatedAt: s.now(),
	}
}

func copySlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func copySeries(in models.MChartSeries) models.MChartSeries {
	out := make(models.MChartSeries, len(in))
	for name, points := range in {
		out[name] = copySlice(points)
	}
	return out
}

func containsKey(list []models.MTradeRecord, key string) bool {
	for _, t := range list {
		if t.Key() == key {
			return true
		}
	}
	return false
}

func prepend(list []models.MTradeRecord, trade models.MTradeRecord) []models.MTradeRecord {
	out := make([]models.MTradeRecord, 0, len(list)+1)
	out = append(out, trade)
	return append(out, list...)
}
