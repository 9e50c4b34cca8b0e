package router

import (
	"bot-mirror/src/interfaces"
	"bot-mirror/src/models"
	"bot-mirror/src/state"
)

// -----------------------------------------------------------------------------
// Action is the decoded form of one inbound message. It is either a Mutation,
// which performs exactly one store write, or an Effect, which never touches the
// store.
// -----------------------------------------------------------------------------

type Action interface {
	Tag() string
}

type Mutation interface {
	Action
	Apply(store *state.Store)
}

type Effect interface {
	Action
	Run(sinks EffectSinks)
}

// EffectSinks are the side-effect targets reachable from the stream.
type EffectSinks struct {
	Alerts   interfaces.IAlertSink
	Liveness interfaces.ILivenessAcker
}

// -----------------------------------------------------------------------------
// Mutations
// -----------------------------------------------------------------------------

type StatusUpdate struct{ Status models.MBotStatus }

func (StatusUpdate) Tag() string              { return models.MsgStatusUpdate }
func (a StatusUpdate) Apply(s *state.Store) { s.SetBotStatus(a.Status) }

type PerformanceUpdate struct{ Performance models.MDailyPerformance }

func (PerformanceUpdate) Tag() string              { return models.MsgDailyPerformanceUpdate }
func (a PerformanceUpdate) Apply(s *state.Store) { s.SetDailyPerformance(a.Performance) }

// TradeStatusUpdate with a nil Trade means no open position.
type TradeStatusUpdate struct{ Trade *models.MTradeStatus }

func (TradeStatusUpdate) Tag() string              { return models.MsgTradeStatusUpdate }
func (a TradeStatusUpdate) Apply(s *state.Store) { s.SetCurrentTrade(a.Trade) }

type DebugLog struct{ Entry models.MDebugLogEntry }

func (DebugLog) Tag() string              { return models.MsgDebugLog }
func (a DebugLog) Apply(s *state.Store) { s.AppendDebugLog(a.Entry) }

type TradeCompleted struct{ Trade models.MTradeRecord }

func (TradeCompleted) Tag() string              { return models.MsgNewTradeLog }
func (a TradeCompleted) Apply(s *state.Store) { s.AppendTrade(a.Trade) }

// TradeLogSnapshot carries the bot's full log of today's trades.
type TradeLogSnapshot struct{ Trades []models.MTradeRecord }

func (TradeLogSnapshot) Tag() string              { return models.MsgTradeLogUpdate }
func (a TradeLogSnapshot) Apply(s *state.Store) { s.SetTradeHistory(a.Trades) }

type OptionChainUpdate struct{ Rows []models.MOptionChainRow }

func (OptionChainUpdate) Tag() string              { return models.MsgOptionChainUpdate }
func (a OptionChainUpdate) Apply(s *state.Store) { s.SetOptionChain(a.Rows) }

type ChartDataUpdate struct{ Series models.MChartSeries }

func (ChartDataUpdate) Tag() string              { return models.MsgChartDataUpdate }
func (a ChartDataUpdate) Apply(s *state.Store) { s.SetChartSeries(a.Series) }

type WatchlistUpdate struct{ Entries []models.MWatchEntry }

func (WatchlistUpdate) Tag() string              { return models.MsgUOAListUpdate }
func (a WatchlistUpdate) Apply(s *state.Store) { s.SetWatchlist(a.Entries) }

type SystemWarning struct{ Warning models.MSystemWarning }

func (SystemWarning) Tag() string { return models.MsgSystemWarning }
func (a SystemWarning) Apply(s *state.Store) {
	level := a.Warning.Level
	if level == "" {
		level = models.LevelWarning
	}
	s.AddNotice(level, "bot", a.Warning.Message)
}

// -----------------------------------------------------------------------------
// Effects
// -----------------------------------------------------------------------------

type PlaySound struct{ Name string }

func (PlaySound) Tag() string { return models.MsgPlaySound }
func (a PlaySound) Run(sinks EffectSinks) {
	if sinks.Alerts != nil {
		sinks.Alerts.Play(a.Name)
	}
}

type Pong struct{}

func (Pong) Tag() string { return models.MsgPong }
func (Pong) Run(sinks EffectSinks) {
	if sinks.Liveness != nil {
		sinks.Liveness.Ack()
	}
}
