package models

import "time"

// -----------------------------------------------------------------------------
// Connection State
// -----------------------------------------------------------------------------

type ConnectionState string

const (
	StateConnecting   ConnectionState = "CONNECTING"
	StateConnected    ConnectionState = "CONNECTED"
	StateDisconnected ConnectionState = "DISCONNECTED"
)

// CanTransition reports whether from -> to is a legal lifecycle edge.
// CONNECTING -> DISCONNECTED covers a connection that never opens.
func CanTransition(from, to ConnectionState) bool {
	switch from {
	case StateConnecting:
		return to == StateConnected || to == StateDisconnected
	case StateConnected:
		return to == StateDisconnected
	case StateDisconnected:
		return to == StateConnecting
	}
	return false
}

// -----------------------------------------------------------------------------
// Notifications
// -----------------------------------------------------------------------------

// Notification levels
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// MNotification is a user-visible message. Notices (system warnings) persist
// until dismissed; notifications are transient.
type MNotification struct {
	ID        string    `json:"id"`
	Level     string    `json:"level"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// -----------------------------------------------------------------------------
// Snapshot
// -----------------------------------------------------------------------------

// MSnapshot is a deep copy of the client state at a given version.
type MSnapshot struct {
	Version             uint64            `json:"version"`
	Connection          ConnectionState   `json:"connection"`
	Stale               bool              `json:"stale"`
	MarketOpen          bool              `json:"market_open"`
	LastLivenessAt      time.Time         `json:"last_liveness_at"`
	BotStatus           MBotStatus        `json:"bot_status"`
	DailyPerformance    MDailyPerformance `json:"daily_performance"`
	CurrentTrade        *MTradeStatus     `json:"current_trade"`
	OptionChain         []MOptionChainRow `json:"option_chain"`
	ChartSeries         MChartSeries      `json:"chart_series"`
	DebugLog            []MDebugLogEntry  `json:"debug_log"`
	TradeHistory        []MTradeRecord    `json:"trade_history"`
	AllTimeTradeHistory []MTradeRecord    `json:"all_time_trade_history"`
	Watchlist           []MWatchEntry     `json:"watchlist"`
	Notices             []MNotification   `json:"notices"`
	Notifications       []MNotification   `json:"notifications"`
}

// MTradeTotals aggregates a list of trades.
type MTradeTotals struct {
	Trades      int       `json:"trades"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	NetPnl      float64   `json:"net_pnl"`
	GrossProfit float64   `json:"gross_profit"`
	GrossLoss   float64   `json:"gross_loss"`
	WinRate     float64   `json:"win_rate"`
	Stats       MPnlStats `json:"stats"`
}

// MPnlStats is the per-trade pnl distribution of a history.
type MPnlStats struct {
	Average     float64 `json:"average"`
	StdDev      float64 `json:"std_dev"`
	Best        float64 `json:"best"`
	Worst       float64 `json:"worst"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

type MTradeSummary struct {
	Today   MTradeTotals `json:"today"`
	AllTime MTradeTotals `json:"all_time"`
}
