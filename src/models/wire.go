package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------
// Wire Envelope
// -----------------------------------------------------------------------------

// Inbound message tags (server -> client)
const (
	MsgStatusUpdate           = "status_update"
	MsgDailyPerformanceUpdate = "daily_performance_update"
	MsgTradeStatusUpdate      = "trade_status_update"
	MsgDebugLog               = "debug_log"
	MsgNewTradeLog            = "new_trade_log"
	MsgTradeLogUpdate         = "trade_log_update"
	MsgOptionChainUpdate      = "option_chain_update"
	MsgChartDataUpdate        = "chart_data_update"
	MsgUOAListUpdate          = "uoa_list_update"
	MsgSystemWarning          = "system_warning"
	MsgPlaySound              = "play_sound"
	MsgPong                   = "pong"
)

// Outbound message tags (client -> server)
const (
	MsgPing = "ping"
)

// Dashboard push tags (local server -> viewer)
const (
	MsgSnapshot = "snapshot"
)

// MEnvelope is the {type, payload} frame used on the stream in both directions.
type MEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into a ready-to-send frame.
func NewEnvelope(msgType string, payload interface{}) ([]byte, error) {
	env := MEnvelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// -----------------------------------------------------------------------------
// Payloads
// -----------------------------------------------------------------------------

type MBotStatus struct {
	Connection string  `json:"connection"`
	Mode       string  `json:"mode"`
	IndexPrice float64 `json:"indexPrice"`
	Trend      string  `json:"trend"`
	IndexName  string  `json:"indexName"`
	IsRunning  bool    `json:"is_running"`
	IsPaused   bool    `json:"is_paused"`
}

type MDailyPerformance struct {
	NetPnl      float64 `json:"netPnl"`
	GrossProfit float64 `json:"grossProfit"`
	GrossLoss   float64 `json:"grossLoss"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
}

// MTradeStatus describes the open position, if any.
type MTradeStatus struct {
	Symbol     string  `json:"symbol"`
	EntryPrice float64 `json:"entry_price"`
	Pnl        float64 `json:"pnl"`
	ProfitPct  float64 `json:"profit_pct"`
	TrailSL    float64 `json:"trail_sl"`
	MaxPrice   float64 `json:"max_price"`
}

type MDebugLogEntry struct {
	Time    string `json:"time"`
	Source  string `json:"source"`
	Message string `json:"message"`
}

// MTradeRecord is one closed (or partially closed) trade as logged by the bot.
type MTradeRecord struct {
	ID            int64   `json:"id,omitempty"`
	Timestamp     string  `json:"timestamp"`
	TriggerReason string  `json:"trigger_reason"`
	Symbol        string  `json:"symbol"`
	Quantity      int     `json:"quantity"`
	Pnl           float64 `json:"pnl"`
	EntryPrice    float64 `json:"entry_price"`
	ExitPrice     float64 `json:"exit_price"`
	ExitReason    string  `json:"exit_reason"`
	TrendState    string  `json:"trend_state"`
	ATR           float64 `json:"atr,omitempty"`
}

// Key identifies a trade across the streamed and the fetched history.
func (t MTradeRecord) Key() string {
	if t.ID != 0 {
		return "id:" + strconv.FormatInt(t.ID, 10)
	}
	return strings.Join([]string{
		t.Timestamp,
		t.Symbol,
		t.ExitReason,
		strconv.Itoa(t.Quantity),
	}, "|")
}

// MLtp is a last traded price that the bot sends as "--" when unknown.
type MLtp struct {
	Value float64
	Valid bool
}

func (l MLtp) MarshalJSON() ([]byte, error) {
	if !l.Valid {
		return []byte(`"--"`), nil
	}
	return json.Marshal(l.Value)
}

func (l *MLtp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = MLtp{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*l = MLtp{}
			return nil
		}
		*l = MLtp{Value: v, Valid: true}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid ltp %s: %w", string(data), err)
	}
	*l = MLtp{Value: v, Valid: true}
	return nil
}

type MOptionChainRow struct {
	Strike float64 `json:"strike"`
	CELtp  MLtp    `json:"ce_ltp"`
	PELtp  MLtp    `json:"pe_ltp"`
}

// MChartPoint carries either a candle (open/high/low/close) or a single
// indicator value, depending on the series it belongs to.
type MChartPoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value,omitempty"`
	Open  float64 `json:"open,omitempty"`
	High  float64 `json:"high,omitempty"`
	Low   float64 `json:"low,omitempty"`
	Close float64 `json:"close,omitempty"`
}

// MChartSeries maps a series name (candles, wma, sma, rsi, rsi_sma) to its points.
type MChartSeries map[string][]MChartPoint

// MWatchEntry is one unusual-options-activity watchlist item.
type MWatchEntry struct {
	Symbol string  `json:"symbol"`
	Type   string  `json:"type"`
	Strike float64 `json:"strike"`
}

type MSystemWarning struct {
	Message string `json:"message"`
	Level   string `json:"level,omitempty"`
}
