package models

import "time"

// MStrategyParams is the user-editable strategy parameter set sent on start.
type MStrategyParams struct {
	TradingMode         string  `json:"trading_mode"`
	Aggressiveness      string  `json:"aggressiveness"`
	StartCapital        float64 `json:"start_capital"`
	RiskPerTradePercent float64 `json:"risk_per_trade_percent"`
	TrailingSLPoints    float64 `json:"trailing_sl_points"`
	TrailingSLPercent   float64 `json:"trailing_sl_percent"`
	DailySL             float64 `json:"daily_sl"`
	DailyPT             float64 `json:"daily_pt"`
	PartialProfitPct    float64 `json:"partial_profit_pct"`
	PartialExitPct      float64 `json:"partial_exit_pct"`
	AutoScanUOA         bool    `json:"auto_scan_uoa"`
}

// MSavedParams is the persisted record: parameters plus the selected index.
type MSavedParams struct {
	Params        MStrategyParams `json:"params"`
	SelectedIndex string          `json:"selectedIndex"`
	SavedAt       time.Time       `json:"saved_at,omitempty"`
}

// DefaultSavedParams returns the parameter set used when nothing was saved yet.
func DefaultSavedParams() MSavedParams {
	return MSavedParams{
		Params: MStrategyParams{
			TradingMode:         "Paper Trading",
			Aggressiveness:      "Moderate",
			StartCapital:        50000,
			RiskPerTradePercent: 2.0,
			TrailingSLPoints:    2,
			TrailingSLPercent:   10,
			DailySL:             -2000,
			DailyPT:             4000,
			PartialProfitPct:    20,
			PartialExitPct:      50,
			AutoScanUOA:         true,
		},
		SelectedIndex: "SENSEX",
	}
}
