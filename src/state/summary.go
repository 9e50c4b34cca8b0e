package state

import (
	"bot-mirror/src/analysis"
	"bot-mirror/src/models"

	"github.com/shopspring/decimal"
)

// Summary totals today's and the all-time trade history.
func (s *Store) Summary() models.MTradeSummary {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	return models.MTradeSummary{
		Today:   Totals(s.tradeHistory),
		AllTime: Totals(s.allTimeTradeHistory),
	}
}

// Totals sums pnl in decimal so long histories do not drift.
func Totals(trades []models.MTradeRecord) models.MTradeTotals {
	net := decimal.Zero
	profit := decimal.Zero
	loss := decimal.Zero
	totals := models.MTradeTotals{Trades: len(trades), Stats: analysis.PnlStats(trades)}

	for _, t := range trades {
		pnl := decimal.NewFromFloat(t.Pnl)
		net = net.Add(pnl)
		switch pnl.Sign() {
		case 1:
			profit = profit.Add(pnl)
			totals.Wins++
		case -1:
			loss = loss.Add(pnl)
			totals.Losses++
		}
	}

	totals.NetPnl = net.Round(2).InexactFloat64()
	totals.GrossProfit = profit.Round(2).InexactFloat64()
	totals.GrossLoss = loss.Round(2).InexactFloat64()
	if decided := totals.Wins + totals.Losses; decided > 0 {
		totals.WinRate = decimal.NewFromInt(int64(totals.Wins)).
			Div(decimal.NewFromInt(int64(decided))).
			Mul(decimal.NewFromInt(100)).
			Round(2).
			InexactFloat64()
	}
	return totals
}
