package analysis

import (
	"math"

	"bot-mirror/src/models"
)

// -----------------------------------------------------------------------------

// CalculateMeanStd computes mean and population standard deviation.
func CalculateMeanStd(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range data {
		sum += v
	}
	mean := sum / float64(len(data))
	if len(data) == 1 {
		return mean, 0
	}

	varianceSum := 0.0
	for _, v := range data {
		varianceSum += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(varianceSum / float64(len(data)))
}

// -----------------------------------------------------------------------------

// MaxDrawdown is the deepest fall of cumulative pnl from its running peak.
// pnls must be in chronological order; the result is zero or negative.
func MaxDrawdown(pnls []float64) float64 {
	cumulative, peak, worst := 0.0, 0.0, 0.0
	for _, p := range pnls {
		cumulative += p
		if cumulative > peak {
			peak = cumulative
		}
		if dd := cumulative - peak; dd < worst {
			worst = dd
		}
	}
	return worst
}

// -----------------------------------------------------------------------------

// PnlStats describes the distribution of a newest-first trade history.
func PnlStats(trades []models.MTradeRecord) models.MPnlStats {
	if len(trades) == 0 {
		return models.MPnlStats{}
	}

	// oldest first
	pnls := make([]float64, len(trades))
	for i, t := range trades {
		pnls[len(trades)-1-i] = t.Pnl
	}

	mean, std := CalculateMeanStd(pnls)
	stats := models.MPnlStats{
		Average:     round2(mean),
		StdDev:      round2(std),
		Best:        pnls[0],
		Worst:       pnls[0],
		MaxDrawdown: round2(MaxDrawdown(pnls)),
	}
	for _, p := range pnls[1:] {
		stats.Best = math.Max(stats.Best, p)
		stats.Worst = math.Min(stats.Worst, p)
	}
	return stats
}

// -----------------------------------------------------------------------------

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
