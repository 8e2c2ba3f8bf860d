package backtest

import "math"

// summarize aggregates the trade log and the sampled portfolio curve into
// summary statistics. Internal accumulation stays unrounded; the reported
// fields are rounded to cents.
func summarize(trades []TradeRecord, values []float64, initialCapital, finalCash float64) *Result {
	winning, losing := 0, 0
	totalPnL := 0.0
	for _, t := range trades {
		if t.Decision != DecisionSell || t.PnL == nil {
			continue
		}
		switch {
		case *t.PnL > 0:
			winning++
		case *t.PnL < 0:
			losing++
		}
		totalPnL += *t.PnL
	}

	percentReturn := 0.0
	if initialCapital != 0 {
		percentReturn = (finalCash - initialCapital) / initialCapital * 100
	}

	return &Result{
		TotalTrades:   len(trades),
		WinningTrades: winning,
		LosingTrades:  losing,
		TotalPnL:      round2(totalPnL),
		PercentReturn: round2(percentReturn),
		MaxDrawdown:   round2(maxDrawdown(values, initialCapital)),
	}
}

// maxDrawdown runs the peak-tracking algorithm over the sampled curve: the
// largest percentage decline from the highest value seen so far. A fresh
// peak contributes zero, so the result is never negative.
func maxDrawdown(values []float64, initialCapital float64) float64 {
	peak := initialCapital
	maxDD := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - v) / peak * 100
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
