package backtest

import (
	"context"
	"fmt"
	"time"

	"systrader/model"
)

// DataProvider resolves historical bars for one symbol. An unavailable
// instrument is reported as an empty series with a nil error; a non-nil
// error means the retrieval itself failed and aborts the run.
type DataProvider interface {
	History(ctx context.Context, symbol string, start, end time.Time, interval string) (model.Series, error)
}

// Engine drives the bar-by-bar simulation across all requested instruments.
type Engine struct {
	provider DataProvider
}

// NewEngine creates an engine backed by the given data provider.
func NewEngine(provider DataProvider) *Engine {
	return &Engine{provider: provider}
}

// minParametricLookback is the floor on the warm-up window whenever any
// parametric rule is configured, so derived statistics are well-formed.
const minParametricLookback = 20

// Run executes one backtest. Each run owns its ledger and trade log, so
// concurrent runs are independent. Per-instrument data gaps degrade the run
// and are reported in Result.Diagnostics; they never abort it.
func (e *Engine) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if cfg.Interval == "" {
		cfg.Interval = "1d"
	}
	if cfg.QuantityPerTrade <= 0 {
		cfg.QuantityPerTrade = 100
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	enabled := cfg.enabledRules()
	var buyRules, sellRules []Rule
	for _, r := range enabled {
		if r.Decision == DecisionBuy {
			buyRules = append(buyRules, r)
		} else {
			sellRules = append(sellRules, r)
		}
	}

	var diags []string
	data := make(map[string]model.Series)
	var resolved []string
	for _, sym := range cfg.Symbols {
		if _, dup := data[sym]; dup {
			continue
		}
		bars, err := e.provider.History(ctx, sym, cfg.Start, cfg.End, cfg.Interval)
		if err != nil {
			return nil, fmt.Errorf("history %s: %w", sym, err)
		}
		if len(bars) == 0 {
			diags = append(diags, fmt.Sprintf("no data for %s, skipped", sym))
			continue
		}
		data[sym] = bars
		resolved = append(resolved, sym)
	}

	startStamp := cfg.Start.Format(timestampLayout)
	if len(resolved) == 0 {
		diags = append(diags, "no instrument returned any data")
		res := summarize(nil, nil, cfg.InitialCapital, cfg.InitialCapital)
		res.Trades = []TradeRecord{}
		res.PortfolioValues = []float64{round2(cfg.InitialCapital)}
		res.Timestamps = []string{startStamp}
		res.Diagnostics = diags
		return res, nil
	}

	ledger := NewLedger(cfg.InitialCapital)
	trades := []TradeRecord{}
	values := []float64{round2(cfg.InitialCapital)}
	stamps := []string{startStamp}

	maxLen := 0
	for _, sym := range resolved {
		if len(data[sym]) > maxLen {
			maxLen = len(data[sym])
		}
	}

	window := lookbackWindow(enabled)
	sampleEvery := maxLen / 100
	if sampleEvery < 1 {
		sampleEvery = 1
	}

	for i := window; i < maxLen; i++ {
		for _, sym := range resolved {
			bars := data[sym]
			if i >= len(bars) {
				continue
			}
			cur, prev := bars[i], bars[i-1]
			ts := cur.Time.Format(timestampLayout)

			lo := i - window
			if lo < 0 {
				lo = 0
			}
			mv := marketView{
				closes:          bars[lo : i+1].Closes(),
				priceChangePct:  pctChange(cur.Close, prev.Close),
				volumeChangePct: pctChange(float64(cur.Volume), float64(prev.Volume)),
			}

			if pos, ok := ledger.Position(sym); ok {
				mv.holding = true
				if pos.EntryPrice != 0 {
					mv.positionChange = (cur.Close - pos.EntryPrice) / pos.EntryPrice
				}
				if rule, ok := routeSignal(sellRules, mv); ok {
					closed, pnl, _ := ledger.Close(sym, cur.Close)
					p := round2(pnl)
					trades = append(trades, TradeRecord{
						ID:            fmt.Sprintf("trade-%d-%s-sell", i, sym),
						Timestamp:     ts,
						Symbol:        sym,
						Decision:      DecisionSell,
						Price:         cur.Close,
						Quantity:      closed.Quantity,
						RuleTriggered: rule.Name,
						PnL:           &p,
					})
				}
			} else if rule, ok := routeSignal(buyRules, mv); ok {
				qty := cfg.QuantityPerTrade
				if rule.Quantity > 0 {
					qty = rule.Quantity
				}
				// Open rejects the fill when cash is short; a missed entry
				// is not an error.
				if ledger.Open(sym, qty, cur.Close, ts) {
					trades = append(trades, TradeRecord{
						ID:            fmt.Sprintf("trade-%d-%s-buy", i, sym),
						Timestamp:     ts,
						Symbol:        sym,
						Decision:      DecisionBuy,
						Price:         cur.Close,
						Quantity:      qty,
						RuleTriggered: rule.Name,
					})
				}
			}
		}

		if i%sampleEvery == 0 {
			value := ledger.MarkToMarket(func(sym string) float64 {
				bars := data[sym]
				idx := i
				if idx >= len(bars) {
					idx = len(bars) - 1
				}
				return bars[idx].Close
			})
			values = append(values, round2(value))
			for _, sym := range resolved {
				if i < len(data[sym]) {
					stamps = append(stamps, data[sym][i].Time.Format(timestampLayout))
					break
				}
			}
		}
	}

	// Force-liquidate whatever is still open at the final available price.
	for _, sym := range ledger.OpenSymbols() {
		bars := data[sym]
		last := bars[len(bars)-1]
		pos, pnl, ok := ledger.Close(sym, last.Close)
		if !ok {
			continue
		}
		p := round2(pnl)
		trades = append(trades, TradeRecord{
			ID:            fmt.Sprintf("trade-final-%s", sym),
			Timestamp:     last.Time.Format(timestampLayout),
			Symbol:        sym,
			Decision:      DecisionSell,
			Price:         last.Close,
			Quantity:      pos.Quantity,
			RuleTriggered: EndOfBacktestRule,
			PnL:           &p,
		})
	}

	// Metrics run over the sampled curve; the closing cash sample is
	// appended afterwards so a final liquidation does not mask drawdown.
	res := summarize(trades, values, cfg.InitialCapital, ledger.Cash())
	values = append(values, round2(ledger.Cash()))
	stamps = append(stamps, endStamp(cfg, data, resolved))

	res.Trades = trades
	res.PortfolioValues = values
	res.Timestamps = stamps
	res.Diagnostics = diags
	return res, nil
}

// lookbackWindow is the first simulatable bar index: the largest window any
// parametric rule needs (floored at minParametricLookback), or 1 when only
// threshold rules are configured since those need a single prior bar.
func lookbackWindow(rules []Rule) int {
	w := 1
	parametric := false
	for _, r := range rules {
		if !r.Parametric() {
			continue
		}
		parametric = true
		r = r.withDefaults()
		if r.Kind == RuleMeanReversion && r.LongWindow > w {
			w = r.LongWindow
		}
	}
	if parametric && w < minParametricLookback {
		w = minParametricLookback
	}
	return w
}

func endStamp(cfg RunConfig, data map[string]model.Series, resolved []string) string {
	if !cfg.End.IsZero() {
		return cfg.End.Format(timestampLayout)
	}
	var last time.Time
	for _, sym := range resolved {
		bars := data[sym]
		if t := bars[len(bars)-1].Time; t.After(last) {
			last = t
		}
	}
	return last.Format(timestampLayout)
}

// pctChange is a zero-guarded bar-over-bar percentage change.
func pctChange(cur, prev float64) float64 {
	if prev <= 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}
