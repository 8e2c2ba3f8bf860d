package backtest

import (
	"context"
	"fmt"
)

// ScanResult reports whether the configured entry rules would fire on the
// most recent bar of one symbol.
type ScanResult struct {
	Symbol    string   `json:"symbol"`
	LastTime  string   `json:"last_time,omitempty"`
	LastClose float64  `json:"last_close,omitempty"`
	Signal    Signal   `json:"signal"`
	Rule      string   `json:"rule,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// ScanLatest evaluates the flat-state (BUY) rule set against the latest bar
// of every requested symbol. Fetch problems are recorded per symbol instead
// of aborting the scan.
func (e *Engine) ScanLatest(ctx context.Context, cfg RunConfig) ([]ScanResult, error) {
	if cfg.Interval == "" {
		cfg.Interval = "1d"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var buyRules []Rule
	for _, r := range cfg.enabledRules() {
		if r.Decision == DecisionBuy {
			buyRules = append(buyRules, r)
		}
	}

	window := lookbackWindow(cfg.enabledRules())

	out := make([]ScanResult, 0, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		res := ScanResult{Symbol: sym, Signal: SignalNone}

		bars, err := e.provider.History(ctx, sym, cfg.Start, cfg.End, cfg.Interval)
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
			out = append(out, res)
			continue
		}
		if len(bars) < 2 {
			res.Errors = append(res.Errors, fmt.Sprintf("not enough bars: %d", len(bars)))
			out = append(out, res)
			continue
		}

		i := len(bars) - 1
		cur, prev := bars[i], bars[i-1]
		res.LastTime = cur.Time.Format(timestampLayout)
		res.LastClose = cur.Close

		lo := i - window
		if lo < 0 {
			lo = 0
		}
		mv := marketView{
			closes:          bars[lo : i+1].Closes(),
			priceChangePct:  pctChange(cur.Close, prev.Close),
			volumeChangePct: pctChange(float64(cur.Volume), float64(prev.Volume)),
		}
		if rule, ok := routeSignal(buyRules, mv); ok {
			res.Signal = SignalBuy
			res.Rule = rule.Name
		}
		out = append(out, res)
	}
	return out, nil
}
