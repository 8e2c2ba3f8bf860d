package backtest

import "fmt"

// RuleKind selects the rule variant. The parametric kinds compute signals
// from derived statistics; RuleThreshold compares raw percentage moves.
type RuleKind string

const (
	RuleMeanReversion   RuleKind = "mean_reversion"
	RuleProfitTaker     RuleKind = "profit_taker"
	RuleLossTaker       RuleKind = "loss_taker"
	RuleLossProfitTaker RuleKind = "loss_profit_taker"
	RuleThreshold       RuleKind = "threshold"
)

// ChangeKind is the comparison a threshold rule applies.
type ChangeKind string

const (
	ChangePriceIncrease  ChangeKind = "price_increase"
	ChangePriceDecrease  ChangeKind = "price_decrease"
	ChangeVolumeIncrease ChangeKind = "volume_increase"
	ChangeVolumeDecrease ChangeKind = "volume_decrease"
)

// Rule is one configured trading rule. Rules are configuration data: built
// once at config load and read-only afterwards.
type Rule struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Decision Decision `json:"decision" yaml:"decision"`
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	Kind     RuleKind `json:"kind" yaml:"kind"`

	// Parametric rule parameters. Thresholds are fractions (0.02 = 2%).
	ShortWindow     int     `json:"short_window,omitempty" yaml:"short_window"`
	LongWindow      int     `json:"long_window,omitempty" yaml:"long_window"`
	ProfitThreshold float64 `json:"profit_threshold,omitempty" yaml:"profit_threshold"`
	LossThreshold   float64 `json:"loss_threshold,omitempty" yaml:"loss_threshold"`

	// Threshold rule parameters. ChangePercent is a percentage (2 = 2%).
	Change        ChangeKind `json:"change,omitempty" yaml:"change"`
	ChangePercent float64    `json:"change_percent,omitempty" yaml:"change_percent"`

	// Quantity overrides the run-wide quantity per trade when positive.
	Quantity int `json:"quantity,omitempty" yaml:"quantity"`
}

func (r Rule) withDefaults() Rule {
	if r.ShortWindow <= 0 {
		r.ShortWindow = 5
	}
	if r.LongWindow <= 0 {
		r.LongWindow = 20
	}
	if r.ProfitThreshold <= 0 {
		r.ProfitThreshold = 0.02
	}
	if r.LossThreshold <= 0 {
		r.LossThreshold = 0.02
	}
	if r.ChangePercent <= 0 {
		r.ChangePercent = 2
	}
	return r
}

// Parametric reports whether the rule belongs to the parametric group, which
// the router evaluates ahead of threshold rules.
func (r Rule) Parametric() bool {
	return r.Kind != RuleThreshold
}

// RuleError marks a malformed rule configuration, caught before any data is
// fetched or simulated.
type RuleError struct {
	Rule   string
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %q: %s", e.Rule, e.Reason)
}

// Validate rejects malformed rule configurations before they reach the
// simulation loop.
func (r Rule) Validate() error {
	switch r.Kind {
	case RuleMeanReversion:
		if r.Decision != DecisionBuy {
			return &RuleError{Rule: r.Name, Reason: fmt.Sprintf("%s must have decision BUY", r.Kind)}
		}
	case RuleProfitTaker, RuleLossTaker, RuleLossProfitTaker:
		if r.Decision != DecisionSell {
			return &RuleError{Rule: r.Name, Reason: fmt.Sprintf("%s must have decision SELL", r.Kind)}
		}
	case RuleThreshold:
		switch r.Change {
		case ChangePriceIncrease, ChangePriceDecrease, ChangeVolumeIncrease, ChangeVolumeDecrease:
		default:
			return &RuleError{Rule: r.Name, Reason: fmt.Sprintf("unknown change kind %q", r.Change)}
		}
	default:
		return &RuleError{Rule: r.Name, Reason: fmt.Sprintf("unknown rule kind %q", r.Kind)}
	}
	switch r.Decision {
	case DecisionBuy, DecisionSell:
	default:
		return &RuleError{Rule: r.Name, Reason: fmt.Sprintf("unknown decision %q", r.Decision)}
	}
	return nil
}

// marketView is the per-instrument per-bar state a rule evaluates against.
// All percentage fields are already guarded against zero denominators.
type marketView struct {
	closes []float64 // lookback window closes, last element is the current bar

	priceChangePct  float64 // bar-over-bar close change, percent
	volumeChangePct float64 // bar-over-bar volume change, percent

	holding        bool
	positionChange float64 // (close-entry)/entry fraction, valid when holding
}

// evaluate dispatches on the rule variant and returns the rule's signal.
func (r Rule) evaluate(mv marketView) Signal {
	r = r.withDefaults()
	switch r.Kind {
	case RuleMeanReversion:
		if mv.holding {
			return SignalNone
		}
		short, ok1 := tailMean(mv.closes, r.ShortWindow)
		long, ok2 := tailMean(mv.closes, r.LongWindow)
		if !ok1 || !ok2 {
			return SignalNone
		}
		// Price below its longer-run mean: expect reversion upward.
		if short < long {
			return SignalBuy
		}
		return SignalNone

	case RuleProfitTaker:
		if !mv.holding {
			return SignalNone
		}
		if mv.positionChange >= r.ProfitThreshold {
			return SignalSell
		}
		return SignalNone

	case RuleLossTaker:
		if !mv.holding {
			return SignalNone
		}
		if -mv.positionChange >= r.LossThreshold {
			return SignalSell
		}
		return SignalNone

	case RuleLossProfitTaker:
		if !mv.holding {
			return SignalNone
		}
		if mv.positionChange <= -r.LossThreshold || mv.positionChange >= r.ProfitThreshold {
			return SignalSell
		}
		return SignalNone

	case RuleThreshold:
		return r.evaluateThreshold(mv)
	}
	return SignalNone
}

// evaluateThreshold compares percentage moves. BUY rules look at bar-over-bar
// changes; SELL rules look at the move relative to the entry price for price
// kinds, and bar-over-bar volume for volume kinds.
func (r Rule) evaluateThreshold(mv marketView) Signal {
	var change float64
	switch r.Change {
	case ChangePriceIncrease, ChangePriceDecrease:
		if r.Decision == DecisionSell {
			if !mv.holding {
				return SignalNone
			}
			change = mv.positionChange * 100
		} else {
			change = mv.priceChangePct
		}
	case ChangeVolumeIncrease, ChangeVolumeDecrease:
		change = mv.volumeChangePct
	default:
		return SignalNone
	}

	triggered := false
	switch r.Change {
	case ChangePriceIncrease, ChangeVolumeIncrease:
		triggered = change >= r.ChangePercent
	case ChangePriceDecrease, ChangeVolumeDecrease:
		triggered = change <= -r.ChangePercent
	}
	if !triggered {
		return SignalNone
	}
	if r.Decision == DecisionSell {
		return SignalSell
	}
	return SignalBuy
}

// tailMean averages the last n values. Reports false when fewer than n values
// are available, matching a rolling mean that has not warmed up yet.
func tailMean(values []float64, n int) (float64, bool) {
	if n <= 0 || len(values) < n {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	return sum / float64(n), true
}
