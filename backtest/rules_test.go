package backtest

import (
	"errors"
	"testing"
)

func TestThresholdRuleEvaluate(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		mv   marketView
		want Signal
	}{
		{
			name: "price increase triggers buy",
			rule: Rule{Decision: DecisionBuy, Kind: RuleThreshold, Change: ChangePriceIncrease, ChangePercent: 2},
			mv:   marketView{closes: []float64{100, 102}, priceChangePct: 2},
			want: SignalBuy,
		},
		{
			name: "price increase below threshold",
			rule: Rule{Decision: DecisionBuy, Kind: RuleThreshold, Change: ChangePriceIncrease, ChangePercent: 2},
			mv:   marketView{closes: []float64{100, 101.9}, priceChangePct: 1.9},
			want: SignalNone,
		},
		{
			name: "price decrease triggers buy",
			rule: Rule{Decision: DecisionBuy, Kind: RuleThreshold, Change: ChangePriceDecrease, ChangePercent: 3},
			mv:   marketView{closes: []float64{100, 97}, priceChangePct: -3},
			want: SignalBuy,
		},
		{
			name: "volume increase triggers buy",
			rule: Rule{Decision: DecisionBuy, Kind: RuleThreshold, Change: ChangeVolumeIncrease, ChangePercent: 50},
			mv:   marketView{closes: []float64{100, 100}, volumeChangePct: 60},
			want: SignalBuy,
		},
		{
			name: "sell compares against entry price",
			rule: Rule{Decision: DecisionSell, Kind: RuleThreshold, Change: ChangePriceIncrease, ChangePercent: 2},
			mv:   marketView{closes: []float64{100, 102.5}, holding: true, positionChange: 0.025},
			want: SignalSell,
		},
		{
			name: "sell price rule is inert while flat",
			rule: Rule{Decision: DecisionSell, Kind: RuleThreshold, Change: ChangePriceIncrease, ChangePercent: 2},
			mv:   marketView{closes: []float64{100, 110}, priceChangePct: 10},
			want: SignalNone,
		},
		{
			name: "sell on price drop from entry",
			rule: Rule{Decision: DecisionSell, Kind: RuleThreshold, Change: ChangePriceDecrease, ChangePercent: 2},
			mv:   marketView{closes: []float64{100, 97}, holding: true, positionChange: -0.03},
			want: SignalSell,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.evaluate(tt.mv); got != tt.want {
				t.Errorf("evaluate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParametricRuleEvaluate(t *testing.T) {
	declining := append(repeat(100, 19), 90) // short mean 98 < long mean 99.5
	flat := repeat(100, 20)

	tests := []struct {
		name string
		rule Rule
		mv   marketView
		want Signal
	}{
		{
			name: "mean reversion fires when short mean is below long",
			rule: Rule{Decision: DecisionBuy, Kind: RuleMeanReversion, ShortWindow: 5, LongWindow: 20},
			mv:   marketView{closes: declining},
			want: SignalBuy,
		},
		{
			name: "mean reversion silent on equal means",
			rule: Rule{Decision: DecisionBuy, Kind: RuleMeanReversion, ShortWindow: 5, LongWindow: 20},
			mv:   marketView{closes: flat},
			want: SignalNone,
		},
		{
			name: "mean reversion silent while holding",
			rule: Rule{Decision: DecisionBuy, Kind: RuleMeanReversion, ShortWindow: 5, LongWindow: 20},
			mv:   marketView{closes: declining, holding: true},
			want: SignalNone,
		},
		{
			name: "mean reversion needs a warm window",
			rule: Rule{Decision: DecisionBuy, Kind: RuleMeanReversion, ShortWindow: 5, LongWindow: 20},
			mv:   marketView{closes: repeat(90, 10)},
			want: SignalNone,
		},
		{
			name: "profit taker sells at threshold",
			rule: Rule{Decision: DecisionSell, Kind: RuleProfitTaker, ProfitThreshold: 0.02},
			mv:   marketView{closes: flat, holding: true, positionChange: 0.02},
			want: SignalSell,
		},
		{
			name: "profit taker holds below threshold",
			rule: Rule{Decision: DecisionSell, Kind: RuleProfitTaker, ProfitThreshold: 0.02},
			mv:   marketView{closes: flat, holding: true, positionChange: 0.019},
			want: SignalNone,
		},
		{
			name: "loss taker sells on drawdown",
			rule: Rule{Decision: DecisionSell, Kind: RuleLossTaker, LossThreshold: 0.02},
			mv:   marketView{closes: flat, holding: true, positionChange: -0.02},
			want: SignalSell,
		},
		{
			name: "loss profit taker sells both sides",
			rule: Rule{Decision: DecisionSell, Kind: RuleLossProfitTaker, ProfitThreshold: 0.02, LossThreshold: 0.02},
			mv:   marketView{closes: flat, holding: true, positionChange: -0.025},
			want: SignalSell,
		},
		{
			name: "takers are inert while flat",
			rule: Rule{Decision: DecisionSell, Kind: RuleProfitTaker, ProfitThreshold: 0.02},
			mv:   marketView{closes: flat, positionChange: 0.5},
			want: SignalNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.evaluate(tt.mv); got != tt.want {
				t.Errorf("evaluate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRuleValidate(t *testing.T) {
	valid := []Rule{
		{Name: "mr", Decision: DecisionBuy, Kind: RuleMeanReversion},
		{Name: "pt", Decision: DecisionSell, Kind: RuleProfitTaker},
		{Name: "th", Decision: DecisionBuy, Kind: RuleThreshold, Change: ChangePriceIncrease},
		{Name: "th2", Decision: DecisionSell, Kind: RuleThreshold, Change: ChangeVolumeDecrease},
	}
	for _, r := range valid {
		if err := r.Validate(); err != nil {
			t.Errorf("%s: unexpected error %v", r.Name, err)
		}
	}

	invalid := []Rule{
		{Name: "mr-sell", Decision: DecisionSell, Kind: RuleMeanReversion},
		{Name: "pt-buy", Decision: DecisionBuy, Kind: RuleProfitTaker},
		{Name: "bad-change", Decision: DecisionBuy, Kind: RuleThreshold, Change: ChangeKind("sideways")},
		{Name: "bad-kind", Decision: DecisionBuy, Kind: RuleKind("astrology")},
		{Name: "bad-decision", Decision: Decision("SHORT"), Kind: RuleThreshold, Change: ChangePriceIncrease},
	}
	for _, r := range invalid {
		err := r.Validate()
		if err == nil {
			t.Errorf("%s: expected error", r.Name)
			continue
		}
		var re *RuleError
		if !errors.As(err, &re) {
			t.Errorf("%s: err = %T, want *RuleError", r.Name, err)
		}
	}
}

func TestTailMean(t *testing.T) {
	if _, ok := tailMean([]float64{1, 2}, 3); ok {
		t.Error("expected not enough values")
	}
	got, ok := tailMean([]float64{1, 2, 3, 4}, 2)
	if !ok || got != 3.5 {
		t.Errorf("tailMean = %v %v, want 3.5 true", got, ok)
	}
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
