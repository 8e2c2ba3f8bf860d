package backtest

// routeSignal evaluates the candidate rules against the current market view
// and returns the first one that triggers. Candidates must already be
// filtered by position state (BUY rules while flat, SELL rules while
// holding). Parametric rules are checked ahead of threshold rules; within
// each group, configuration order decides. First match wins: no further
// rules run once one triggers.
func routeSignal(candidates []Rule, mv marketView) (Rule, bool) {
	if len(mv.closes) == 0 {
		return Rule{}, false
	}
	for _, r := range candidates {
		if !r.Parametric() {
			continue
		}
		if triggers(r, mv) {
			return r, true
		}
	}
	for _, r := range candidates {
		if r.Parametric() {
			continue
		}
		if triggers(r, mv) {
			return r, true
		}
	}
	return Rule{}, false
}

func triggers(r Rule, mv marketView) bool {
	switch r.evaluate(mv) {
	case SignalBuy:
		return r.Decision == DecisionBuy
	case SignalSell:
		return r.Decision == DecisionSell
	default:
		return false
	}
}
