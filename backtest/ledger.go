package backtest

import "sort"

// Ledger tracks cash and at most one open position per symbol. It is owned
// by a single engine run and mutated only by the fill step, which keeps the
// cash >= 0 invariant: an entry that cannot be paid for is rejected outright.
type Ledger struct {
	cash      float64
	positions map[string]Position
}

// NewLedger creates a ledger holding the initial capital and no positions.
func NewLedger(cash float64) *Ledger {
	return &Ledger{
		cash:      cash,
		positions: make(map[string]Position),
	}
}

// Cash returns the available cash.
func (l *Ledger) Cash() float64 {
	return l.cash
}

// Holding reports whether a position is open for the symbol.
func (l *Ledger) Holding(symbol string) bool {
	_, ok := l.positions[symbol]
	return ok
}

// Position returns the open position for the symbol, if any.
func (l *Ledger) Position(symbol string) (Position, bool) {
	p, ok := l.positions[symbol]
	return p, ok
}

// Open debits cash and records a position. It reports false without mutating
// anything when cash is insufficient, the quantity is not positive, or a
// position for the symbol already exists.
func (l *Ledger) Open(symbol string, quantity int, price float64, timestamp string) bool {
	if quantity <= 0 || price <= 0 {
		return false
	}
	if _, ok := l.positions[symbol]; ok {
		return false
	}
	cost := price * float64(quantity)
	if l.cash < cost {
		return false
	}
	l.cash -= cost
	l.positions[symbol] = Position{
		Symbol:     symbol,
		Quantity:   quantity,
		EntryPrice: price,
		EntryTime:  timestamp,
	}
	return true
}

// Close credits cash with the exit proceeds, removes the position, and
// returns it alongside the realized PnL.
func (l *Ledger) Close(symbol string, price float64) (Position, float64, bool) {
	pos, ok := l.positions[symbol]
	if !ok {
		return Position{}, 0, false
	}
	l.cash += price * float64(pos.Quantity)
	delete(l.positions, symbol)
	pnl := (price - pos.EntryPrice) * float64(pos.Quantity)
	return pos, pnl, true
}

// OpenSymbols returns the symbols with open positions in sorted order, so
// callers iterating positions stay deterministic across runs.
func (l *Ledger) OpenSymbols() []string {
	out := make([]string, 0, len(l.positions))
	for s := range l.positions {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// MarkToMarket values the portfolio as cash plus every open position at the
// price the callback reports for its symbol.
func (l *Ledger) MarkToMarket(price func(symbol string) float64) float64 {
	total := l.cash
	for _, s := range l.OpenSymbols() {
		pos := l.positions[s]
		total += price(s) * float64(pos.Quantity)
	}
	return total
}
