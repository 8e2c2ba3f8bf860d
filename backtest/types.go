package backtest

import (
	"encoding/json"
	"io"
)

// Signal is the trade intent a rule produces for one instrument at one bar.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
	SignalNone Signal = "NONE"
)

// Decision marks whether a rule opens positions or closes them.
type Decision string

const (
	DecisionBuy  Decision = "BUY"
	DecisionSell Decision = "SELL"
)

// EndOfBacktestRule tags the synthetic SELL records written when still-open
// positions are liquidated at the final bar.
const EndOfBacktestRule = "End of Backtest"

const timestampLayout = "2006-01-02 15:04:05"

// Position is one open holding. The ledger enforces at most one per symbol.
type Position struct {
	Symbol     string  `json:"symbol"`
	Quantity   int     `json:"quantity"`
	EntryPrice float64 `json:"entry_price"`
	EntryTime  string  `json:"entry_time"`
}

// TradeRecord is an immutable log entry for one executed fill. PnL is set
// only on SELL records.
type TradeRecord struct {
	ID            string   `json:"id"`
	Timestamp     string   `json:"timestamp"`
	Symbol        string   `json:"symbol"`
	Decision      Decision `json:"decision"`
	Price         float64  `json:"price"`
	Quantity      int      `json:"quantity"`
	RuleTriggered string   `json:"rule_triggered"`
	PnL           *float64 `json:"pnl,omitempty"`
}

// Result is the aggregate outcome of one backtest run.
type Result struct {
	TotalTrades     int           `json:"total_trades"`
	WinningTrades   int           `json:"winning_trades"`
	LosingTrades    int           `json:"losing_trades"`
	TotalPnL        float64       `json:"total_pnl"`
	PercentReturn   float64       `json:"percent_return"`
	MaxDrawdown     float64       `json:"max_drawdown"`
	Trades          []TradeRecord `json:"trades"`
	PortfolioValues []float64     `json:"portfolio_values"`
	Timestamps      []string      `json:"timestamps"`
	Diagnostics     []string      `json:"diagnostics,omitempty"`
}

// WriteResultJSON writes the result as indented JSON.
func WriteResultJSON(w io.Writer, res *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
