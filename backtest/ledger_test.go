package backtest

import (
	"reflect"
	"testing"
)

func TestLedgerOpenClose(t *testing.T) {
	l := NewLedger(10_000)

	if !l.Open("AAPL", 50, 100, "2024-01-02 00:00:00") {
		t.Fatal("open rejected")
	}
	if l.Cash() != 5_000 {
		t.Errorf("cash = %v, want 5000", l.Cash())
	}
	if !l.Holding("AAPL") {
		t.Error("expected open position")
	}

	// Second entry for the same symbol is rejected.
	if l.Open("AAPL", 10, 100, "2024-01-03 00:00:00") {
		t.Error("duplicate open accepted")
	}
	if l.Cash() != 5_000 {
		t.Errorf("cash changed on rejected open: %v", l.Cash())
	}

	pos, pnl, ok := l.Close("AAPL", 110)
	if !ok {
		t.Fatal("close failed")
	}
	if pos.Quantity != 50 || pos.EntryPrice != 100 {
		t.Errorf("pos = %+v", pos)
	}
	if pnl != 500 {
		t.Errorf("pnl = %v, want 500", pnl)
	}
	if l.Cash() != 10_500 {
		t.Errorf("cash = %v, want 10500", l.Cash())
	}
	if l.Holding("AAPL") {
		t.Error("position still open after close")
	}
}

func TestLedgerRejectsBadFills(t *testing.T) {
	l := NewLedger(100)

	if l.Open("AAPL", 10, 100, "ts") {
		t.Error("accepted fill beyond available cash")
	}
	if l.Open("AAPL", 0, 100, "ts") {
		t.Error("accepted zero quantity")
	}
	if l.Open("AAPL", -5, 100, "ts") {
		t.Error("accepted negative quantity")
	}
	if l.Open("AAPL", 1, 0, "ts") {
		t.Error("accepted zero price")
	}
	if l.Cash() != 100 {
		t.Errorf("cash = %v, want untouched 100", l.Cash())
	}
	if _, _, ok := l.Close("AAPL", 100); ok {
		t.Error("closed a position that was never opened")
	}
}

func TestLedgerOpenSymbolsSorted(t *testing.T) {
	l := NewLedger(100_000)
	for _, s := range []string{"MSFT", "AAPL", "GOOG"} {
		if !l.Open(s, 1, 10, "ts") {
			t.Fatalf("open %s failed", s)
		}
	}
	got := l.OpenSymbols()
	want := []string{"AAPL", "GOOG", "MSFT"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("symbols = %v, want %v", got, want)
	}
}

func TestLedgerMarkToMarket(t *testing.T) {
	l := NewLedger(1_000)
	l.Open("AAPL", 5, 100, "ts") // cash 500
	l.Open("MSFT", 2, 50, "ts")  // cash 400

	total := l.MarkToMarket(func(sym string) float64 {
		switch sym {
		case "AAPL":
			return 110
		case "MSFT":
			return 40
		}
		return 0
	})
	// 400 cash + 550 + 80
	if total != 1_030 {
		t.Errorf("mark to market = %v, want 1030", total)
	}
}
