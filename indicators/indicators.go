// Package indicators wraps go-talib with the indicator set exposed by the
// history endpoint: SMA, EMA, RSI, ATR, Bollinger bands and MACD.
package indicators

import (
	"fmt"
	"strings"

	talib "github.com/markcheno/go-talib"

	"systrader/model"
)

// Params carries the tunable window lengths for every supported indicator.
// Zero values fall back to the conventional defaults.
type Params struct {
	SMAWindow  int     `json:"sma_window" yaml:"sma_window"`
	SMAWindow2 int     `json:"sma_window2" yaml:"sma_window2"`
	EMAWindow  int     `json:"ema_window" yaml:"ema_window"`
	RSILen     int     `json:"rsi_len" yaml:"rsi_len"`
	ATRLen     int     `json:"atr_len" yaml:"atr_len"`
	BBWindow   int     `json:"bb_window" yaml:"bb_window"`
	BBStd      float64 `json:"bb_std" yaml:"bb_std"`
	MACDFast   int     `json:"macd_fast" yaml:"macd_fast"`
	MACDSlow   int     `json:"macd_slow" yaml:"macd_slow"`
	MACDSignal int     `json:"macd_signal" yaml:"macd_signal"`
}

func (p Params) withDefaults() Params {
	if p.SMAWindow <= 0 {
		p.SMAWindow = 50
	}
	if p.SMAWindow2 <= 0 {
		p.SMAWindow2 = 200
	}
	if p.EMAWindow <= 0 {
		p.EMAWindow = 20
	}
	if p.RSILen <= 0 {
		p.RSILen = 14
	}
	if p.ATRLen <= 0 {
		p.ATRLen = 14
	}
	if p.BBWindow <= 0 {
		p.BBWindow = 20
	}
	if p.BBStd <= 0 {
		p.BBStd = 2.0
	}
	if p.MACDFast <= 0 {
		p.MACDFast = 12
	}
	if p.MACDSlow <= 0 {
		p.MACDSlow = 26
	}
	if p.MACDSignal <= 0 {
		p.MACDSignal = 9
	}
	return p
}

// SMA returns the simple moving average of values over n periods.
func SMA(values []float64, n int) []float64 {
	if n <= 0 || len(values) < n {
		return nil
	}
	return talib.Sma(values, n)
}

// EMA returns the exponential moving average of values over n periods.
func EMA(values []float64, n int) []float64 {
	if n <= 1 || len(values) < n {
		return nil
	}
	return talib.Ema(values, n)
}

// RSI returns the relative strength index of close prices over n periods.
func RSI(close []float64, n int) []float64 {
	if n <= 1 || len(close) <= n {
		return nil
	}
	return talib.Rsi(close, n)
}

// ATR returns the average true range over n periods.
func ATR(high, low, close []float64, n int) []float64 {
	if n <= 0 || len(close) <= n || len(high) != len(close) || len(low) != len(close) {
		return nil
	}
	return talib.Atr(high, low, close, n)
}

// Bollinger returns the middle, upper and lower bands for close prices.
func Bollinger(close []float64, n int, k float64) (mid, up, low []float64) {
	if n <= 1 || len(close) < n {
		return nil, nil, nil
	}
	up, mid, low = talib.BBands(close, n, k, k, talib.SMA)
	return mid, up, low
}

// MACD returns the MACD line, signal line and histogram for close prices.
func MACD(close []float64, fast, slow, signal int) (line, sig, hist []float64) {
	if fast <= 1 || slow <= fast || signal <= 0 || len(close) < slow+signal {
		return nil, nil, nil
	}
	return talib.Macd(close, fast, slow, signal)
}

// MaxLookback reports the minimum number of bars the requested indicator set
// needs to produce at least one well-formed value.
func MaxLookback(names []string, p Params) int {
	p = p.withDefaults()
	need := 1
	for _, raw := range names {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "sma":
			need = max(need, p.SMAWindow, p.SMAWindow2)
		case "ema":
			need = max(need, p.EMAWindow)
		case "rsi":
			need = max(need, p.RSILen)
		case "atr":
			need = max(need, p.ATRLen)
		case "bollinger":
			need = max(need, p.BBWindow)
		case "macd":
			need = max(need, p.MACDSlow, p.MACDFast, p.MACDSignal)
		}
	}
	return need
}

// Apply computes the requested indicators over the series and returns them as
// named columns aligned with the input bars. Unknown names are ignored.
func Apply(bars model.Series, names []string, p Params) map[string][]float64 {
	p = p.withDefaults()
	close := bars.Closes()
	high := bars.Highs()
	low := bars.Lows()

	cols := make(map[string][]float64)
	for _, raw := range names {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "sma":
			if v := SMA(close, p.SMAWindow); v != nil {
				cols[fmt.Sprintf("SMA_%d", p.SMAWindow)] = v
			}
			if v := SMA(close, p.SMAWindow2); v != nil {
				cols[fmt.Sprintf("SMA_%d", p.SMAWindow2)] = v
			}
		case "ema":
			if v := EMA(close, p.EMAWindow); v != nil {
				cols[fmt.Sprintf("EMA_%d", p.EMAWindow)] = v
			}
		case "rsi":
			if v := RSI(close, p.RSILen); v != nil {
				cols[fmt.Sprintf("RSI_%d", p.RSILen)] = v
			}
		case "atr":
			if v := ATR(high, low, close, p.ATRLen); v != nil {
				cols[fmt.Sprintf("ATR_%d", p.ATRLen)] = v
			}
		case "bollinger":
			mid, up, lowBand := Bollinger(close, p.BBWindow, p.BBStd)
			if mid != nil {
				cols[fmt.Sprintf("BB_MID_%d", p.BBWindow)] = mid
				cols[fmt.Sprintf("BB_UP_%d_%g", p.BBWindow, p.BBStd)] = up
				cols[fmt.Sprintf("BB_LOW_%d_%g", p.BBWindow, p.BBStd)] = lowBand
			}
		case "macd":
			line, sig, hist := MACD(close, p.MACDFast, p.MACDSlow, p.MACDSignal)
			if line != nil {
				cols["MACD"] = line
				cols["MACD_SIGNAL"] = sig
				cols["MACD_HIST"] = hist
			}
		}
	}
	return cols
}
