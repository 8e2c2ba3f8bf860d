package model

import "time"

// Bar is one OHLCV sample for one instrument at one timestamp.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Change returns the close-over-open move of the bar.
func (b Bar) Change() float64 {
	return b.Close - b.Open
}

// ChangePercent returns the close-over-open move as a percentage.
func (b Bar) ChangePercent() float64 {
	if b.Open == 0 {
		return 0
	}
	return (b.Close - b.Open) / b.Open * 100
}

// Series is an ordered sequence of bars for one instrument, ascending by time.
type Series []Bar

// Closes extracts the close prices in order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts the volumes in order.
func (s Series) Volumes() []int64 {
	out := make([]int64, len(s))
	for i, b := range s {
		out[i] = b.Volume
	}
	return out
}

// Highs extracts the high prices in order.
func (s Series) Highs() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.High
	}
	return out
}

// Lows extracts the low prices in order.
func (s Series) Lows() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Low
	}
	return out
}
