package fetcher

// IntervalLimits maps every supported bar interval to the practical maximum
// lookback window, in days, the upstream data source will serve for it.
var IntervalLimits = map[string]int{
	"1m":  7,
	"2m":  60,
	"5m":  60,
	"15m": 60,
	"30m": 60,
	"60m": 730,
	"90m": 730,
	"1h":  730,
	"1d":  36500,
	"5d":  36500,
	"1wk": 36500,
	"1mo": 36500,
	"3mo": 36500,
}

// ValidInterval reports whether the interval is one the data source supports.
func ValidInterval(interval string) bool {
	_, ok := IntervalLimits[interval]
	return ok
}
