// Package trading answers whether the US equity market is in its regular
// session.
package trading

import "time"

var newYork = mustLoadNY()

func mustLoadNY() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// DST-unaware fallback if the zone database is missing.
		return time.FixedZone("EST", -5*3600)
	}
	return loc
}

// TimeRange is a daily session window in exchange-local time.
type TimeRange struct {
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
}

// Regular NYSE/Nasdaq session, 09:30-16:00 ET.
var regularSession = []TimeRange{
	{9, 30, 16, 0},
}

// IsMarketOpen reports whether the regular session is open right now.
func IsMarketOpen() bool {
	return IsMarketOpenAt(time.Now())
}

// IsMarketOpenAt reports whether the regular session is open at t.
func IsMarketOpenAt(t time.Time) bool {
	t = t.In(newYork)

	weekday := t.Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		return false
	}

	return isInTimeRanges(t, regularSession)
}

func isInTimeRanges(t time.Time, ranges []TimeRange) bool {
	minutes := t.Hour()*60 + t.Minute()
	for _, r := range ranges {
		start := r.StartHour*60 + r.StartMinute
		end := r.EndHour*60 + r.EndMinute
		if minutes >= start && minutes < end {
			return true
		}
	}
	return false
}
