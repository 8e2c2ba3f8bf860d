package fetcher

import (
	"context"
	"errors"
	"time"

	"systrader/model"
)

// MarketData adapts a HistoryFetcher to the engine's data-provider contract:
// a symbol with no data comes back as an empty series with a nil error, so
// the engine degrades instead of aborting, while genuine retrieval faults
// still propagate.
type MarketData struct {
	Fetcher *HistoryFetcher
}

// History implements the engine's DataProvider.
func (m MarketData) History(ctx context.Context, symbol string, start, end time.Time, interval string) (model.Series, error) {
	bars, err := m.Fetcher.History(ctx, symbol, start, end, interval)
	if errors.Is(err, ErrNoData) {
		return nil, nil
	}
	return bars, err
}
