// Package fetcher retrieves historical OHLCV bars from the upstream market
// data source.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"systrader/model"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

var (
	// ErrBadInterval marks a request for an interval the source cannot serve.
	ErrBadInterval = errors.New("unsupported interval")
	// ErrNoData marks a symbol the source returned no bars for.
	ErrNoData = errors.New("no data for symbol")
)

// HistoryFetcher pulls daily and intraday candle history over HTTP.
type HistoryFetcher struct {
	client  *http.Client
	baseURL string
	cache   *historyCache
}

// Option configures a HistoryFetcher.
type Option func(*HistoryFetcher)

// WithBaseURL points the fetcher at an alternate data endpoint, used by the
// API tests to stand in a local server.
func WithBaseURL(base string) Option {
	return func(f *HistoryFetcher) {
		if base != "" {
			f.baseURL = base
		}
	}
}

// WithTimeout overrides the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *HistoryFetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithCacheTTL sets how long fetched series stay cached. Zero disables caching.
func WithCacheTTL(d time.Duration) Option {
	return func(f *HistoryFetcher) {
		f.cache = newHistoryCache(d)
	}
}

// NewHistoryFetcher creates a fetcher with a 15s timeout and caching off.
func NewHistoryFetcher(opts ...Option) *HistoryFetcher {
	f := &HistoryFetcher{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// chartResponse mirrors the upstream chart payload. Quote arrays may carry
// nulls on halted or partial bars, hence the pointer elements.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// History fetches bars for symbol covering [start, end] at the given interval,
// sorted ascending by time. An empty upstream payload maps to ErrNoData.
func (f *HistoryFetcher) History(ctx context.Context, symbol string, start, end time.Time, interval string) (model.Series, error) {
	if !ValidInterval(interval) {
		return nil, fmt.Errorf("%w: %s", ErrBadInterval, interval)
	}
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrNoData)
	}

	key := cacheKey(symbol, start, end, interval)
	if f.cache != nil {
		if bars, ok := f.cache.get(key); ok {
			return bars, nil
		}
	}

	q := url.Values{}
	q.Set("period1", fmt.Sprintf("%d", start.Unix()))
	q.Set("period2", fmt.Sprintf("%d", end.Unix()))
	q.Set("interval", interval)
	q.Set("events", "history")
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", f.baseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: upstream status %d", symbol, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}

	bars, err := parseChart(body, symbol)
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		f.cache.put(key, bars)
	}
	return bars, nil
}

func parseChart(body []byte, symbol string) (model.Series, error) {
	var cr chartResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("parse %s: %w", symbol, err)
	}
	if cr.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s (%s)", ErrNoData, symbol, cr.Chart.Error.Code)
	}
	if len(cr.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	res := cr.Chart.Result[0]
	if len(res.Timestamp) == 0 || len(res.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}
	quote := res.Indicators.Quote[0]

	bars := make(model.Series, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		b := model.Bar{Time: time.Unix(ts, 0).UTC(), Close: *quote.Close[i]}
		if i < len(quote.Open) && quote.Open[i] != nil {
			b.Open = *quote.Open[i]
		}
		if i < len(quote.High) && quote.High[i] != nil {
			b.High = *quote.High[i]
		}
		if i < len(quote.Low) && quote.Low[i] != nil {
			b.Low = *quote.Low[i]
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			b.Volume = *quote.Volume[i]
		}
		bars = append(bars, b)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

func cacheKey(symbol string, start, end time.Time, interval string) string {
	return fmt.Sprintf("%s|%d|%d|%s", symbol, start.Unix(), end.Unix(), interval)
}
