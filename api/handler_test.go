package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"systrader/fetcher"
)

// upstreamChart serves a fixed four-bar series for every symbol except NOPE.
func upstreamChart(t *testing.T) *httptest.Server {
	t.Helper()
	day := int64(86400)
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).Unix()

	body := fmt.Sprintf(`{"chart":{"result":[{"timestamp":[%d,%d,%d,%d],"indicators":{"quote":[{"open":[100,100,102,104],"high":[101,101,103,105],"low":[99,99,101,103],"close":[100,100,102,104],"volume":[1000,1000,1000,1000]}]}}],"error":null}}`,
		base, base+day, base+2*day, base+3*day)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/NOPE") {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	}))
}

func newTestServer(t *testing.T) (*Server, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	upstream := upstreamChart(t)
	f := fetcher.NewHistoryFetcher(fetcher.WithBaseURL(upstream.URL))
	s := NewServer(f, 0, []string{"AAPL"})
	return s, upstream.Close
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func TestRunBacktestEndpoint(t *testing.T) {
	s, closeUpstream := newTestServer(t)
	defer closeUpstream()

	body := `{
		"stocks": ["AAPL"],
		"startDate": "2024-01-02",
		"endDate": "2024-01-10",
		"initialCapital": 100000,
		"rules": [
			{"name": "Momentum", "kind": "threshold", "changeType": "price_increase", "changePercent": 1, "decision": "BUY"},
			{"name": "Take Profit", "kind": "threshold", "changeType": "price_increase", "changePercent": 1, "decision": "SELL"}
		]
	}`

	w := do(s, http.MethodPost, "/api/backtest", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var res backtestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.TotalTrades != 2 {
		t.Fatalf("trades = %d, want 2: %+v", res.TotalTrades, res.Trades)
	}
	if res.Trades[0].Decision != "BUY" || res.Trades[0].Price != 102 {
		t.Errorf("entry = %+v", res.Trades[0])
	}
	if res.TotalPnL != 200 {
		t.Errorf("pnl = %v, want 200", res.TotalPnL)
	}
	if len(res.PortfolioValue) == 0 || len(res.Timestamps) != len(res.PortfolioValue) {
		t.Errorf("curve = %d values, %d timestamps", len(res.PortfolioValue), len(res.Timestamps))
	}
}

func TestRunBacktestRejects(t *testing.T) {
	s, closeUpstream := newTestServer(t)
	defer closeUpstream()

	tests := []struct {
		name     string
		body     string
		status   int
		wantCode string
	}{
		{"empty body", ``, http.StatusBadRequest, "BAD_REQUEST"},
		{"missing rules", `{"stocks":["AAPL"],"startDate":"2024-01-02","endDate":"2024-01-10","initialCapital":100000}`, http.StatusBadRequest, "BAD_REQUEST"},
		{
			"bad date",
			`{"stocks":["AAPL"],"startDate":"01/02/2024","endDate":"2024-01-10","initialCapital":100000,"rules":[{"name":"m","decision":"BUY","changeType":"price_increase","changePercent":1}]}`,
			http.StatusBadRequest, "BAD_DATE",
		},
		{
			"all rules disabled",
			`{"stocks":["AAPL"],"startDate":"2024-01-02","endDate":"2024-01-10","initialCapital":100000,"rules":[{"name":"m","decision":"BUY","changeType":"price_increase","changePercent":1,"enabled":false}]}`,
			http.StatusBadRequest, "NO_RULES",
		},
		{
			"bad rule kind",
			`{"stocks":["AAPL"],"startDate":"2024-01-02","endDate":"2024-01-10","initialCapital":100000,"rules":[{"name":"m","decision":"BUY","kind":"astrology"}]}`,
			http.StatusBadRequest, "BAD_RULE",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(s, http.MethodPost, "/api/backtest", tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
			var res map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if res["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", res["code"], tt.wantCode)
			}
		})
	}
}

func TestGetHistoryEndpoint(t *testing.T) {
	s, closeUpstream := newTestServer(t)
	defer closeUpstream()

	w := do(s, http.MethodGet, "/api/history?ticker=AAPL", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var res struct {
		Ticker string       `json:"ticker"`
		Bars   []historyRow `json:"bars"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Ticker != "AAPL" || len(res.Bars) != 4 {
		t.Errorf("ticker = %q, bars = %d", res.Ticker, len(res.Bars))
	}
	if res.Bars[3].Close != 104 {
		t.Errorf("last close = %v", res.Bars[3].Close)
	}

	if w := do(s, http.MethodGet, "/api/history", ""); w.Code != http.StatusBadRequest {
		t.Errorf("missing ticker: status = %d", w.Code)
	}
	if w := do(s, http.MethodGet, "/api/history?ticker=AAPL&interval=2d", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad interval: status = %d", w.Code)
	}
	if w := do(s, http.MethodGet, "/api/history?ticker=NOPE", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown ticker: status = %d", w.Code)
	}
}

func TestGetHistoryIndicators(t *testing.T) {
	s, closeUpstream := newTestServer(t)
	defer closeUpstream()

	w := do(s, http.MethodGet, "/api/history?ticker=AAPL&indicators=sma&sma_window=2&sma_window2=3", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var res struct {
		Bars []historyRow `json:"bars"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	last := res.Bars[len(res.Bars)-1]
	if _, ok := last.Indicators["SMA_2"]; !ok {
		t.Errorf("missing SMA_2 column: %v", last.Indicators)
	}

	// Default windows need more bars than the upstream serves.
	w = do(s, http.MethodGet, "/api/history?ticker=AAPL&indicators=sma", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422: %s", w.Code, w.Body.String())
	}
}

func TestScanEndpoint(t *testing.T) {
	s, closeUpstream := newTestServer(t)
	defer closeUpstream()

	w := do(s, http.MethodGet, "/api/scan", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var res struct {
		Count   int `json:"count"`
		Results []struct {
			Symbol string `json:"symbol"`
			Signal string `json:"signal"`
		} `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Count != 1 || res.Results[0].Symbol != "AAPL" {
		t.Errorf("res = %+v", res)
	}
}

func TestMetaAndHealth(t *testing.T) {
	s, closeUpstream := newTestServer(t)
	defer closeUpstream()

	w := do(s, http.MethodGet, "/api/meta/limits", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "interval_limits_days") {
		t.Errorf("limits: status = %d, body %s", w.Code, w.Body.String())
	}

	if w := do(s, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Errorf("health: status = %d", w.Code)
	}

	w = do(s, http.MethodGet, "/api/status", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "watchlist") {
		t.Errorf("status: code = %d, body %s", w.Code, w.Body.String())
	}
}
