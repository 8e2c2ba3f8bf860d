package api

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"systrader/backtest"
	"systrader/fetcher"
	"systrader/indicators"
	"systrader/trading"
)

const dateLayout = "2006-01-02"

// Handler serves the backtest, history and scan endpoints.
type Handler struct {
	fetcher   *fetcher.HistoryFetcher
	engine    *backtest.Engine
	watchlist []string
}

// NewHandler wires the handler with its collaborators.
func NewHandler(f *fetcher.HistoryFetcher, watchlist []string) *Handler {
	return &Handler{
		fetcher:   f,
		engine:    backtest.NewEngine(fetcher.MarketData{Fetcher: f}),
		watchlist: watchlist,
	}
}

// ---- Backtest ----

type ruleParams struct {
	ShortWindow     int     `json:"shortWindow"`
	LongWindow      int     `json:"longWindow"`
	ProfitThreshold float64 `json:"profitThreshold"`
	LossThreshold   float64 `json:"lossThreshold"`
}

type tradingRuleConfig struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Kind          string      `json:"kind"`
	ChangeType    string      `json:"changeType"`
	ChangePercent float64     `json:"changePercent"`
	Decision      string      `json:"decision" binding:"required,oneof=BUY SELL"`
	Quantity      int         `json:"quantity"`
	Enabled       *bool       `json:"enabled"`
	Params        *ruleParams `json:"params"`
}

func (rc tradingRuleConfig) toRule() backtest.Rule {
	enabled := true
	if rc.Enabled != nil {
		enabled = *rc.Enabled
	}
	r := backtest.Rule{
		ID:            rc.ID,
		Name:          rc.Name,
		Decision:      backtest.Decision(rc.Decision),
		Enabled:       enabled,
		Kind:          backtest.RuleKind(rc.Kind),
		Change:        backtest.ChangeKind(rc.ChangeType),
		ChangePercent: rc.ChangePercent,
		Quantity:      rc.Quantity,
	}
	if r.Kind == "" {
		r.Kind = backtest.RuleThreshold
	}
	if rc.Params != nil {
		r.ShortWindow = rc.Params.ShortWindow
		r.LongWindow = rc.Params.LongWindow
		r.ProfitThreshold = rc.Params.ProfitThreshold
		r.LossThreshold = rc.Params.LossThreshold
	}
	return r
}

type backtestRequest struct {
	Stocks           []string            `json:"stocks" binding:"required"`
	StartDate        string              `json:"startDate" binding:"required"`
	EndDate          string              `json:"endDate" binding:"required"`
	Interval         string              `json:"interval"`
	InitialCapital   float64             `json:"initialCapital" binding:"required,gt=0"`
	QuantityPerTrade int                 `json:"quantityPerTrade"`
	Rules            []tradingRuleConfig `json:"rules" binding:"required"`
}

type tradeDTO struct {
	ID            string   `json:"id"`
	Timestamp     string   `json:"timestamp"`
	Stock         string   `json:"stock"`
	Decision      string   `json:"decision"`
	Price         float64  `json:"price"`
	Quantity      int      `json:"quantity"`
	RuleTriggered string   `json:"ruleTriggered"`
	PnL           *float64 `json:"pnl,omitempty"`
}

type backtestResponse struct {
	TotalTrades    int        `json:"totalTrades"`
	WinningTrades  int        `json:"winningTrades"`
	LosingTrades   int        `json:"losingTrades"`
	TotalPnL       float64    `json:"totalPnL"`
	PercentReturn  float64    `json:"percentReturn"`
	MaxDrawdown    float64    `json:"maxDrawdown"`
	Trades         []tradeDTO `json:"trades"`
	PortfolioValue []float64  `json:"portfolioValue"`
	Timestamps     []string   `json:"timestamps"`
	Diagnostics    []string   `json:"diagnostics,omitempty"`
}

// RunBacktest executes a backtest described by the request body.
func (h *Handler) RunBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		backtestRunsTotal.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "error": err.Error()})
		return
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		backtestRunsTotal.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_DATE", "error": "startDate must be YYYY-MM-DD"})
		return
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		backtestRunsTotal.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_DATE", "error": "endDate must be YYYY-MM-DD"})
		return
	}

	cfg := backtest.DefaultRunConfig()
	cfg.Symbols = req.Stocks
	cfg.Start = start
	cfg.End = end
	if req.Interval != "" {
		cfg.Interval = req.Interval
	}
	cfg.InitialCapital = req.InitialCapital
	if req.QuantityPerTrade > 0 {
		cfg.QuantityPerTrade = req.QuantityPerTrade
	}
	for _, rc := range req.Rules {
		cfg.Rules = append(cfg.Rules, rc.toRule())
	}

	started := time.Now()
	res, err := h.engine.Run(c.Request.Context(), cfg)
	backtestDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		status, code := classifyRunError(err)
		backtestRunsTotal.WithLabelValues(code).Inc()
		c.JSON(status, gin.H{"code": code, "error": err.Error()})
		return
	}

	backtestRunsTotal.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, toBacktestResponse(res))
}

func classifyRunError(err error) (int, string) {
	switch {
	case errors.Is(err, backtest.ErrNoSymbols):
		return http.StatusBadRequest, "NO_SYMBOLS"
	case errors.Is(err, backtest.ErrNoRules):
		return http.StatusBadRequest, "NO_RULES"
	case errors.Is(err, fetcher.ErrBadInterval):
		return http.StatusBadRequest, "BAD_INTERVAL"
	case isRuleError(err):
		return http.StatusBadRequest, "BAD_RULE"
	default:
		return http.StatusBadGateway, "DATA_SOURCE_ERROR"
	}
}

// isRuleError distinguishes rule validation failures, which happen before
// any data is fetched, from upstream faults.
func isRuleError(err error) bool {
	var re *backtest.RuleError
	return errors.As(err, &re)
}

func toBacktestResponse(res *backtest.Result) backtestResponse {
	trades := make([]tradeDTO, 0, len(res.Trades))
	for _, t := range res.Trades {
		trades = append(trades, tradeDTO{
			ID:            t.ID,
			Timestamp:     t.Timestamp,
			Stock:         t.Symbol,
			Decision:      string(t.Decision),
			Price:         t.Price,
			Quantity:      t.Quantity,
			RuleTriggered: t.RuleTriggered,
			PnL:           t.PnL,
		})
	}
	return backtestResponse{
		TotalTrades:    res.TotalTrades,
		WinningTrades:  res.WinningTrades,
		LosingTrades:   res.LosingTrades,
		TotalPnL:       res.TotalPnL,
		PercentReturn:  res.PercentReturn,
		MaxDrawdown:    res.MaxDrawdown,
		Trades:         trades,
		PortfolioValue: res.PortfolioValues,
		Timestamps:     res.Timestamps,
		Diagnostics:    res.Diagnostics,
	}
}

// ---- History ----

type historyRow struct {
	Time       string             `json:"time"`
	Open       float64            `json:"open"`
	High       float64            `json:"high"`
	Low        float64            `json:"low"`
	Close      float64            `json:"close"`
	Volume     int64              `json:"volume"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

// GetHistory returns OHLCV bars for a ticker, optionally decorated with
// indicator columns selected by the `indicators` query parameter.
func (h *Handler) GetHistory(c *gin.Context) {
	ticker := c.Query("ticker")
	if ticker == "" {
		historyRequestsTotal.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"code": "MISSING_TICKER", "error": "ticker is required"})
		return
	}

	interval := c.DefaultQuery("interval", "1d")
	if !fetcher.ValidInterval(interval) {
		historyRequestsTotal.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_INTERVAL", "allowed": intervalList()})
		return
	}

	end := time.Now().UTC()
	start := end.AddDate(-1, 0, 0)
	if s := c.Query("start"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			historyRequestsTotal.WithLabelValues("bad_request").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_DATE", "error": "start must be YYYY-MM-DD"})
			return
		}
		start = t
	}
	if s := c.Query("end"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			historyRequestsTotal.WithLabelValues("bad_request").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_DATE", "error": "end must be YYYY-MM-DD"})
			return
		}
		end = t
	}

	bars, err := h.fetcher.History(c.Request.Context(), ticker, start, end, interval)
	if err != nil {
		if errors.Is(err, fetcher.ErrNoData) {
			historyRequestsTotal.WithLabelValues("not_found").Inc()
			c.JSON(http.StatusNotFound, gin.H{"code": "TICKER_NOT_FOUND", "ticker": ticker})
			return
		}
		historyRequestsTotal.WithLabelValues("upstream_error").Inc()
		c.JSON(http.StatusBadGateway, gin.H{"code": "DATA_SOURCE_ERROR", "ticker": ticker, "error": err.Error()})
		return
	}

	var cols map[string][]float64
	if want := c.Query("indicators"); want != "" {
		names := splitCSV(want)
		params := indicatorParams(c)
		if need := indicators.MaxLookback(names, params); len(bars) < need {
			historyRequestsTotal.WithLabelValues("insufficient_data").Inc()
			c.JSON(http.StatusUnprocessableEntity, gin.H{"code": "INSUFFICIENT_DATA", "need_bars": need})
			return
		}
		cols = indicators.Apply(bars, names, params)
	}

	rows := make([]historyRow, 0, len(bars))
	for i, b := range bars {
		row := historyRow{
			Time:   b.Time.Format(dateLayout),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
		if len(cols) > 0 {
			row.Indicators = make(map[string]float64, len(cols))
			for name, vals := range cols {
				if i < len(vals) {
					row.Indicators[name] = vals[i]
				}
			}
		}
		rows = append(rows, row)
	}

	historyRequestsTotal.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, gin.H{"ticker": ticker, "interval": interval, "bars": rows})
}

func indicatorParams(c *gin.Context) indicators.Params {
	return indicators.Params{
		SMAWindow:  intQuery(c, "sma_window"),
		SMAWindow2: intQuery(c, "sma_window2"),
		EMAWindow:  intQuery(c, "ema_window"),
		RSILen:     intQuery(c, "rsi_len"),
		ATRLen:     intQuery(c, "atr_len"),
		BBWindow:   intQuery(c, "bb_window"),
		BBStd:      floatQuery(c, "bb_std"),
		MACDFast:   intQuery(c, "macd_fast"),
		MACDSlow:   intQuery(c, "macd_slow"),
		MACDSignal: intQuery(c, "macd_signal"),
	}
}

func intQuery(c *gin.Context, key string) int {
	v, _ := strconv.Atoi(c.Query(key))
	return v
}

func floatQuery(c *gin.Context, key string) float64 {
	v, _ := strconv.ParseFloat(c.Query(key), 64)
	return v
}

// ---- Scan ----

// Scan evaluates the request's rules (or a default momentum entry) on the
// latest bar of the requested symbols, defaulting to the watchlist.
func (h *Handler) Scan(c *gin.Context) {
	symbols := splitCSV(c.Query("symbols"))
	if len(symbols) == 0 {
		symbols = h.watchlist
	}

	cfg := backtest.DefaultRunConfig()
	cfg.Symbols = symbols
	cfg.End = time.Now().UTC()
	cfg.Start = cfg.End.AddDate(0, -6, 0)
	cfg.Rules = []backtest.Rule{
		{
			ID:            "scan-momentum",
			Name:          "Price Momentum",
			Decision:      backtest.DecisionBuy,
			Enabled:       true,
			Kind:          backtest.RuleThreshold,
			Change:        backtest.ChangePriceIncrease,
			ChangePercent: 2,
		},
		{
			ID:          "scan-mean-reversion",
			Name:        "Mean Reversion",
			Decision:    backtest.DecisionBuy,
			Enabled:     true,
			Kind:        backtest.RuleMeanReversion,
			ShortWindow: 5,
			LongWindow:  20,
		},
	}

	results, err := h.engine.ScanLatest(c.Request.Context(), cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_SCAN", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(results), "results": results})
}

// ---- Meta ----

// GetLimits returns the supported intervals and their max lookback in days.
func (h *Handler) GetLimits(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"interval_limits_days": fetcher.IntervalLimits})
}

// GetStatus reports the market session and cache state.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"market_open":   trading.IsMarketOpen(),
		"cached_series": h.fetcher.CacheLen(),
		"watchlist":     h.watchlist,
	})
}

func intervalList() []string {
	out := make([]string, 0, len(fetcher.IntervalLimits))
	for k := range fetcher.IntervalLimits {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
