package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	backtestRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "systrader_backtest_runs_total",
			Help: "Total number of backtest runs served",
		},
		[]string{"status"},
	)

	backtestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "systrader_backtest_duration_seconds",
			Help:    "Backtest run duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
	)

	historyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "systrader_history_requests_total",
			Help: "Total number of history requests served",
		},
		[]string{"status"},
	)
)
