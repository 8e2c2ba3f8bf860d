package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"systrader/backtest"
	"systrader/config"
	"systrader/fetcher"
)

// runScan evaluates the configured entry rules on the latest bar of each
// symbol. Symbols come from the backtest config when it exists, otherwise
// from the service watchlist.
func runScan(f *fetcher.HistoryFetcher, svcCfg config.Config, btConfigPath, outPath string, jsonOut bool) error {
	cfg, err := loadScanConfig(svcCfg, btConfigPath)
	if err != nil {
		return err
	}

	engine := backtest.NewEngine(fetcher.MarketData{Fetcher: f})
	results, err := engine.ScanLatest(context.Background(), cfg)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if outPath != "" {
		out, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer out.Close()
		w = out
	}

	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	fmt.Fprintf(w, "%-10s %-20s %-12s %-8s %s\n", "SYMBOL", "LAST_TIME", "LAST_CLOSE", "SIGNAL", "RULE")
	for _, r := range results {
		if len(r.Errors) > 0 {
			fmt.Fprintf(w, "%-10s %-20s %-12s %-8s %s\n", r.Symbol, "-", "-", "ERROR", r.Errors[0])
			continue
		}
		rule := r.Rule
		if rule == "" {
			rule = "-"
		}
		fmt.Fprintf(w, "%-10s %-20s %-12.2f %-8s %s\n", r.Symbol, r.LastTime, r.LastClose, r.Signal, rule)
	}
	return nil
}

// loadScanConfig prefers the backtest run definition, shifted to a recent
// window so the latest bar is covered. A missing file falls back to the
// watchlist with the default momentum and mean-reversion entries.
func loadScanConfig(svcCfg config.Config, btConfigPath string) (backtest.RunConfig, error) {
	if _, err := os.Stat(btConfigPath); err == nil {
		cfg, err := backtest.LoadRunConfig(btConfigPath)
		if err != nil {
			return backtest.RunConfig{}, err
		}
		cfg.End = time.Now().UTC()
		cfg.Start = cfg.End.AddDate(0, -6, 0)
		return cfg, nil
	}

	cfg := backtest.DefaultRunConfig()
	cfg.Symbols = svcCfg.Watchlist
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
	return cfg, nil
}
