package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"systrader/backtest"
	"systrader/fetcher"
)

func runBacktest(f *fetcher.HistoryFetcher, configPath, outPath, chartPath string) error {
	cfg, err := backtest.LoadRunConfig(configPath)
	if err != nil {
		return err
	}

	engine := backtest.NewEngine(fetcher.MarketData{Fetcher: f})
	res, err := engine.Run(context.Background(), cfg)
	if err != nil {
		return err
	}

	printSummary(res, cfg.InitialCapital)

	if chartPath != "" {
		svg, err := backtest.RenderEquitySVG("Equity Curve", res, backtest.SVGChartOptions{})
		if err != nil {
			return fmt.Errorf("render chart: %w", err)
		}
		if err := os.WriteFile(chartPath, svg, 0o644); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
	}

	if outPath == "" {
		return backtest.WriteResultJSON(os.Stdout, res)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer out.Close()
	return backtest.WriteResultJSON(out, res)
}

// printSummary writes a human-readable digest to stderr so stdout stays
// clean for the JSON report.
func printSummary(res *backtest.Result, initialCapital float64) {
	p := message.NewPrinter(language.English)
	p.Fprintf(os.Stderr, "trades: %d (won %d, lost %d)\n",
		res.TotalTrades, res.WinningTrades, res.LosingTrades)
	p.Fprintf(os.Stderr, "initial capital: $%.2f\n", initialCapital)
	p.Fprintf(os.Stderr, "total pnl: $%.2f (%.2f%%)\n", res.TotalPnL, res.PercentReturn)
	p.Fprintf(os.Stderr, "max drawdown: %.2f%%\n", res.MaxDrawdown)
	for _, d := range res.Diagnostics {
		fmt.Fprintf(os.Stderr, "note: %s\n", d)
	}
}
