package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"systrader/api"
	"systrader/config"
	"systrader/fetcher"
)

var (
	configPath     string
	backtestMode   bool
	backtestConfig string
	backtestOut    string
	backtestChart  string
	scanMode       bool
	scanOut        string
	scanJSON       bool
)

func main() {
	flag.StringVar(&configPath, "config", "", "service config file path (YAML)")
	flag.BoolVar(&backtestMode, "backtest", false, "run a backtest and exit")
	flag.StringVar(&backtestConfig, "bt-config", "backtest.yaml", "backtest run definition path (YAML)")
	flag.StringVar(&backtestOut, "bt-out", "", "backtest report JSON output path (default stdout)")
	flag.StringVar(&backtestChart, "bt-chart", "", "equity curve SVG output path (optional)")
	flag.BoolVar(&scanMode, "scan", false, "scan the latest bar for entry signals and exit")
	flag.StringVar(&scanOut, "scan-out", "", "scan output path (default stdout)")
	flag.BoolVar(&scanJSON, "scan-json", false, "scan output as JSON instead of a table")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("[ERROR] load config: %v\n", err)
		os.Exit(1)
	}
	f := newFetcher(cfg)

	if scanMode {
		if err := runScan(f, cfg, backtestConfig, scanOut, scanJSON); err != nil {
			log.Printf("[ERROR] scan failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if backtestMode {
		if err := runBacktest(f, backtestConfig, backtestOut, backtestChart); err != nil {
			log.Printf("[ERROR] backtest failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	log.Println("=== rule-based backtest service ===")
	server := api.NewServer(f, cfg.Port, cfg.Watchlist)
	go func() {
		if err := server.Start(); err != nil {
			log.Printf("[ERROR] HTTP server failed: %v\n", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("shutting down...")
	if err := server.Shutdown(); err != nil {
		log.Printf("[ERROR] shutdown: %v\n", err)
	}
	log.Println("stopped")
}

func newFetcher(cfg config.Config) *fetcher.HistoryFetcher {
	opts := []fetcher.Option{
		fetcher.WithTimeout(cfg.FetchTimeout),
		fetcher.WithCacheTTL(cfg.CacheTTL),
	}
	if cfg.DataBaseURL != "" {
		opts = append(opts, fetcher.WithBaseURL(cfg.DataBaseURL))
	}
	return fetcher.NewHistoryFetcher(opts...)
}
