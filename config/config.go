// Package config loads the service configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// yamlConfig is the on-disk YAML layout.
type yamlConfig struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Data struct {
		BaseURL             string `yaml:"base_url"`
		FetchTimeoutSeconds int    `yaml:"fetch_timeout_seconds"`
		CacheTTLMinutes     int    `yaml:"cache_ttl_minutes"`
	} `yaml:"data"`

	Watchlist []string `yaml:"watchlist"`
}

// Config is the runtime service configuration.
type Config struct {
	// HTTP listen port.
	Port int

	// Market data endpoint; empty means the fetcher default.
	DataBaseURL string

	// Upstream request timeout.
	FetchTimeout time.Duration

	// How long fetched series stay cached. Zero disables the cache.
	CacheTTL time.Duration

	// Default symbols for the scan endpoint when the request names none.
	Watchlist []string
}

// DefaultConfig is used when no config file is given.
var DefaultConfig = Config{
	Port:         8000,
	FetchTimeout: 15 * time.Second,
	CacheTTL:     5 * time.Minute,
	Watchlist:    []string{"AAPL", "MSFT", "GOOG"},
}

// Load reads a YAML config file, falling back to DefaultConfig for any
// omitted field.
func Load(path string) (Config, error) {
	cfg := DefaultConfig
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(raw, &yc); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}

	if yc.Server.Port > 0 {
		cfg.Port = yc.Server.Port
	}
	if yc.Data.BaseURL != "" {
		cfg.DataBaseURL = yc.Data.BaseURL
	}
	if yc.Data.FetchTimeoutSeconds > 0 {
		cfg.FetchTimeout = time.Duration(yc.Data.FetchTimeoutSeconds) * time.Second
	}
	if yc.Data.CacheTTLMinutes > 0 {
		cfg.CacheTTL = time.Duration(yc.Data.CacheTTLMinutes) * time.Minute
	}
	if len(yc.Watchlist) > 0 {
		cfg.Watchlist = yc.Watchlist
	}
	return cfg, nil
}
