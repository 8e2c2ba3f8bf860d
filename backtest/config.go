package backtest

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration errors, rejected before the simulation loop runs.
var (
	ErrNoSymbols = errors.New("no symbols configured")
	ErrNoRules   = errors.New("no rules enabled")
)

// RunConfig describes one backtest run.
type RunConfig struct {
	Symbols          []string
	Start            time.Time
	End              time.Time
	Interval         string
	InitialCapital   float64
	QuantityPerTrade int
	Rules            []Rule
}

// DefaultRunConfig returns the baseline run settings.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Interval:         "1d",
		InitialCapital:   10_000,
		QuantityPerTrade: 100,
	}
}

// Validate rejects configurations the engine cannot run: no symbols, no
// enabled rules, or a malformed rule.
func (cfg RunConfig) Validate() error {
	if len(cfg.Symbols) == 0 {
		return ErrNoSymbols
	}
	enabled := cfg.enabledRules()
	if len(enabled) == 0 {
		return ErrNoRules
	}
	for _, r := range enabled {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// enabledRules returns the enabled rules in configuration order.
func (cfg RunConfig) enabledRules() []Rule {
	out := make([]Rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

type yamlRunConfig struct {
	Backtest struct {
		Symbols          []string `yaml:"symbols"`
		Start            string   `yaml:"start"`
		End              string   `yaml:"end"`
		Interval         string   `yaml:"interval"`
		InitialCapital   float64  `yaml:"initial_capital"`
		QuantityPerTrade int      `yaml:"quantity_per_trade"`
	} `yaml:"backtest"`
	Rules []yamlRule `yaml:"rules"`
}

// yamlRule shadows Rule so that an omitted "enabled" key defaults to true.
type yamlRule struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Decision Decision `yaml:"decision"`
	Enabled  *bool    `yaml:"enabled"`
	Kind     RuleKind `yaml:"kind"`

	ShortWindow     int     `yaml:"short_window"`
	LongWindow      int     `yaml:"long_window"`
	ProfitThreshold float64 `yaml:"profit_threshold"`
	LossThreshold   float64 `yaml:"loss_threshold"`

	Change        ChangeKind `yaml:"change"`
	ChangePercent float64    `yaml:"change_percent"`

	Quantity int `yaml:"quantity"`
}

func (y yamlRule) toRule() Rule {
	enabled := true
	if y.Enabled != nil {
		enabled = *y.Enabled
	}
	return Rule{
		ID:              y.ID,
		Name:            y.Name,
		Decision:        y.Decision,
		Enabled:         enabled,
		Kind:            y.Kind,
		ShortWindow:     y.ShortWindow,
		LongWindow:      y.LongWindow,
		ProfitThreshold: y.ProfitThreshold,
		LossThreshold:   y.LossThreshold,
		Change:          y.Change,
		ChangePercent:   y.ChangePercent,
		Quantity:        y.Quantity,
	}
}

// LoadRunConfig reads a YAML run definition and maps it onto RunConfig with
// defaults applied.
func LoadRunConfig(path string) (RunConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("read config: %w", err)
	}

	var yc yamlRunConfig
	if err := yaml.Unmarshal(raw, &yc); err != nil {
		return RunConfig{}, fmt.Errorf("parse yaml: %w", err)
	}

	cfg := DefaultRunConfig()
	cfg.Symbols = yc.Backtest.Symbols
	if yc.Backtest.Interval != "" {
		cfg.Interval = yc.Backtest.Interval
	}
	if yc.Backtest.InitialCapital > 0 {
		cfg.InitialCapital = yc.Backtest.InitialCapital
	}
	if yc.Backtest.QuantityPerTrade > 0 {
		cfg.QuantityPerTrade = yc.Backtest.QuantityPerTrade
	}

	if yc.Backtest.Start != "" {
		t, err := time.Parse("2006-01-02", yc.Backtest.Start)
		if err != nil {
			return RunConfig{}, fmt.Errorf("invalid backtest.start: %w", err)
		}
		cfg.Start = t
	}
	if yc.Backtest.End != "" {
		t, err := time.Parse("2006-01-02", yc.Backtest.End)
		if err != nil {
			return RunConfig{}, fmt.Errorf("invalid backtest.end: %w", err)
		}
		cfg.End = t
	}
	if cfg.End.IsZero() {
		cfg.End = time.Now().UTC().Truncate(24 * time.Hour)
	}
	if cfg.Start.IsZero() {
		cfg.Start = cfg.End.AddDate(-1, 0, 0)
	}

	for _, yr := range yc.Rules {
		cfg.Rules = append(cfg.Rules, yr.toRule())
	}

	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}
