// Package config loads run configuration from YAML (JSON accepted as a
// fallback) and validates it before anything touches the simulator.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents a complete rotation backtest configuration.
type Config struct {
	Data     DataConfig     `json:"data" yaml:"data"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Backtest BacktestConfig `json:"backtest" yaml:"backtest"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
}

// DataConfig locates the market-data store.
type DataConfig struct {
	DB string `json:"db" yaml:"db"`
}

// StrategyConfig names the selection rule and its knobs.
type StrategyConfig struct {
	Name          string  `json:"name" yaml:"name"`
	SelectionSize int     `json:"selection_size" yaml:"selection_size"`
	MinPrice      float64 `json:"min_price,omitempty" yaml:"min_price,omitempty"`
	MinMarketCap  float64 `json:"min_market_cap,omitempty" yaml:"min_market_cap,omitempty"`
	ExcludeST     bool    `json:"exclude_st" yaml:"exclude_st"`
	MainBoard     bool    `json:"main_board" yaml:"main_board"`
}

// BacktestConfig holds the simulation parameters.
type BacktestConfig struct {
	Start          string  `json:"start" yaml:"start"` // YYYY-MM-DD
	End            string  `json:"end" yaml:"end"`
	Schedule       string  `json:"schedule" yaml:"schedule"` // monthly, month-end, every:N
	CostRate       float64 `json:"cost_rate" yaml:"cost_rate"`
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
	LotSize        int64   `json:"lot_size" yaml:"lot_size"`
	// Annualization base for CAGR/volatility; 0 derives it from the
	// calendar's sampling frequency.
	PeriodsPerYear float64 `json:"periods_per_year" yaml:"periods_per_year"`
}

// JournalConfig controls run persistence and report export.
type JournalConfig struct {
	DB        string `json:"db" yaml:"db"`
	Export    string `json:"export" yaml:"export"` // org, csv, none
	ExportDir string `json:"export_dir" yaml:"export_dir"`
}

// LoadFromFile loads and validates a config file. YAML is tried first,
// then JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration before a run starts.
func (c *Config) Validate() error {
	if c.Data.DB == "" {
		return fmt.Errorf("data.db is required")
	}
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy.name is required")
	}
	if c.Strategy.SelectionSize < 1 {
		return fmt.Errorf("strategy.selection_size must be >= 1")
	}
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be positive")
	}
	if c.Backtest.CostRate < 0 {
		return fmt.Errorf("backtest.cost_rate must not be negative")
	}
	if c.Backtest.LotSize < 0 {
		return fmt.Errorf("backtest.lot_size must not be negative")
	}
	start, err := c.StartDate()
	if err != nil {
		return err
	}
	end, err := c.EndDate()
	if err != nil {
		return err
	}
	if !end.After(start) {
		return fmt.Errorf("backtest.end must be after backtest.start")
	}
	switch strings.ToLower(c.Journal.Export) {
	case "", "none", "org", "csv":
	default:
		return fmt.Errorf("journal.export must be org, csv or none")
	}
	return nil
}

func (c *Config) StartDate() (time.Time, error) { return parseDate("backtest.start", c.Backtest.Start) }
func (c *Config) EndDate() (time.Time, error)   { return parseDate("backtest.end", c.Backtest.End) }

func parseDate(field, v string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: bad date %q (want YYYY-MM-DD)", field, v)
	}
	return t, nil
}

// Default returns a configuration with the original system's defaults:
// ten smallest main-board names above 10 yuan, monthly rotation, 100-share
// lots, one million initial capital.
func Default() *Config {
	return &Config{
		Data: DataConfig{DB: "./market.db"},
		Strategy: StrategyConfig{
			Name:          "smallcap",
			SelectionSize: 10,
			MinPrice:      10,
			ExcludeST:     true,
			MainBoard:     true,
		},
		Backtest: BacktestConfig{
			Start:          "2023-01-01",
			End:            time.Now().Format("2006-01-02"),
			Schedule:       "month-end",
			CostRate:       0,
			InitialCapital: 1_000_000,
			LotSize:        100,
		},
		Journal: JournalConfig{
			DB:        "./rotation.db",
			Export:    "org",
			ExportDir: "./reports",
		},
	}
}

// SaveToFile writes the config as YAML (or JSON for .json paths).
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
