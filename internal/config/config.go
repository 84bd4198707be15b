// Package config loads and validates the YAML configuration for a backtest
// or paper-trading run: the global backtester_settings plus one named entry
// per pluggable family (data_handler, position_sizer, slippage, strategies,
// risk_manager), resolved at startup through internal/registry.
//
// Grounded on the teacher's internal/config (nested yaml.v3-tagged structs,
// Default()/LoadFile()/ApplyEnv()/Validate() shape), generalized from a
// fixed Maker/Taker/Risk/Paper layout to the family-map layout required by
// §6 of the spec.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	BacktesterSettings BacktesterSettings `yaml:"backtester_settings"`

	DataHandler  map[string]Component `yaml:"data_handler"`
	PositionSizer map[string]Component `yaml:"position_sizer"`
	Slippage     map[string]Component `yaml:"slippage"`
	Strategies   map[string]Strategy  `yaml:"strategies"`
	RiskManager  map[string]Component `yaml:"risk_manager"`

	LogLevel string `yaml:"log_level"`
	APIAddr  string `yaml:"api_addr"`
}

// BacktesterSettings is the global run configuration shared by every run
// mode (backtest, paper, live).
type BacktesterSettings struct {
	InitialCapital      float64       `yaml:"initial_capital"`
	InitialPositionSize float64       `yaml:"initial_position_size"`
	CashBuffer          float64       `yaml:"cash_buffer"`
	StartDate           string        `yaml:"start_date"`
	EndDate             string        `yaml:"end_date"`
	BaseInterval        time.Duration `yaml:"base_interval"`
	MetricsInterval      time.Duration `yaml:"metrics_interval"`
	Period              time.Duration `yaml:"period"`
	ExchangeClosingTime string        `yaml:"exchange_closing_time"`
	Benchmark           string        `yaml:"benchmark"`
	AnnualizationFactor float64       `yaml:"annualization_factor"`
	BorrowCost          float64       `yaml:"borrow_cost"`
	MaintenanceMargin   float64       `yaml:"maintenance_margin"`
	RiskPerTrade        float64       `yaml:"risk_per_trade"`
	ExceptionContd      bool          `yaml:"exception_contd"`
}

// Component is a generic "class_spec + additional_parameters" entry used by
// every pluggable family except strategies, which additionally carry a
// symbol list.
type Component struct {
	ClassSpec            string                 `yaml:"class_spec"`
	AdditionalParameters map[string]interface{} `yaml:"additional_parameters"`
}

// Strategy is a strategies-section entry: a Component plus the symbol/
// rounding/interval binding the spec requires strategies to carry.
type Strategy struct {
	ClassSpec            string                 `yaml:"class_spec"`
	AdditionalParameters map[string]interface{} `yaml:"additional_parameters"`
	SymbolList           []string               `yaml:"symbol_list"`
	RoundingList         map[string]int         `yaml:"rounding_list"`
	Interval             time.Duration          `yaml:"interval"`
}

// Default returns the baseline configuration a fresh run starts from before
// any file or environment overrides are applied.
func Default() Config {
	return Config{
		BacktesterSettings: BacktesterSettings{
			InitialCapital:      100000,
			InitialPositionSize: 100,
			CashBuffer:          0.95,
			BaseInterval:        time.Minute,
			MetricsInterval:     24 * time.Hour,
			ExchangeClosingTime: "16:00",
			AnnualizationFactor: 252,
			BorrowCost:          0.03,
			MaintenanceMargin:   1.5,
			RiskPerTrade:        0.01,
			ExceptionContd:      true,
		},
		DataHandler:   map[string]Component{},
		PositionSizer: map[string]Component{},
		Slippage:      map[string]Component{},
		Strategies:    map[string]Strategy{},
		RiskManager:   map[string]Component{},
		LogLevel:      "info",
		APIAddr:       ":8080",
	}
}

// LoadFile reads a YAML document at path, unmarshaling onto Default() so
// any field absent from the file keeps its default.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overlays a small set of operational environment variables,
// mirroring the teacher's ApplyEnv override pattern.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("BACKTESTER_LOG_LEVEL")); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("BACKTESTER_API_ADDR")); v != "" {
		c.APIAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("BACKTESTER_EXCEPTION_CONTD")); v != "" {
		c.BacktesterSettings.ExceptionContd = strings.EqualFold(v, "true") || v == "1"
	}
	if v := strings.TrimSpace(os.Getenv("BACKTESTER_BENCHMARK")); v != "" {
		c.BacktesterSettings.Benchmark = v
	}
}

// ApplyRolloutPhase applies a staged rollout preset, generalized from the
// teacher's paper/shadow/live-small/live phases to a backtest/paper run:
// - backtest: exception_contd=true.
// - paper-dryrun (alias shadow): exception_contd=true, and
//   initial_position_size capped at 10.
// - paper: exception_contd=false (fail fast).
// No other setting is changed by a preset.
func ApplyRolloutPhase(cfg *Config, phase string) error {
	p := strings.ToLower(strings.TrimSpace(phase))
	if p == "" {
		return nil
	}
	switch p {
	case "backtest":
		cfg.BacktesterSettings.ExceptionContd = true
	case "paper-dryrun", "shadow":
		cfg.BacktesterSettings.ExceptionContd = true
		if cfg.BacktesterSettings.InitialPositionSize <= 0 || cfg.BacktesterSettings.InitialPositionSize > 10 {
			cfg.BacktesterSettings.InitialPositionSize = 10
		}
	case "paper":
		cfg.BacktesterSettings.ExceptionContd = false
	default:
		return fmt.Errorf("unknown rollout phase %q (supported: backtest|paper-dryrun|shadow|paper)", phase)
	}
	return nil
}
