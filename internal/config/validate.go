package config

import "fmt"

// Validate checks high-impact runtime configuration constraints, mirroring
// the teacher's flat sequential-check validate.go style.
func (c Config) Validate() error {
	s := c.BacktesterSettings
	if s.InitialCapital <= 0 {
		return fmt.Errorf("backtester_settings.initial_capital must be > 0, got %f", s.InitialCapital)
	}
	if s.CashBuffer <= 0 || s.CashBuffer > 1 {
		return fmt.Errorf("backtester_settings.cash_buffer must be within (0,1], got %f", s.CashBuffer)
	}
	if s.BaseInterval <= 0 {
		return fmt.Errorf("backtester_settings.base_interval must be > 0, got %s", s.BaseInterval)
	}
	if s.MetricsInterval <= 0 {
		return fmt.Errorf("backtester_settings.metrics_interval must be > 0, got %s", s.MetricsInterval)
	}
	if s.AnnualizationFactor <= 0 {
		return fmt.Errorf("backtester_settings.annualization_factor must be > 0, got %f", s.AnnualizationFactor)
	}
	if s.MaintenanceMargin < 0 {
		return fmt.Errorf("backtester_settings.maintenance_margin must be >= 0, got %f", s.MaintenanceMargin)
	}
	if s.RiskPerTrade < 0 {
		return fmt.Errorf("backtester_settings.risk_per_trade must be >= 0, got %f", s.RiskPerTrade)
	}

	if len(c.Strategies) == 0 {
		return fmt.Errorf("strategies: at least one entry is required")
	}
	for name, strat := range c.Strategies {
		if strat.ClassSpec == "" {
			return fmt.Errorf("strategies.%s.class_spec is required", name)
		}
		if len(strat.SymbolList) == 0 {
			return fmt.Errorf("strategies.%s.symbol_list must be non-empty", name)
		}
		if strat.Interval <= 0 {
			return fmt.Errorf("strategies.%s.interval must be > 0, got %s", name, strat.Interval)
		}
	}

	if len(c.DataHandler) != 1 {
		return fmt.Errorf("data_handler: exactly one entry must be selected, got %d", len(c.DataHandler))
	}
	if len(c.PositionSizer) != 1 {
		return fmt.Errorf("position_sizer: exactly one entry must be selected, got %d", len(c.PositionSizer))
	}
	if len(c.Slippage) != 1 {
		return fmt.Errorf("slippage: exactly one entry must be selected, got %d", len(c.Slippage))
	}
	if len(c.RiskManager) != 1 {
		return fmt.Errorf("risk_manager: exactly one entry must be selected, got %d", len(c.RiskManager))
	}

	return nil
}
