package slippage

import (
	"math/rand"
	"time"

	"github.com/ngmysamuel/gobacktester/internal/registry"
)

func init() {
	registry.SlippageModels.Register("no_slippage", func(map[string]interface{}) (registry.SlippageModel, error) {
		return NoSlippage{}, nil
	})
	registry.SlippageModels.Register("multi_factor_slippage", func(params map[string]interface{}) (registry.SlippageModel, error) {
		cfg := Config{
			PeriodsInYear:         paramFloat(params, "periods_in_year", 252),
			ShortWindow:           paramInt(params, "short_window", 5),
			MedWindow:             paramInt(params, "med_window", 20),
			LongWindow:            paramInt(params, "long_window", 60),
			PowerLawExponent:      paramFloat(params, "power_law_exponent", 0.5),
			UpperLimVolSurge:      paramFloat(params, "upper_lim_vol_surge", 3.0),
			BidAskWindow:          paramInt(params, "bid_ask_window", 20),
			VolatilityCostFactor:  paramFloat(params, "volatility_cost_factor", 0.1),
			MarketImpactFactor:    paramFloat(params, "market_impact_factor", 0.1),
			MomentumCostFactor:    paramFloat(params, "momentum_cost_factor", 0.05),
			LiquidityCostFactor:   paramFloat(params, "liquidity_cost_factor", 0.1),
			LiquidityCostExponent: paramFloat(params, "liquidity_cost_exponent", 0.5),
			RandomNoise:           paramFloat(params, "random_noise", 0.001),
		}
		return NewMultiFactorSlippage(cfg, rand.New(rand.NewSource(time.Now().UnixNano()))), nil
	})
}

func paramFloat(params map[string]interface{}, key string, def float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

func paramInt(params map[string]interface{}, key string, def int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}
