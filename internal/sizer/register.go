package sizer

import "github.com/ngmysamuel/gobacktester/internal/registry"

func init() {
	registry.Sizers.Register("atr_position_sizer", func(params map[string]interface{}) (registry.Sizer, error) {
		window := paramInt(params, "atr_window", 14)
		multiplier := paramFloat(params, "atr_multiplier", 1.0)
		return NewATRSizer(window, multiplier), nil
	})
	registry.Sizers.Register("constant_position_sizer", func(params map[string]interface{}) (registry.Sizer, error) {
		qty := paramFloat(params, "quantity", 100)
		return NewConstantSizer(qty), nil
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
