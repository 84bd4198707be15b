package strategy

import (
	"github.com/ngmysamuel/gobacktester/internal/bars"
	"github.com/ngmysamuel/gobacktester/internal/registry"
)

func init() {
	registry.RegisterStrategy("moving_average_crossover", func(mgr *bars.Manager, params map[string]interface{}) (registry.Strategy, error) {
		name := paramString(params, "name", "moving_average_crossover")
		short := paramInt(params, "short_window", 10)
		long := paramInt(params, "long_window", 50)
		return NewMACrossover(mgr, name, short, long), nil
	})
	registry.RegisterStrategy("buy_and_hold_simple", func(_ *bars.Manager, params map[string]interface{}) (registry.Strategy, error) {
		name := paramString(params, "name", "buy_and_hold_simple")
		days := paramInt(params, "days_before_buying", 1)
		return NewBuyAndHold(name, days), nil
	})
}

func paramString(params map[string]interface{}, key, def string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return def
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
