package risk

import "github.com/ngmysamuel/gobacktester/internal/registry"

// knownClassSpecs are the risk_manager class_spec values this package can
// build. Risk has a single concrete implementation, so Build resolves by
// tag purely so the config's risk_manager section is validated the same
// way every other family is, not because multiple implementations exist.
var knownClassSpecs = []string{"risk_manager"}

// Build resolves classSpec and constructs a Manager from params. Risk
// manager construction lives here rather than in internal/registry (unlike
// Sizer/Strategy/SlippageModel, each of which self-register into the
// registry via an init()) because Manager.IsAllowed needs the other
// collaborators (bars.History, risk.Holdings) passed as concrete types at
// call sites that already import this package directly — going through the
// registry's generic factory map would require registry to import
// internal/risk for the *Manager return type, which internal/risk would
// then import back to register itself: an import cycle. Build keeps the
// same class_spec-driven resolution shape (and the same "unknown
// class_spec" error) without it.
func Build(classSpec string, params map[string]interface{}) (*Manager, error) {
	known := false
	for _, spec := range knownClassSpecs {
		if spec == classSpec {
			known = true
			break
		}
	}
	if !known {
		return nil, registry.NewUnknownClassSpec("risk_manager", classSpec, knownClassSpecs)
	}

	cfg := Config{
		MaxOrderQty:         paramFloat(params, "max_order_qty", -1),
		MaxNotionalValue:    paramFloat(params, "max_notional_value", -1),
		MaxDailyLoss:        paramFloat(params, "max_daily_loss", -1),
		MaxGrossExposure:    paramFloat(params, "max_gross_exposure", -1),
		MaxNetExposure:      paramFloat(params, "max_net_exposure", -1),
		ParticipationWindow: paramInt(params, "participation_window", 20),
		ParticipationLimit:  paramFloat(params, "participation_limit", -1),
		RateLimit:           paramInt(params, "rate_limit", -1),
	}
	return New(cfg), nil
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
