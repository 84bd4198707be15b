package risk

import "testing"

func TestBuildResolvesKnownClassSpec(t *testing.T) {
	m, err := Build("risk_manager", map[string]interface{}{"max_order_qty": 10.0, "rate_limit": 5})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if m.cfg.MaxOrderQty != 10 || m.cfg.RateLimit != 5 {
		t.Fatalf("cfg = %+v, want MaxOrderQty=10 RateLimit=5", m.cfg)
	}
}

func TestBuildDefaultsUnsetLimitsToDisabled(t *testing.T) {
	m, err := Build("risk_manager", nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if m.cfg.MaxOrderQty != -1 || m.cfg.ParticipationLimit != -1 || m.cfg.RateLimit != -1 {
		t.Fatalf("cfg = %+v, want every unset limit defaulted to -1", m.cfg)
	}
}

func TestBuildErrorsOnUnknownClassSpec(t *testing.T) {
	if _, err := Build("not_a_real_risk_manager", nil); err == nil {
		t.Fatal("expected an error for an unknown class_spec")
	}
}
