package risk

import (
	"testing"
	"time"

	"github.com/ngmysamuel/gobacktester/internal/bars"
	"github.com/ngmysamuel/gobacktester/internal/events"
)

func disabledConfig() Config {
	return Config{
		MaxOrderQty:         -1,
		MaxNotionalValue:    -1,
		MaxDailyLoss:        -1,
		MaxGrossExposure:    -1,
		MaxNetExposure:      -1,
		ParticipationWindow: 1,
		ParticipationLimit:  -1,
		RateLimit:           -1,
	}
}

func oneBarHistory(close, volume float64) bars.History {
	return bars.History{{Index: time.Now(), Open: close, High: close, Low: close, Close: close, Volume: volume}}
}

func TestIsAllowedFailsWithoutHistory(t *testing.T) {
	m := New(disabledConfig())
	order := events.Order{Ticker: "AAA", Quantity: 1, Direction: events.Buy}
	if m.IsAllowed(order, nil, nil, []string{"AAA"}, Holdings{ByTicker: map[string]TickerHolding{}}, time.Now()) {
		t.Fatal("expected false with empty history")
	}
}

func TestMaxOrderQuantityVetoes(t *testing.T) {
	cfg := disabledConfig()
	cfg.MaxOrderQty = 10
	m := New(cfg)
	order := events.Order{Ticker: "AAA", Quantity: 11, Direction: events.Buy, Timestamp: time.Now()}
	h := oneBarHistory(100, 1000)
	if m.IsAllowed(order, nil, h, []string{"AAA"}, Holdings{ByTicker: map[string]TickerHolding{}}, time.Now()) {
		t.Fatal("expected veto: quantity exceeds max order quantity")
	}
}

func TestDailyLossLimitPassesWhenPositionIsFlat(t *testing.T) {
	cfg := disabledConfig()
	cfg.MaxDailyLoss = 0.01
	m := New(cfg)
	order := events.Order{Ticker: "AAA", Quantity: 1, Direction: events.Sell, Timestamp: time.Now()}
	h := oneBarHistory(100, 1000)
	holdings := Holdings{
		Total:    90,
		ByTicker: map[string]TickerHolding{"AAA": {Position: 0, Value: 0}},
	}
	dailyOpen := map[string]float64{"": 100}
	// net_direction = sign(signed qty) * sign(existing position=0) = 0, so the
	// daily-loss check is vacuously satisfied even though pnl breaches the limit.
	if !m.IsAllowed(order, dailyOpen, h, []string{"AAA"}, holdings, time.Now()) {
		t.Fatal("expected pass: net_direction is 0 when the existing position is flat")
	}
}

func TestDailyLossLimitVetoesWhenDeepeningAnOpenLoss(t *testing.T) {
	cfg := disabledConfig()
	cfg.MaxDailyLoss = 0.01
	m := New(cfg)
	order := events.Order{Ticker: "AAA", Quantity: 1, Direction: events.Buy, Timestamp: time.Now()}
	h := oneBarHistory(100, 1000)
	holdings := Holdings{
		Total:    90,
		ByTicker: map[string]TickerHolding{"AAA": {Position: 5, Value: 500}},
	}
	dailyOpen := map[string]float64{"": 100}
	if m.IsAllowed(order, dailyOpen, h, []string{"AAA"}, holdings, time.Now()) {
		t.Fatal("expected veto: buying more while long and down more than the daily loss limit")
	}
}

func TestRateLimitPrunesOldTimestampsAndVetoesOverLimit(t *testing.T) {
	cfg := disabledConfig()
	cfg.RateLimit = 1
	m := New(cfg)
	h := oneBarHistory(100, 1000)
	holdings := Holdings{ByTicker: map[string]TickerHolding{"AAA": {}}}
	now := time.Now()

	order := events.Order{Ticker: "AAA", Quantity: 1, Direction: events.Buy, Timestamp: now}
	if !m.IsAllowed(order, nil, h, []string{"AAA"}, holdings, now) {
		t.Fatal("expected first order to pass")
	}
	if !m.IsAllowed(order, nil, h, []string{"AAA"}, holdings, now) {
		t.Fatal("expected second order within limit (1 prior <= RateLimit 1) to pass")
	}
	if m.IsAllowed(order, nil, h, []string{"AAA"}, holdings, now) {
		t.Fatal("expected third order within the same second to be vetoed")
	}

	// Advance past the rate interval: the old timestamps should be pruned.
	later := now.Add(2 * time.Second)
	if !m.IsAllowed(order, nil, h, []string{"AAA"}, holdings, later) {
		t.Fatal("expected order to pass once earlier timestamps fall outside RateInterval")
	}
}

func TestDisabledConfigAllowsOrdersIndefinitely(t *testing.T) {
	// Every limit at -1 (the registry's own default) must never veto,
	// regardless of how many orders have already gone through or how long
	// the bar history is.
	cfg := disabledConfig()
	m := New(cfg)
	h := oneBarHistory(100, 1000)
	holdings := Holdings{ByTicker: map[string]TickerHolding{"AAA": {}}}
	now := time.Now()
	order := events.Order{Ticker: "AAA", Quantity: 1, Direction: events.Buy, Timestamp: now}

	for i := 0; i < 5; i++ {
		if !m.IsAllowed(order, nil, h, []string{"AAA"}, holdings, now) {
			t.Fatalf("order %d: expected pass with every risk limit disabled (-1)", i)
		}
	}
}

func TestParticipationCheckVetoesOnHighParticipationRate(t *testing.T) {
	cfg := disabledConfig()
	cfg.ParticipationWindow = 2
	cfg.ParticipationLimit = 0.1
	m := New(cfg)
	h := bars.History{
		{Close: 100, Volume: 100},
		{Close: 100, Volume: 100},
	}
	order := events.Order{Ticker: "AAA", Quantity: 50, Direction: events.Buy, Timestamp: time.Now()}
	holdings := Holdings{ByTicker: map[string]TickerHolding{"AAA": {}}}
	if m.IsAllowed(order, nil, h, []string{"AAA"}, holdings, time.Now()) {
		t.Fatal("expected veto: 50/avg(100) participation rate of 0.5 exceeds limit 0.1")
	}
}
