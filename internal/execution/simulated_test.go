package execution

import (
	"testing"
	"time"

	"github.com/ngmysamuel/gobacktester/internal/bars"
	"github.com/ngmysamuel/gobacktester/internal/events"
	"github.com/ngmysamuel/gobacktester/internal/slippage"
)

func TestMKTOrderFillsAtNextOpenWithSlippage(t *testing.T) {
	out := events.NewChannel(4)
	h := New(slippage.NoSlippage{}, out)

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h.OnOrder(events.Order{Ticker: "AAA", Direction: events.Buy, Type: events.MKT, Quantity: 10, Timestamp: t0})

	// First heartbeat is at the order's own timestamp: must not fill yet.
	h.OnMarket(map[string]bars.Bar{"AAA": {Index: t0, Open: 100, Close: 101}}, false)
	if _, ok := out.TryPop(); ok {
		t.Fatal("expected no fill on the same-timestamp heartbeat")
	}

	// Next heartbeat: fills at this bar's open.
	t1 := t0.Add(time.Minute)
	h.OnMarket(map[string]bars.Bar{"AAA": {Index: t1, Open: 105, Close: 106}}, false)
	ev, ok := out.TryPop()
	if !ok || ev.Kind != events.KindFill {
		t.Fatal("expected a fill event")
	}
	if ev.Fill.UnitCost != 105 || ev.Fill.FillCost != 1050 {
		t.Fatalf("unexpected fill: %+v", ev.Fill)
	}
}

func TestMOCOrderWaitsForMarketClose(t *testing.T) {
	out := events.NewChannel(4)
	h := New(slippage.NoSlippage{}, out)

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h.OnOrder(events.Order{Ticker: "AAA", Direction: events.Sell, Type: events.MOC, Quantity: 5, Timestamp: t0.Add(-time.Minute)})

	h.OnMarket(map[string]bars.Bar{"AAA": {Index: t0, Open: 100, Close: 102}}, false)
	if _, ok := out.TryPop(); ok {
		t.Fatal("expected no fill before market close")
	}

	h.OnMarket(map[string]bars.Bar{"AAA": {Index: t0.Add(time.Minute), Open: 103, Close: 104}}, true)
	ev, ok := out.TryPop()
	if !ok {
		t.Fatal("expected a fill at market close")
	}
	if ev.Fill.UnitCost != 104 {
		t.Fatalf("MOC fill should use close, got %v", ev.Fill.UnitCost)
	}
}

func TestFutureOrderHaltsEntirePass(t *testing.T) {
	out := events.NewChannel(4)
	h := New(slippage.NoSlippage{}, out)

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// Second order is dated in the future relative to the bar; it must halt
	// the pass even though it was queued after a fillable order.
	h.OnOrder(events.Order{Ticker: "AAA", Direction: events.Buy, Type: events.MKT, Quantity: 1, Timestamp: t0.Add(-time.Minute)})
	h.OnOrder(events.Order{Ticker: "AAA", Direction: events.Buy, Type: events.MKT, Quantity: 1, Timestamp: t0.Add(time.Hour)})

	h.OnMarket(map[string]bars.Bar{"AAA": {Index: t0, Open: 100, Close: 100}}, false)

	filled := 0
	for {
		if _, ok := out.TryPop(); !ok {
			break
		}
		filled++
	}
	if filled != 1 {
		t.Fatalf("expected exactly 1 fill (the future order halts the pass), got %d", filled)
	}
	if len(h.queue) != 1 {
		t.Fatalf("expected the future order to remain queued, got queue len %d", len(h.queue))
	}
}

func TestOnMarketErrorsWhenTickerNeverHasData(t *testing.T) {
	out := events.NewChannel(4)
	h := New(slippage.NoSlippage{}, out)

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h.OnOrder(events.Order{Ticker: "ZZZ", Direction: events.Buy, Type: events.MKT, Quantity: 1, Timestamp: t0.Add(-time.Minute)})

	if err := h.OnMarket(map[string]bars.Bar{"AAA": {Index: t0, Open: 100, Close: 100}}, false); err == nil {
		t.Fatal("expected an error for a ticker with no bar data at all")
	}
}

func TestOnMarketTolerateMissingTickerThisTickAfterSeenBefore(t *testing.T) {
	out := events.NewChannel(4)
	h := New(slippage.NoSlippage{}, out)

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := h.OnMarket(map[string]bars.Bar{"AAA": {Index: t0, Open: 100, Close: 100}}, false); err != nil {
		t.Fatalf("OnMarket: %v", err)
	}

	h.OnOrder(events.Order{Ticker: "AAA", Direction: events.Buy, Type: events.MKT, Quantity: 1, Timestamp: t0.Add(-time.Minute)})
	// AAA has no trade this tick (illiquid), but it has appeared before: must
	// requeue and wait, not error.
	if err := h.OnMarket(map[string]bars.Bar{}, false); err != nil {
		t.Fatalf("OnMarket: %v", err)
	}
	if len(h.queue) != 1 {
		t.Fatalf("expected the order to remain queued, got queue len %d", len(h.queue))
	}
}

func TestIBCommissionTieredFormula(t *testing.T) {
	// quantity <= 500: k=0.013
	if got := ibCommission(200, 100000); got != 2.6 {
		t.Fatalf("commission = %v, want 2.6", got)
	}
	// floor at 1.3
	if got := ibCommission(10, 1000); got != 1.3 {
		t.Fatalf("commission = %v, want 1.3", got)
	}
	// above 500: k=0.008
	if got := ibCommission(1000, 1000000); got != 8 {
		t.Fatalf("commission = %v, want 8", got)
	}
	// capped at 0.005*fillCost
	if got := ibCommission(1000, 100); got != 0.5 {
		t.Fatalf("commission = %v, want 0.5 (capped)", got)
	}
}
