package strategy

import (
	"testing"
	"time"

	"github.com/ngmysamuel/gobacktester/internal/bars"
	"github.com/ngmysamuel/gobacktester/internal/events"
)

func TestBuyAndHoldWaitsThenBuysOncePerTicker(t *testing.T) {
	s := NewBuyAndHold("bah", 3)
	key := bars.Key{Ticker: "AAA", Interval: time.Minute}
	hist := bars.History{{Index: time.Now(), Close: 100}}

	for i := 0; i < 2; i++ {
		if sig := s.OnInterval(map[bars.Key]bars.History{key: hist}); len(sig) != 0 {
			t.Fatalf("unexpected early signal at iteration %d: %+v", i, sig)
		}
	}

	sigs := s.OnInterval(map[bars.Key]bars.History{key: hist})
	if len(sigs) != 1 || sigs[0].Kind != events.Long || sigs[0].Ticker != "AAA" {
		t.Fatalf("expected one LONG signal for AAA, got %+v", sigs)
	}

	// Subsequent calls must not re-buy the same ticker.
	if sigs := s.OnInterval(map[bars.Key]bars.History{key: hist}); len(sigs) != 0 {
		t.Fatalf("expected no repeat signal, got %+v", sigs)
	}
}

// fnSubscriber is a struct used through a pointer, since bars.Manager keys
// subscribers in a map and a func value is not comparable.
type fnSubscriber struct{ f func(map[bars.Key]bars.History) }

func (s *fnSubscriber) OnInterval(h map[bars.Key]bars.History) { s.f(h) }

func TestMACrossoverEmitsShortOnDownwardCross(t *testing.T) {
	mgr := bars.NewManager(time.Minute)
	s := NewMACrossover(mgr, "ma", 2, 4)

	var lastSignals []events.Signal
	if err := mgr.Subscribe(time.Minute, "AAA", &fnSubscriber{f: func(h map[bars.Key]bars.History) {
		lastSignals = s.OnInterval(h)
	}}); err != nil {
		t.Fatal(err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// Flat closes for the first 5 bars (enough history for long_window+1=5):
	// the averages are equal, so there is no crossover.
	closes := []float64{100, 100, 100, 100, 100}
	for i, c := range closes {
		lastSignals = nil
		mgr.OnHeartbeat(map[string]bars.Bar{"AAA": {
			Index: start.Add(time.Duration(i) * time.Minute), Open: c, High: c, Low: c, Close: c, Volume: 1,
		}})
	}
	if len(lastSignals) != 0 {
		t.Fatalf("flat prices should not cross, got %+v", lastSignals)
	}

	// Two much lower closes follow. The newest bar is excluded from the
	// averages, so the first low close counts only on the next heartbeat:
	// over closes 100,100,100,1 the short average (50.5) falls below the long
	// average (75.25), triggering SHORT.
	lastSignals = nil
	mgr.OnHeartbeat(map[string]bars.Bar{"AAA": {
		Index: start.Add(5 * time.Minute), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1,
	}})
	mgr.OnHeartbeat(map[string]bars.Bar{"AAA": {
		Index: start.Add(6 * time.Minute), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1,
	}})

	if len(lastSignals) != 1 || lastSignals[0].Kind != events.Short {
		t.Fatalf("expected a SHORT signal once short average drops below long average, got %+v", lastSignals)
	}
}
