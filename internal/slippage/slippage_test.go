package slippage

import (
	"math/rand"
	"testing"
	"time"

	"github.com/ngmysamuel/gobacktester/internal/bars"
	"github.com/ngmysamuel/gobacktester/internal/events"
)

func TestNoSlippageIsAlwaysZero(t *testing.T) {
	var m NoSlippage
	if got := m.CalculateSlippage("AAA", time.Time{}, 100, events.Buy); got != 0 {
		t.Fatalf("got %v, want 0", got)
	}
}

func defaultConfig() Config {
	return Config{
		PeriodsInYear:         252,
		ShortWindow:           3,
		MedWindow:             5,
		LongWindow:            8,
		PowerLawExponent:      0.5,
		UpperLimVolSurge:      5,
		BidAskWindow:          4,
		VolatilityCostFactor:  1,
		MarketImpactFactor:    0.1,
		MomentumCostFactor:    0.1,
		LiquidityCostFactor:   0.1,
		LiquidityCostExponent: 0.5,
		RandomNoise:           0, // deterministic for tests
	}
}

func feedBars(m *MultiFactorSlippage, ticker string, n int) {
	key := bars.Key{Ticker: ticker, Interval: time.Minute}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		close := 100 + float64(i%3)
		b := bars.Bar{
			Index:  start.Add(time.Duration(i) * time.Minute),
			Open:   close,
			High:   close + 1,
			Low:    close - 1,
			Close:  close,
			Volume: 1000,
		}
		m.OnInterval(map[bars.Key]bars.History{key: {b}})
	}
}

func TestMultiFactorSlippageReturnsZeroBeforeShortWindowFilled(t *testing.T) {
	m := NewMultiFactorSlippage(defaultConfig(), rand.New(rand.NewSource(1)))
	feedBars(m, "AAA", 2)
	if got := m.CalculateSlippage("AAA", time.Time{}, 10, events.Buy); got != 0 {
		t.Fatalf("got %v, want 0 before enough history", got)
	}
}

func TestMultiFactorSlippageIsBoundedAfterWarmup(t *testing.T) {
	m := NewMultiFactorSlippage(defaultConfig(), rand.New(rand.NewSource(1)))
	feedBars(m, "AAA", 20)
	got := m.CalculateSlippage("AAA", time.Time{}, 10, events.Buy)
	if got < 0 || got > 0.05 {
		t.Fatalf("slippage %v out of bounds [0, 0.05]", got)
	}
}

func TestMultiFactorSlippageUnknownTickerIsZero(t *testing.T) {
	m := NewMultiFactorSlippage(defaultConfig(), nil)
	if got := m.CalculateSlippage("UNKNOWN", time.Time{}, 10, events.Buy); got != 0 {
		t.Fatalf("got %v, want 0 for an unseen ticker", got)
	}
}
