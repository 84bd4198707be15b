// Package slippage implements the fill-price adjustment model (C7): a
// no-op baseline and a multi-factor model combining volatility, volume,
// liquidity, momentum and spread signals.
//
// Grounded on original_source/src/backtester/util/slippage/no_slippage.py
// and multi_factor_slippage.py, translated from pandas DataFrame feature
// columns computed over the full history to incremental rolling buffers
// updated one bar at a time, matching this engine's single-pass event loop.
package slippage

import (
	"math"
	"math/rand"
	"time"

	"github.com/ngmysamuel/gobacktester/internal/bars"
	"github.com/ngmysamuel/gobacktester/internal/events"
)

// Model is consulted by the execution handler when filling an MKT order.
// timestamp is the fill bar's time, carried per
// multi_factor_slippage.py:calculate_slippage's trade_date parameter; the
// incremental rolling-buffer design here always evaluates at "now" so the
// multi-factor model itself ignores it, but the parameter stays in the
// interface for contract fidelity with the original and any future
// date-indexed implementation (e.g. a backtest replaying out of order).
type Model interface {
	CalculateSlippage(ticker string, timestamp time.Time, quantity float64, direction events.Direction) float64
}

// NoSlippage always returns zero, the baseline used for sanity-check runs.
type NoSlippage struct{}

func (NoSlippage) CalculateSlippage(string, time.Time, float64, events.Direction) float64 { return 0 }

// Config holds the multi-factor model's tunables.
type Config struct {
	PeriodsInYear          float64
	ShortWindow            int
	MedWindow              int
	LongWindow             int
	PowerLawExponent       float64
	UpperLimVolSurge       float64
	BidAskWindow           int
	VolatilityCostFactor   float64
	MarketImpactFactor     float64
	MomentumCostFactor     float64
	LiquidityCostFactor    float64
	LiquidityCostExponent  float64
	RandomNoise            float64
}

type tickerBuffer struct {
	opens, highs, lows, closes, volumes, returns []float64
}

func (b *tickerBuffer) push(bar bars.Bar, maxLen int) {
	prevClose := 0.0
	if n := len(b.closes); n > 0 {
		prevClose = b.closes[n-1]
	}
	ret := 0.0
	if prevClose != 0 {
		ret = (bar.Close - prevClose) / prevClose
	}

	b.opens = append(b.opens, bar.Open)
	b.highs = append(b.highs, bar.High)
	b.lows = append(b.lows, bar.Low)
	b.closes = append(b.closes, bar.Close)
	b.volumes = append(b.volumes, bar.Volume)
	b.returns = append(b.returns, ret)

	if len(b.closes) > maxLen {
		b.opens = b.opens[1:]
		b.highs = b.highs[1:]
		b.lows = b.lows[1:]
		b.closes = b.closes[1:]
		b.volumes = b.volumes[1:]
		b.returns = b.returns[1:]
	}
}

// MultiFactorSlippage maintains a bounded rolling buffer of recent bars per
// ticker and derives a slippage fraction from it on demand.
type MultiFactorSlippage struct {
	cfg        Config
	maxLookback int
	buffers    map[string]*tickerBuffer
	rng        *rand.Rand
}

// NewMultiFactorSlippage creates a model. rng lets tests supply a seeded
// source; pass nil to use the package-level default source.
func NewMultiFactorSlippage(cfg Config, rng *rand.Rand) *MultiFactorSlippage {
	maxWindow := cfg.LongWindow
	if cfg.MedWindow > maxWindow {
		maxWindow = cfg.MedWindow
	}
	if cfg.ShortWindow > maxWindow {
		maxWindow = cfg.ShortWindow
	}
	if cfg.BidAskWindow > maxWindow {
		maxWindow = cfg.BidAskWindow
	}
	return &MultiFactorSlippage{
		cfg:         cfg,
		maxLookback: maxWindow + 5,
		buffers:     make(map[string]*tickerBuffer),
		rng:         rng,
	}
}

// OnInterval folds newly closed bars into this ticker's rolling buffer.
func (m *MultiFactorSlippage) OnInterval(histories map[bars.Key]bars.History) {
	for key, newBars := range histories {
		buf, ok := m.buffers[key.Ticker]
		if !ok {
			buf = &tickerBuffer{}
			m.buffers[key.Ticker] = buf
		}
		for _, b := range newBars {
			buf.push(b, m.maxLookback)
		}
	}
}

// CalculateSlippage returns a fractional price adjustment in [0, 0.05].
// quantity is the order's trade size used for the participation-rate term.
// timestamp is unused: the rolling buffer already reflects the state as of
// the most recent OnInterval call, which the caller drives in lockstep with
// the event loop's own clock.
func (m *MultiFactorSlippage) CalculateSlippage(ticker string, _ time.Time, quantity float64, _ events.Direction) float64 {
	buf, ok := m.buffers[ticker]
	if !ok || len(buf.closes) < m.cfg.ShortWindow {
		return 0
	}

	n := len(buf.closes)
	volume := buf.volumes[n-1]

	volMed := annualizedStd(buf.returns, m.cfg.MedWindow, m.cfg.PeriodsInYear)
	volMAMed := mean(tail(buf.volumes, m.cfg.MedWindow))
	volRatioMed := 1e-8
	if volMAMed > 0 {
		volRatioMed = volume / volMAMed
	}
	if volRatioMed < 1e-8 {
		volRatioMed = 1e-8
	}

	volMALong := mean(tail(buf.volumes, m.cfg.LongWindow))
	volRatioLong := 0.0
	if volMALong > 0 {
		volRatioLong = volume / volMALong
	}

	turnover := make([]float64, n)
	for i := range turnover {
		turnover[i] = buf.volumes[i] * buf.closes[i]
	}
	turnoverVol := coefficientOfVariation(tail(turnover, m.cfg.MedWindow))

	priceAcceleration := 0.0
	if n >= 2 {
		priceAcceleration = buf.returns[n-1] - buf.returns[n-2]
	}

	spreadCost := 0.0
	if n >= m.cfg.BidAskWindow && m.cfg.BidAskWindow > 0 {
		spreadCost = highLowSpreadProxy(tail(buf.highs, m.cfg.BidAskWindow), tail(buf.lows, m.cfg.BidAskWindow), tail(buf.closes, m.cfg.BidAskWindow)) / 2
	}

	volSurge := volRatioLong
	if volSurge > m.cfg.UpperLimVolSurge {
		volSurge = m.cfg.UpperLimVolSurge
	}
	volatilityCost := volMed * math.Exp(volSurge-1) * m.cfg.VolatilityCostFactor

	momentumCost := m.cfg.MomentumCostFactor * math.Abs(buf.returns[n-1]) * sign(priceAcceleration)

	amihudIlliq := 1e-8
	if denom := volume * buf.closes[n-1]; denom != 0 {
		amihudIlliq = math.Abs(buf.returns[n-1]) / math.Abs(denom)
	}
	if amihudIlliq < 1e-8 {
		amihudIlliq = 1e-8
	}
	liquidityCost := m.cfg.LiquidityCostFactor * math.Pow(amihudIlliq, m.cfg.LiquidityCostExponent)

	participationRate := 0.0
	if volume > 0 {
		participationRate = quantity / volume
	}
	marketImpact := m.cfg.MarketImpactFactor *
		math.Pow(participationRate/volRatioMed, m.cfg.PowerLawExponent) *
		volMed * math.Exp(-turnoverVol)

	noise := m.noise()

	total := spreadCost + marketImpact*(1+volatilityCost) + momentumCost*liquidityCost + noise
	return clip(total, 0, 0.05)
}

func (m *MultiFactorSlippage) noise() float64 {
	if m.cfg.RandomNoise == 0 {
		return 0
	}
	if m.rng != nil {
		return m.rng.NormFloat64() * m.cfg.RandomNoise
	}
	return rand.NormFloat64() * m.cfg.RandomNoise
}

func tail(v []float64, n int) []float64 {
	if n <= 0 || n >= len(v) {
		return v
	}
	return v[len(v)-n:]
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func stddev(v []float64) float64 {
	if len(v) < 2 {
		return 0
	}
	m := mean(v)
	sum := 0.0
	for _, x := range v {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(v)-1))
}

func annualizedStd(returns []float64, window int, periodsInYear float64) float64 {
	return stddev(tail(returns, window)) * math.Sqrt(periodsInYear)
}

func coefficientOfVariation(v []float64) float64 {
	m := mean(v)
	if m == 0 {
		return 0
	}
	return stddev(v) / m
}

// highLowSpreadProxy approximates the Edge bid-ask spread estimator with a
// simpler high-low range proxy averaged over the window: no Go port of the
// Edge estimator exists in the example corpus, and stdlib math is the only
// library that can plausibly fill this gap (see DESIGN.md).
func highLowSpreadProxy(highs, lows, closes []float64) float64 {
	if len(highs) == 0 {
		return 0
	}
	sum := 0.0
	for i := range highs {
		if closes[i] == 0 {
			continue
		}
		sum += (highs[i] - lows[i]) / closes[i]
	}
	return sum / float64(len(highs))
}

func sign(f float64) float64 {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	default:
		return 0
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
