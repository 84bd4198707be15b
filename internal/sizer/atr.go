// Package sizer implements the position sizer (C2): an ATR-based sizer using
// Wilder's smoothing, plus a constant fallback sizer.
//
// Grounded on
// original_source/src/backtester/util/position_sizer/atr_position_sizer.py
// for the Wilder recurrence and the seeding rule, and on no_position_sizer.py
// for the constant fallback.
package sizer

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/ngmysamuel/gobacktester/internal/bars"
)

type atrState struct {
	seedBuf   []bars.Bar
	values    []float64
	seeded    bool
	prevClose float64
}

// ATRSizer computes order quantity from a risk budget and Wilder-smoothed
// Average True Range, one state machine per ticker.
type ATRSizer struct {
	window     int
	multiplier float64
	states     map[string]*atrState
}

// NewATRSizer creates a sizer with the given ATR window and multiplier.
func NewATRSizer(window int, multiplier float64) *ATRSizer {
	return &ATRSizer{
		window:     window,
		multiplier: multiplier,
		states:     make(map[string]*atrState),
	}
}

// OnInterval updates ATR state for every ticker with newly closed bars on
// its subscribed (strategy) interval. histories contains only bars newly
// closed this heartbeat, per bars.Manager's dispatch contract.
func (s *ATRSizer) OnInterval(histories map[bars.Key]bars.History) {
	for key, newBars := range histories {
		st, ok := s.states[key.Ticker]
		if !ok {
			st = &atrState{}
			s.states[key.Ticker] = st
		}
		for _, b := range newBars {
			st.update(b, s.window)
		}
	}
}

func (st *atrState) update(b bars.Bar, window int) {
	if !st.seeded {
		st.seedBuf = append(st.seedBuf, b)
		if len(st.seedBuf) > window+1 {
			st.seedBuf = st.seedBuf[1:]
		}
		if len(st.seedBuf) == window+1 {
			sum := 0.0
			for i := 1; i < len(st.seedBuf); i++ {
				sum += trueRange(st.seedBuf[i], st.seedBuf[i-1].Close)
			}
			atr := sum / float64(window)
			st.values = append(st.values, atr)
			st.seeded = true
			st.prevClose = st.seedBuf[len(st.seedBuf)-1].Close
		}
		return
	}

	tr := trueRange(b, st.prevClose)
	prevATR := st.values[len(st.values)-1]
	atr := (1.0/float64(window))*tr + (1.0-1.0/float64(window))*prevATR
	st.values = append(st.values, atr)
	st.prevClose = b.Close
}

func trueRange(b bars.Bar, prevClose float64) float64 {
	return math.Max(b.High-b.Low, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
}

// lastATR returns the most recently computed ATR value for ticker, if any.
func (s *ATRSizer) lastATR(ticker string) (float64, bool) {
	st, ok := s.states[ticker]
	if !ok || len(st.values) == 0 {
		return 0, false
	}
	return st.values[len(st.values)-1], true
}

// GetPositionSize computes the target order quantity. Returns ok=false if no
// ATR is stored yet or the stored ATR is zero, signaling the caller to fall
// back to its own last-known size.
func (s *ATRSizer) GetPositionSize(riskPerTrade, totalEquity float64, rounding int, ticker string) (float64, bool) {
	atr, ok := s.lastATR(ticker)
	if !ok || atr == 0 {
		return 0, false
	}

	capitalToRisk := riskPerTrade * totalEquity
	raw := capitalToRisk / (atr * s.multiplier)

	if rounding == 0 {
		return math.Floor(raw), true
	}
	return truncateDecimal(raw, rounding), true
}

// truncateDecimal floors raw to `rounding` decimal places without banker's
// rounding. shopspring/decimal avoids the representation drift a naive
// float64*10^rounding shift accumulates for larger `rounding` values (the
// crypto rounding_list>0 case).
func truncateDecimal(raw float64, rounding int) float64 {
	d := decimal.NewFromFloat(raw)
	truncated := d.Truncate(int32(rounding))
	f, _ := truncated.Float64()
	return f
}
