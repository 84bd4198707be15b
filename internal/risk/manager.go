// Package risk implements the pre-trade risk manager (C4): an ordered chain
// of checks that vetoes an order on the first one that fails.
//
// Grounded on
// original_source/src/backtester/util/risk_manager/simple_risk_manager.py.
package risk

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/ngmysamuel/gobacktester/internal/bars"
	"github.com/ngmysamuel/gobacktester/internal/events"
)

// Config holds the risk limits. A limit of -1 disables that check.
type Config struct {
	MaxOrderQty        float64
	MaxNotionalValue   float64
	MaxDailyLoss       float64
	MaxGrossExposure   float64
	MaxNetExposure     float64
	ParticipationWindow int
	ParticipationLimit  float64
	RateLimit           int
}

// RateInterval is the sliding window the rate-limit check prunes against.
const RateInterval = 1 * time.Second

// TickerHolding is one ticker's slice of the portfolio snapshot the risk
// manager is evaluated against.
type TickerHolding struct {
	Position float64
	Value    float64
}

// Holdings is the portfolio snapshot passed into IsAllowed.
type Holdings struct {
	Total    float64
	ByTicker map[string]TickerHolding
}

// Manager evaluates orders against Config's limits, in a fixed check order,
// vetoing on the first failure.
type Manager struct {
	cfg            Config
	orderTimestamps []time.Time
}

// New creates a Manager with the given limits.
func New(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// IsAllowed runs every check in order and returns false on the first
// failure. dailyOpenValue is the strategy's portfolio value at the start of
// the trading day; history is the ticker's bar history up to now; now is
// the clock used for the rate-limit check (the backtest's simulated time,
// not wall-clock time, so replays are deterministic).
func (m *Manager) IsAllowed(order events.Order, dailyOpenValue map[string]float64, history bars.History, symbolList []string, holdings Holdings, now time.Time) bool {
	if len(history) == 0 {
		return false
	}

	last, _ := history.Last()
	estimatedPrice := last.Close
	openValue := dailyOpenValue[order.Strategy]

	checks := []func() error{
		func() error { return m.maxOrderQuantityCheck(order) },
		func() error { return m.maxNotionalValueCheck(order, estimatedPrice) },
		func() error { return m.dailyLossLimitCheck(order, holdings, openValue) },
		func() error { return m.grossExposureCheck(order, symbolList, holdings, estimatedPrice) },
		func() error { return m.netExposureCheck(order, symbolList, holdings, estimatedPrice) },
		func() error { return m.participationCheck(order, history) },
		func() error { return m.rateLimitCheck(now) },
	}
	for _, check := range checks {
		if err := check(); err != nil {
			log.Printf("risk: order %s for %s rejected: %v", order.ID, order.Ticker, err)
			return false
		}
	}

	m.orderTimestamps = append(m.orderTimestamps, order.Timestamp)
	return true
}

func (m *Manager) maxOrderQuantityCheck(order events.Order) error {
	if m.cfg.MaxOrderQty != -1 && order.Quantity > m.cfg.MaxOrderQty {
		return fmt.Errorf("max order quantity check failed - %v > %v", order.Quantity, m.cfg.MaxOrderQty)
	}
	return nil
}

func (m *Manager) maxNotionalValueCheck(order events.Order, estimatedPrice float64) error {
	notional := order.Quantity * estimatedPrice
	if m.cfg.MaxNotionalValue != -1 && notional > m.cfg.MaxNotionalValue {
		return fmt.Errorf("max notional value check failed - %v > %v", notional, m.cfg.MaxNotionalValue)
	}
	return nil
}

func (m *Manager) dailyLossLimitCheck(order events.Order, holdings Holdings, openValue float64) error {
	if openValue == 0 {
		return nil
	}
	pnl := (holdings.Total - openValue) / openValue
	netDirection := sign(order.SignedQuantity()) * sign(holdings.ByTicker[order.Ticker].Position)
	if pnl < -m.cfg.MaxDailyLoss && netDirection > 0 {
		return fmt.Errorf("daily loss limit failed - %v < %v and position remains open", pnl, -m.cfg.MaxDailyLoss)
	}
	return nil
}

func (m *Manager) grossExposureCheck(order events.Order, symbolList []string, holdings Holdings, estimatedPrice float64) error {
	gross := 0.0
	for _, ticker := range symbolList {
		if ticker == order.Ticker {
			gross += math.Abs(holdings.ByTicker[ticker].Value + order.SignedQuantity()*estimatedPrice)
		} else {
			gross += math.Abs(holdings.ByTicker[ticker].Value)
		}
	}
	if m.cfg.MaxGrossExposure != -1 && gross > m.cfg.MaxGrossExposure {
		return fmt.Errorf("gross exposure check failed - %v > %v", gross, m.cfg.MaxGrossExposure)
	}
	return nil
}

func (m *Manager) netExposureCheck(order events.Order, symbolList []string, holdings Holdings, estimatedPrice float64) error {
	net := 0.0
	for _, ticker := range symbolList {
		net += holdings.ByTicker[ticker].Value
	}
	estimatedNet := net + order.SignedQuantity()*estimatedPrice
	if m.cfg.MaxNetExposure != -1 && math.Abs(estimatedNet) > m.cfg.MaxNetExposure {
		return fmt.Errorf("net exposure check failed - %v > %v", estimatedNet, m.cfg.MaxNetExposure)
	}
	return nil
}

func (m *Manager) participationCheck(order events.Order, history bars.History) error {
	if m.cfg.ParticipationLimit == -1 || len(history) < m.cfg.ParticipationWindow {
		return nil
	}
	window := history.Suffix(m.cfg.ParticipationWindow)
	total := 0.0
	for _, b := range window {
		total += b.Volume
	}
	avgVolume := total / float64(m.cfg.ParticipationWindow)
	if avgVolume == 0 {
		return fmt.Errorf("participation check failed - zero volume over the past %d periods", m.cfg.ParticipationWindow)
	}
	rate := order.Quantity / avgVolume
	if rate > m.cfg.ParticipationLimit {
		return fmt.Errorf("participation check failed - %v > %v", rate, m.cfg.ParticipationLimit)
	}
	return nil
}

func (m *Manager) rateLimitCheck(now time.Time) error {
	cutoff := now.Add(-RateInterval)
	i := 0
	for i < len(m.orderTimestamps) && m.orderTimestamps[i].Before(cutoff) {
		i++
	}
	m.orderTimestamps = m.orderTimestamps[i:]
	if m.cfg.RateLimit != -1 && len(m.orderTimestamps) > m.cfg.RateLimit {
		return fmt.Errorf("rate limit check failed - %d > %d", len(m.orderTimestamps), m.cfg.RateLimit)
	}
	return nil
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
