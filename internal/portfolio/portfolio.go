// Package portfolio implements the portfolio state machine (C5): cash,
// signed positions, margin for short positions, borrow cost accrual,
// mark-to-market valuation and order generation from strategy signals.
//
// Grounded on original_source/src/backtester/portfolios/naive_portfolio.py,
// with the on_signal position-delta logic generalized per design note
// (rebalance toward target even when already holding a same-direction
// position, rather than only netting out a cross-direction position).
package portfolio

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ngmysamuel/gobacktester/internal/bars"
	"github.com/ngmysamuel/gobacktester/internal/events"
	"github.com/ngmysamuel/gobacktester/internal/metrics"
	"github.com/ngmysamuel/gobacktester/internal/risk"
)

// Sizer returns an order quantity given a risk budget, or ok=false when it
// has nothing to say yet (e.g. ATR not seeded), in which case the portfolio
// falls back to the last quantity it used for that ticker.
type Sizer interface {
	GetPositionSize(riskPerTrade, totalEquity float64, rounding int, ticker string) (float64, bool)
}

// Config holds the portfolio's static parameters.
type Config struct {
	CashBuffer          float64
	InitialCapital      float64
	InitialPositionSize float64
	SymbolList          []string
	Rounding            map[string]int
	Interval            time.Duration
	MetricsInterval     time.Duration
	Allocation          float64
	BorrowCost          float64 // annualized
	MaintenanceMargin   float64
	RiskPerTrade        float64
	StrategyName        string
	AnnualizationFactor float64 // periods/year at Interval, for borrow-rate conversion
}

// Portfolio is the single-strategy portfolio state machine. Driver.Run
// mutates it from the event-loop goroutine while apiserver's HTTP handlers
// read it from request goroutines, so current/historicalHoldings/lastErr
// are guarded by mu.
type Portfolio struct {
	cfg     Config
	sizer   Sizer
	risk    *risk.Manager
	bars    *bars.Manager
	out     *events.Channel

	mu              sync.RWMutex
	dailyBorrowRate float64
	marginHoldings  map[string]float64
	positionDict    map[string]float64
	dailyOpenValue  map[string]float64

	current            Holdings
	historicalHoldings []Holdings
	lastErr            error
}

// New creates a Portfolio. start is the simulated start time used to seed
// the first holdings snapshot's timestamp.
func New(cfg Config, sizer Sizer, riskMgr *risk.Manager, barsMgr *bars.Manager, out *events.Channel, start time.Time) *Portfolio {
	byTicker := make(map[string]TickerHolding, len(cfg.SymbolList))
	positionDict := make(map[string]float64, len(cfg.SymbolList))
	for _, sym := range cfg.SymbolList {
		byTicker[sym] = TickerHolding{}
		positionDict[sym] = cfg.InitialPositionSize
	}

	return &Portfolio{
		cfg:             cfg,
		sizer:           sizer,
		risk:            riskMgr,
		bars:            barsMgr,
		out:             out,
		dailyBorrowRate: cfg.BorrowCost / cfg.AnnualizationFactor,
		marginHoldings:  make(map[string]float64),
		positionDict:    positionDict,
		dailyOpenValue:  make(map[string]float64),
		current: Holdings{
			Timestamp: start,
			Cash:      cfg.InitialCapital,
			Total:     cfg.InitialCapital,
			ByTicker:  byTicker,
			Margin:    make(map[string]float64),
		},
	}
}

// NegativeCashError signals the portfolio's cash balance has gone negative.
type NegativeCashError struct {
	Cash float64
}

func (e *NegativeCashError) Error() string {
	return fmt.Sprintf("portfolio: cash balance went negative: %v", e.Cash)
}

// OnInterval is the bars.Subscriber hook: every heartbeat snapshots
// holdings and marks positions to market, regardless of which bars closed.
// Errors (e.g. negative cash) are recorded and surfaced via LastError,
// since the bars.Subscriber contract has no error return.
func (p *Portfolio) OnInterval(_ map[bars.Key]bars.History) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = p.onMarket()
}

// LastError returns the error (if any) raised by the most recent OnInterval
// call, e.g. a NegativeCashError.
func (p *Portfolio) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

func (p *Portfolio) onMarket() error {
	snapshot := p.current.clone()
	snapshot.Commissions = 0
	snapshot.BorrowCosts = 0
	snapshot.Order = ""
	snapshot.Slippage = ""
	p.current = snapshot
	p.historicalHoldings = append(p.historicalHoldings, p.current.clone())

	for _, ticker := range p.cfg.SymbolList {
		hist, _ := p.bars.History(ticker, p.cfg.Interval)
		last, ok := hist.Last()
		if !ok {
			continue
		}
		th := p.current.ByTicker[ticker]
		initialValue := th.Value
		th.Value = th.Position * last.Close
		p.current.ByTicker[ticker] = th
		p.current.Total += th.Value - initialValue
		p.current.Timestamp = last.Index
	}

	if _, ok := p.dailyOpenValue[p.cfg.StrategyName]; !ok {
		p.dailyOpenValue[p.cfg.StrategyName] = p.current.Total
	}

	if p.current.Cash < 0 {
		return &NegativeCashError{Cash: p.current.Cash}
	}
	return nil
}

// OnSignal sizes, clamps for affordability, risk-checks and (if allowed)
// pushes an Order for the given Signal.
func (p *Portfolio) OnSignal(sig events.Signal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ticker := sig.Ticker
	curQty := p.current.ByTicker[ticker].Position

	target, ok := p.sizer.GetPositionSize(p.cfg.RiskPerTrade, p.current.Total, p.cfg.Rounding[ticker], ticker)
	if !ok {
		target = p.positionDict[ticker]
	}
	p.positionDict[ticker] = target
	target *= sig.Strength

	hist, _ := p.bars.History(ticker, p.cfg.Interval)
	last, ok := hist.Last()
	if !ok {
		return
	}
	estPrice := last.Close
	effCash := p.current.Cash

	var dir events.Direction
	var qty float64
	switch sig.Kind {
	case events.Long:
		if curQty <= 0 {
			if curQty < 0 {
				effCash += p.marginHoldings[ticker]
			}
			dir, qty = events.Buy, target+math.Abs(curQty)
		} else if delta := target - curQty; delta >= 0 {
			dir, qty = events.Buy, delta
		} else {
			dir, qty = events.Sell, -delta
		}
	case events.Short:
		if curQty >= 0 {
			if curQty > 0 {
				effCash += curQty * estPrice
			}
			dir, qty = events.Sell, target+curQty
		} else if delta := target - math.Abs(curQty); delta >= 0 {
			dir, qty = events.Sell, delta
		} else {
			dir, qty = events.Buy, -delta
		}
	case events.Exit:
		if curQty > 0 {
			dir, qty = events.Sell, curQty
		} else if curQty < 0 {
			dir, qty = events.Buy, -curQty
		} else {
			return
		}
	default: // Hold
		return
	}

	if estPrice > 0 {
		var maxAffordable float64
		if dir == events.Buy {
			maxAffordable = math.Floor(effCash * p.cfg.CashBuffer / estPrice)
		} else {
			maxAffordable = (effCash * p.cfg.CashBuffer) / (1 + p.cfg.MaintenanceMargin*estPrice)
		}
		if qty > maxAffordable {
			qty = maxAffordable
		}
	}

	order := events.Order{
		ID:        uuid.NewString(),
		Timestamp: sig.Timestamp,
		Ticker:    ticker,
		Strategy:  sig.Strategy,
		Direction: dir,
		Type:      events.MKT,
		Quantity:  qty,
	}

	metrics.OrdersSubmitted.WithLabelValues(sig.Strategy).Inc()
	if p.risk.IsAllowed(order, p.dailyOpenValue, hist, p.cfg.SymbolList, p.toRiskHoldings(), sig.Timestamp) {
		p.out.Push(events.NewOrder(order))
	} else {
		metrics.OrdersRejected.WithLabelValues(sig.Strategy).Inc()
	}
}

func (p *Portfolio) toRiskHoldings() risk.Holdings {
	byTicker := make(map[string]risk.TickerHolding, len(p.current.ByTicker))
	for k, v := range p.current.ByTicker {
		byTicker[k] = risk.TickerHolding{Position: v.Position, Value: v.Value}
	}
	return risk.Holdings{Total: p.current.Total, ByTicker: byTicker}
}

// OnFill applies a realized Fill to cash, position, margin and commissions.
func (p *Portfolio) OnFill(fill events.Fill) {
	p.mu.Lock()
	defer p.mu.Unlock()
	th := p.current.ByTicker[fill.Ticker]
	initialValue := th.Value

	th.Position += fill.Direction.Sign() * fill.Quantity
	cashDelta := -fill.Direction.Sign()*fill.FillCost - fill.Commission
	p.current.Cash += cashDelta
	p.current.Commissions += fill.Commission

	th.Value = th.Position * fill.UnitCost
	p.current.Total += th.Value - initialValue + cashDelta
	p.current.ByTicker[fill.Ticker] = th

	p.current.Order += fmt.Sprintf("%s %v %s @ %.2f | ", fill.Direction, fill.Quantity, fill.Ticker, fill.UnitCost)
	p.current.Slippage += fmt.Sprintf("%v | ", fill.Slippage)

	if th.Position < 0 {
		marginDiff := p.marginHoldings[fill.Ticker] + th.Value*(1+p.cfg.MaintenanceMargin)
		p.current.Cash += marginDiff
		p.marginHoldings[fill.Ticker] -= marginDiff
	} else {
		p.current.Cash += p.marginHoldings[fill.Ticker]
		p.marginHoldings[fill.Ticker] = 0
	}

	p.current.Margin = cloneMargin(p.marginHoldings)
	metrics.PositionsOpen.WithLabelValues(fill.Ticker).Set(th.Position)
}

func cloneMargin(m map[string]float64) map[string]float64 {
	c := make(map[string]float64, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// EndOfDay recomputes total from scratch, accrues borrow costs and margin on
// short positions, releases margin on flat/long positions, and resets the
// per-strategy daily open value.
func (p *Portfolio) EndOfDay() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current.Total = 0
	for _, ticker := range p.cfg.SymbolList {
		hist, _ := p.bars.History(ticker, p.cfg.Interval)
		last, ok := hist.Last()
		if !ok {
			continue
		}
		th := p.current.ByTicker[ticker]
		th.Value = th.Position * last.Close
		p.current.ByTicker[ticker] = th
		p.current.Total += th.Value

		if th.Position < 0 {
			marginDiff := p.marginHoldings[ticker] + th.Value*(1+p.cfg.MaintenanceMargin)
			p.current.Cash += marginDiff
			p.marginHoldings[ticker] -= marginDiff
			p.current.Total += p.marginHoldings[ticker]

			dailyBorrowCost := math.Abs(th.Value) * p.dailyBorrowRate
			p.current.Cash -= dailyBorrowCost
			p.current.BorrowCosts += dailyBorrowCost
		} else {
			p.current.Cash += p.marginHoldings[ticker]
			p.marginHoldings[ticker] = 0
		}
	}
	p.current.Total += p.current.Cash
	p.dailyOpenValue = make(map[string]float64)
}

// Liquidate closes every position at the latest close and settles margin,
// then appends the liquidated state as the final snapshot in
// historicalHoldings.
func (p *Portfolio) Liquidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	snapshot := p.current.clone()
	snapshot.Timestamp = snapshot.Timestamp.Add(p.cfg.Interval)
	snapshot.Commissions = 0
	snapshot.BorrowCosts = 0
	snapshot.Order = ""
	p.current = snapshot

	for _, ticker := range p.cfg.SymbolList {
		hist, _ := p.bars.History(ticker, p.cfg.Interval)
		last, ok := hist.Last()
		if !ok {
			continue
		}
		th := p.current.ByTicker[ticker]
		if th.Position < 0 {
			p.current.Cash += p.marginHoldings[ticker]
			p.marginHoldings[ticker] = 0
		}
		p.current.Cash += th.Position * last.Close
		th.Position = 0
		th.Value = 0
		p.current.ByTicker[ticker] = th
		p.current.Margin[ticker] = 0
		metrics.PositionsOpen.WithLabelValues(ticker).Set(0)
	}
	p.current.Total = p.current.Cash
	p.historicalHoldings = append(p.historicalHoldings, p.current.clone())
}

// Current returns a snapshot of the live holdings, safe to read concurrently
// with the event loop mutating the portfolio.
func (p *Portfolio) Current() Holdings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.clone()
}

// HistoricalHoldings returns a copy of the recorded snapshot sequence, safe
// to read concurrently with the event loop mutating the portfolio.
func (p *Portfolio) HistoricalHoldings() []Holdings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Holdings, len(p.historicalHoldings))
	copy(out, p.historicalHoldings)
	return out
}
