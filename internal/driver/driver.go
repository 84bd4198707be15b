// Package driver implements the event-driven run loop (C8): pull bars,
// drain the event channel to empty, dispatch to components, run end-of-day
// hooks, and finally assemble the equity curve.
//
// Go realization of the teacher's internal/app/app.go Run(ctx) select{}
// loop, generalized to a single-threaded, channel-draining cooperative
// loop per the source pseudocode in
// original_source/src/backtester/backtester.py (bar_manager/on_market/
// on_signal/on_order/on_fill dispatch).
package driver

import (
	"context"
	"errors"

	"github.com/ngmysamuel/gobacktester/internal/bars"
	"github.com/ngmysamuel/gobacktester/internal/events"
	"github.com/ngmysamuel/gobacktester/internal/logging"
	"github.com/ngmysamuel/gobacktester/internal/metrics"
	"github.com/ngmysamuel/gobacktester/internal/portfolio"
)

// DataSource produces the base-interval Market heartbeat. UpdateBars
// returns the Market event to push and the base-interval bar observed this
// tick for every ticker that had one (possibly a subset of the symbol
// list, e.g. illiquid tickers with no trade this tick).
type DataSource interface {
	ContinueBacktest() bool
	UpdateBars(ctx context.Context) (events.Market, map[string]bars.Bar, error)
}

// ExecutionHandler is the subset of execution.Handler the driver calls.
type ExecutionHandler interface {
	OnOrder(order events.Order)
	OnMarket(baseBars map[string]bars.Bar, marketClose bool) error
}

// Strategy is a signal-generating component, already wired to bars.Manager
// by the caller (e.g. via an Adapter so it also satisfies bars.Subscriber).
type Strategy interface {
	OnInterval(histories map[bars.Key]bars.History) []events.Signal
}

// Adapter wires a Strategy into bars.Manager by pushing its emitted signals
// onto the event channel, satisfying bars.Subscriber.
type Adapter struct {
	Strategy Strategy
	Out      *events.Channel
}

// OnInterval implements bars.Subscriber.
func (a *Adapter) OnInterval(histories map[bars.Key]bars.History) {
	for _, sig := range a.Strategy.OnInterval(histories) {
		a.Out.Push(events.NewSignal(sig))
	}
}

// Driver wires together one run's components and owns the event channel.
type Driver struct {
	DataSource DataSource
	Bars       *bars.Manager
	Channel    *events.Channel
	Execution  ExecutionHandler
	Portfolio  *portfolio.Portfolio
	Benchmark  string // ticker whose signals are ignored, may be empty
	Log        logging.Logger

	// ExceptionContd mirrors backtester_settings.exception_contd: when true
	// a NegativeCashError is logged as a warning and the run continues
	// (tolerant mode); when false (the default) it aborts the run. Any
	// other portfolio error always aborts regardless of this flag.
	ExceptionContd bool

	running bool
}

// New constructs a Driver, defaulting Log to a no-op logger when nil.
func New(ds DataSource, barsMgr *bars.Manager, ch *events.Channel, exec ExecutionHandler, port *portfolio.Portfolio, benchmark string, log logging.Logger) *Driver {
	if log == nil {
		log = logging.Noop{}
	}
	return &Driver{DataSource: ds, Bars: barsMgr, Channel: ch, Execution: exec, Portfolio: port, Benchmark: benchmark, Log: log}
}

// Run drains the event loop until the data source is exhausted and the
// channel is empty, then returns the resampled equity curve.
func (d *Driver) Run(ctx context.Context) ([]portfolio.EquityPoint, error) {
	d.running = true
	defer func() { d.running = false }()

	for d.DataSource.ContinueBacktest() || !d.Channel.IsEmpty() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		market, baseBars, err := d.DataSource.UpdateBars(ctx)
		if err != nil {
			return nil, err
		}
		d.Channel.Push(events.NewMarket(market))

		marketClose := false
		for {
			ev, ok := d.Channel.TryPop()
			if !ok {
				break
			}
			switch ev.Kind {
			case events.KindMarket:
				d.Bars.OnHeartbeat(baseBars)
				if err := d.Execution.OnMarket(baseBars, ev.Market.IsEOD); err != nil {
					d.Log.Warn("execution error, continuing", logging.Err(err))
				}
				marketClose = ev.Market.IsEOD
			case events.KindSignal:
				if ev.Signal.Ticker == d.Benchmark {
					continue
				}
				d.Portfolio.OnSignal(ev.Signal)
			case events.KindOrder:
				d.Execution.OnOrder(ev.Order)
			case events.KindFill:
				d.Portfolio.OnFill(ev.Fill)
				metrics.OrdersFilled.WithLabelValues(ev.Fill.Strategy).Inc()
				metrics.EquityGauge.Set(d.Portfolio.Current().Total)
				metrics.SlippageApplied.Observe(ev.Fill.Slippage)
			}
			if err := d.Portfolio.LastError(); err != nil {
				var negCash *portfolio.NegativeCashError
				if d.ExceptionContd && errors.As(err, &negCash) {
					d.Log.Warn("portfolio error, continuing (exception_contd)", logging.Err(err))
				} else {
					d.Log.Error("portfolio error", logging.Err(err))
					return nil, err
				}
			}
		}

		if marketClose {
			d.Portfolio.EndOfDay()
		}
	}

	d.Portfolio.Liquidate()
	return d.Portfolio.CreateEquityCurve(), nil
}

// IsRunning reports whether Run is currently executing, for the API
// dashboard's status endpoint.
func (d *Driver) IsRunning() bool { return d.running }

// Current exposes the portfolio's latest snapshot to the API dashboard.
func (d *Driver) Current() portfolio.Holdings { return d.Portfolio.Current() }

// EquityCurve exposes the resampled equity curve computed so far. Before
// Run completes this reflects only historicalHoldings accumulated up to
// the last dispatched event, not a finished curve.
func (d *Driver) EquityCurve() []portfolio.EquityPoint { return d.Portfolio.CreateEquityCurve() }
