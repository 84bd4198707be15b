// Package execution implements the simulated execution handler (C6): a FIFO
// order queue filled against the next bar's open (MKT, with slippage) or the
// current bar's close (MOC), with IB-style commission.
//
// Grounded on
// original_source/src/backtester/execution/simulated_execution_handler.py,
// preserving its two queue-processing quirks exactly: a future-dated order
// halts the entire pass (requeue to front, stop), while an MOC order seen
// before market close is requeued to the tail and processing continues.
package execution

import (
	"fmt"
	"math"

	"github.com/ngmysamuel/gobacktester/internal/bars"
	"github.com/ngmysamuel/gobacktester/internal/events"
	"github.com/ngmysamuel/gobacktester/internal/slippage"
)

// Handler simulates fills against a data source's latest bars.
type Handler struct {
	slip     slippage.Model
	out      *events.Channel
	queue    []events.Order
	everSeen map[string]struct{} // tickers that have had at least one bar this run
}

// New creates a Handler.
func New(slip slippage.Model, out *events.Channel) *Handler {
	return &Handler{slip: slip, out: out, everSeen: make(map[string]struct{})}
}

// OnOrder enqueues an order for later fill.
func (h *Handler) OnOrder(order events.Order) {
	h.queue = append(h.queue, order)
}

// OnMarket drains the queue against this heartbeat's base-interval bars, one
// pass. marketClose marks whether this heartbeat closes the trading day,
// enabling MOC fills. Returns an error if a queued order's ticker has no
// bar at all in this run (not merely "not yet this tick"), matching the
// original's fail-loud behavior instead of silently stalling the queue.
func (h *Handler) OnMarket(baseBars map[string]bars.Bar, marketClose bool) error {
	for ticker := range baseBars {
		h.everSeen[ticker] = struct{}{}
	}

	pending := len(h.queue)
	for checked := 0; checked < pending; checked++ {
		order := h.queue[0]
		h.queue = h.queue[1:]

		bar, ok := baseBars[order.Ticker]
		if !ok {
			if _, tracked := h.everSeen[order.Ticker]; !tracked {
				return fmt.Errorf("execution: no data for %s", order.Ticker)
			}
			h.queue = append([]events.Order{order}, h.queue...)
			return nil
		}

		if !order.Timestamp.Before(bar.Index) {
			// Order placed at or after this bar's time: wait for the next
			// heartbeat. Stops the whole pass, not just this order, matching
			// the source's deque.appendleft-then-return behavior.
			h.queue = append([]events.Order{order}, h.queue...)
			return nil
		}

		var unitCost, fillCost, slip float64
		switch {
		case order.Type == events.MOC && marketClose:
			unitCost = bar.Close
			fillCost = order.Quantity * unitCost
		case order.Type == events.MKT:
			slip = h.slip.CalculateSlippage(order.Ticker, bar.Index, order.Quantity, order.Direction)
			if order.Direction == events.Buy {
				unitCost = bar.Open * (1 + slip)
			} else {
				unitCost = bar.Open * (1 - slip)
			}
			fillCost = order.Quantity * unitCost
		default:
			// MOC order seen before the close: wait for the close heartbeat.
			h.queue = append(h.queue, order)
			continue
		}

		commission := ibCommission(order.Quantity, fillCost)
		h.out.Push(events.NewFill(events.Fill{
			Timestamp:  bar.Index,
			Ticker:     order.Ticker,
			Strategy:   order.Strategy,
			Quantity:   order.Quantity,
			Direction:  order.Direction,
			FillCost:   fillCost,
			UnitCost:   unitCost,
			Slippage:   slip,
			Commission: commission,
		}))
	}
	return nil
}

// ibCommission models Interactive Brokers' "US API Directed Orders" tiered
// commission: min(max(1.3, k*quantity), 0.005*fillCost), k=0.013 up to 500
// shares, 0.008 above. Grounded on
// original_source/src/backtester/events/fill_event.py:calculate_ib_commission.
func ibCommission(quantity, fillCost float64) float64 {
	k := 0.013
	if quantity > 500 {
		k = 0.008
	}
	full := math.Max(1.3, k*quantity)
	return math.Min(full, 0.005*fillCost)
}
