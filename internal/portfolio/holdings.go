package portfolio

import "time"

// TickerHolding is the polarity-signed position and its mark-to-market value
// for one ticker: positive position is long, negative is short.
type TickerHolding struct {
	Position float64
	Value    float64
}

// Holdings is a full snapshot of portfolio state at one point in time, one
// entry of historicalHoldings once appended.
type Holdings struct {
	Timestamp   time.Time
	Cash        float64
	Total       float64
	Commissions float64
	BorrowCosts float64
	Order       string
	Slippage    string
	ByTicker    map[string]TickerHolding
	Margin      map[string]float64
}

func (h Holdings) clone() Holdings {
	c := h
	c.ByTicker = make(map[string]TickerHolding, len(h.ByTicker))
	for k, v := range h.ByTicker {
		c.ByTicker[k] = v
	}
	c.Margin = make(map[string]float64, len(h.Margin))
	for k, v := range h.Margin {
		c.Margin[k] = v
	}
	return c
}
