package strategy

import (
	"github.com/ngmysamuel/gobacktester/internal/bars"
	"github.com/ngmysamuel/gobacktester/internal/events"
)

// BuyAndHold counts OnInterval calls with one counter shared by all tickers
// of this strategy instance; from the daysBeforeBuying-th call on it emits a
// single LONG signal per ticker.
//
// Grounded on
// original_source/src/backtester/strategies/buy_and_hold_simple.py.
type BuyAndHold struct {
	Name             string
	DaysBeforeBuying int

	counter int
	bought  map[string]bool
}

// NewBuyAndHold creates a buy-and-hold strategy.
func NewBuyAndHold(name string, daysBeforeBuying int) *BuyAndHold {
	return &BuyAndHold{
		Name:             name,
		DaysBeforeBuying: daysBeforeBuying,
		bought:           make(map[string]bool),
	}
}

// OnInterval increments the counter once per call and, once the threshold
// is reached, emits one LONG signal per ticker seen in histories, once.
func (s *BuyAndHold) OnInterval(histories map[bars.Key]bars.History) []events.Signal {
	s.counter++
	if s.counter < s.DaysBeforeBuying {
		return nil
	}

	var signals []events.Signal
	for key, hist := range histories {
		if s.bought[key.Ticker] || len(hist) == 0 {
			continue
		}
		last, _ := hist.Last()
		signals = append(signals, events.Signal{
			Timestamp: last.Index,
			Ticker:    key.Ticker,
			Strategy:  s.Name,
			Kind:      events.Long,
			Strength:  1.0,
		})
		s.bought[key.Ticker] = true
	}
	return signals
}
