package strategy

import (
	"github.com/ngmysamuel/gobacktester/internal/bars"
	"github.com/ngmysamuel/gobacktester/internal/events"
)

// MACrossover emits LONG/SHORT signals on a short/long simple-moving-average
// crossover, computed over the long_window+1 most recent bars excluding the
// most recent one (to avoid using the bar that triggered this call as its
// own signal).
//
// Grounded on
// original_source/src/backtester/strategies/moving_average_crossover.py.
type MACrossover struct {
	Name        string
	ShortWindow int
	LongWindow  int
	mgr         *bars.Manager

	positions map[string]int // -1 short, 0 flat, +1 long
}

// NewMACrossover creates a crossover strategy reading full history from mgr.
func NewMACrossover(mgr *bars.Manager, name string, shortWindow, longWindow int) *MACrossover {
	return &MACrossover{
		Name:        name,
		ShortWindow: shortWindow,
		LongWindow:  longWindow,
		mgr:         mgr,
		positions:   make(map[string]int),
	}
}

// OnInterval recomputes the crossover for every ticker with newly closed
// bars this heartbeat, reading the full accumulated history from mgr.
func (s *MACrossover) OnInterval(histories map[bars.Key]bars.History) []events.Signal {
	var signals []events.Signal

	for key, newBars := range histories {
		if len(newBars) == 0 {
			continue
		}
		full, ok := s.mgr.History(key.Ticker, key.Interval)
		if !ok || len(full) < s.LongWindow+1 {
			continue
		}
		timestamp := full[len(full)-1].Index

		data := full.Suffix(s.LongWindow + 1)
		data = data[:len(data)-1] // exclude the most recent bar

		shortSum, longSum := 0.0, 0.0
		for idx := len(data) - 1; idx >= 0; idx-- {
			if len(data)-1-idx < s.ShortWindow {
				shortSum += data[idx].Close
			}
			longSum += data[idx].Close
		}
		shortAvg := shortSum / float64(s.ShortWindow)
		longAvg := longSum / float64(s.LongWindow)

		pos := s.positions[key.Ticker]
		switch {
		case shortAvg < longAvg && pos >= 0:
			signals = append(signals, events.Signal{Timestamp: timestamp, Ticker: key.Ticker, Strategy: s.Name, Kind: events.Short, Strength: 1.0})
			s.positions[key.Ticker] = -1
		case shortAvg > longAvg && pos <= 0:
			signals = append(signals, events.Signal{Timestamp: timestamp, Ticker: key.Ticker, Strategy: s.Name, Kind: events.Long, Strength: 1.0})
			s.positions[key.Ticker] = 1
		}
	}
	return signals
}
