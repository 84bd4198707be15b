// Package strategy implements the signal-generating strategies (C3).
//
// Grounded on original_source/src/backtester/strategies/strategy.py and its
// two concrete subclasses.
package strategy

import (
	"github.com/ngmysamuel/gobacktester/internal/bars"
	"github.com/ngmysamuel/gobacktester/internal/events"
)

// Strategy turns newly closed bars into zero or more Signals.
type Strategy interface {
	OnInterval(histories map[bars.Key]bars.History) []events.Signal
}
