package bars

import "time"

// aggregator accumulates base-interval bars into one (ticker, interval) bar.
// Grounded on original_source/src/backtester/util/bar_aggregator.py.
type aggregator struct {
	key           Key
	baseInterval  time.Duration
	history       History
	partial       *Bar
	intervalStart time.Time
}

func newAggregator(key Key, baseInterval time.Duration) *aggregator {
	return &aggregator{key: key, baseInterval: baseInterval}
}

// onHeartbeat folds the latest base-interval bar into the in-progress
// partial bar and reports the closed bar, if this heartbeat closed one.
func (a *aggregator) onHeartbeat(base Bar) (closed Bar, didClose bool) {
	if a.intervalStart.IsZero() {
		a.intervalStart = base.Index
	}

	if a.partial == nil {
		p := base
		a.partial = &p
	} else {
		if base.High > a.partial.High {
			a.partial.High = base.High
		}
		if base.Low < a.partial.Low {
			a.partial.Low = base.Low
		}
		a.partial.Close = base.Close
		a.partial.Volume += base.Volume
		a.partial.RawVolume = base.RawVolume
	}

	closeAt := a.intervalStart.Add(a.key.Interval - a.baseInterval)
	if base.Index.Before(closeAt) {
		return Bar{}, false
	}

	closed = *a.partial
	a.history.Append(closed)
	a.partial = nil
	a.intervalStart = a.intervalStart.Add(a.key.Interval)
	return closed, true
}
