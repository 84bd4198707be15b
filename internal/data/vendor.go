package data

import (
	"context"
	"time"

	"github.com/ngmysamuel/gobacktester/internal/bars"
	"github.com/ngmysamuel/gobacktester/internal/events"
)

// Fetcher is a pluggable bulk data source: the concrete vendor (a REST
// client, a local parquet store, whatever) is out of scope, but whatever it
// is must honor this contract.
type Fetcher interface {
	Fetch(ctx context.Context, tickers []string, interval time.Duration, start, end time.Time) (map[string][]bars.Bar, error)
}

// VendorHandler wraps a Fetcher's bulk result behind the same
// reindex/forward-pad replay contract as CSVHandler.
type VendorHandler struct {
	symbols         []string
	interval        time.Duration
	exchangeClosing string

	calendar     []time.Time
	series       map[string][]bars.Bar
	cursor       int
	continueFlag bool
}

// NewVendorHandler fetches once up-front and reindexes onto a regular
// calendar, mirroring CSVHandler's replay semantics.
func NewVendorHandler(ctx context.Context, fetcher Fetcher, symbols []string, interval time.Duration, start, end time.Time, exchangeClosingTime string) (*VendorHandler, error) {
	raw, err := fetcher.Fetch(ctx, symbols, interval, start, end)
	if err != nil {
		return nil, err
	}

	h := &VendorHandler{
		symbols:         symbols,
		interval:        interval,
		exchangeClosing: exchangeClosingTime,
		series:          make(map[string][]bars.Bar),
		continueFlag:    true,
	}
	h.calendar = buildCalendar(start, end, interval)
	for _, sym := range symbols {
		h.series[sym] = reindexForwardPad(trimRange(raw[sym], start, end), h.calendar)
	}
	if len(h.calendar) == 0 {
		h.continueFlag = false
	}
	return h, nil
}

func (h *VendorHandler) ContinueBacktest() bool { return h.continueFlag }

func (h *VendorHandler) UpdateBars(_ context.Context) (events.Market, map[string]bars.Bar, error) {
	if h.cursor >= len(h.calendar) {
		h.continueFlag = false
		return events.Market{}, nil, nil
	}
	ts := h.calendar[h.cursor]
	out := make(map[string]bars.Bar, len(h.symbols))
	for _, sym := range h.symbols {
		out[sym] = h.series[sym][h.cursor]
	}
	h.cursor++
	if h.cursor >= len(h.calendar) {
		h.continueFlag = false
	}
	return events.Market{Timestamp: ts, IsEOD: isMarketClose(ts, h.interval, h.exchangeClosing)}, out, nil
}
