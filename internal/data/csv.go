// Package data implements the data source contracts (C9): CSV replay for
// backtests, a pluggable vendor bulk-fetch adapter, and a live websocket
// feed. Only the emitted Market/Bar contract is in scope; concrete vendor
// and venue integrations are not.
//
// Grounded on
// original_source/src/backtester/data/csv_data_handler.py for the
// reindex/forward-pad/zero-volume contract, realized over time.Time keys
// instead of a pandas DatetimeIndex.
package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ngmysamuel/gobacktester/internal/bars"
	"github.com/ngmysamuel/gobacktester/internal/events"
)

// CSVHandler replays {ticker}_{interval}.csv files on a regular calendar
// between start and end, forward-padding OHLC and zero-filling volume for
// timestamps absent from the source file.
type CSVHandler struct {
	symbols         []string
	interval        time.Duration
	exchangeClosing string // "HH:MM", 24h

	calendar []time.Time
	series   map[string][]bars.Bar // one entry per calendar timestamp, same length as calendar
	cursor   int
	continueFlag bool
}

// NewCSVHandler loads and reindexes each symbol's CSV file under dir.
func NewCSVHandler(dir string, symbols []string, interval time.Duration, intervalTag string, start, end time.Time, exchangeClosingTime string) (*CSVHandler, error) {
	h := &CSVHandler{
		symbols:         symbols,
		interval:        interval,
		exchangeClosing: exchangeClosingTime,
		series:          make(map[string][]bars.Bar),
		continueFlag:    true,
	}

	h.calendar = buildCalendar(start, end, interval)

	for _, sym := range symbols {
		raw, err := readCSVBars(filepath.Join(dir, fmt.Sprintf("%s_%s.csv", sym, intervalTag)))
		if err != nil {
			return nil, fmt.Errorf("data: loading %s: %w", sym, err)
		}
		raw = trimRange(raw, start, end)
		h.series[sym] = reindexForwardPad(raw, h.calendar)
	}

	if len(h.calendar) == 0 {
		h.continueFlag = false
	}
	return h, nil
}

// ContinueBacktest reports whether there is another calendar tick to replay.
func (h *CSVHandler) ContinueBacktest() bool {
	return h.continueFlag
}

// UpdateBars advances the shared calendar cursor by one tick, returning the
// Market event and this tick's bar for every symbol.
func (h *CSVHandler) UpdateBars(_ context.Context) (events.Market, map[string]bars.Bar, error) {
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

func isMarketClose(ts time.Time, interval time.Duration, closingTime string) bool {
	parts := strings.Split(closingTime, ":")
	if len(parts) != 2 {
		return false
	}
	hh, err1 := strconv.Atoi(parts[0])
	mm, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return false
	}
	closeAt := time.Date(ts.Year(), ts.Month(), ts.Day(), hh, mm, 0, 0, ts.Location())
	return !ts.Add(interval).Before(closeAt)
}

func buildCalendar(start, end time.Time, interval time.Duration) []time.Time {
	if interval <= 0 || end.Before(start) {
		return nil
	}
	var cal []time.Time
	for t := start; !t.After(end); t = t.Add(interval) {
		cal = append(cal, t)
	}
	return cal
}

// readCSVBars reads a CSV with a header containing (case-insensitively)
// date|datetime, open, high, low, close, volume columns, in any order.
func readCSVBars(path string) ([]bars.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, err
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	dateCol, ok := col["date"]
	if !ok {
		dateCol, ok = col["datetime"]
	}
	if !ok {
		return nil, fmt.Errorf("data: %s missing date/datetime column", path)
	}

	var out []bars.Bar
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("data: %s: %w", path, err)
		}
		if dateCol >= len(row) {
			return nil, fmt.Errorf("data: %s: row %v missing date/datetime column", path, row)
		}
		idx, err := parseTimestamp(row[dateCol])
		if err != nil {
			continue
		}
		out = append(out, bars.Bar{
			Index:  idx,
			Open:   parseFloatColumn(row, col, "open"),
			High:   parseFloatColumn(row, col, "high"),
			Low:    parseFloatColumn(row, col, "low"),
			Close:  parseFloatColumn(row, col, "close"),
			Volume: parseFloatColumn(row, col, "volume"),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Index.Before(out[j].Index) })
	return out, nil
}

func parseFloatColumn(row []string, col map[string]int, name string) float64 {
	i, ok := col[name]
	if !ok || i >= len(row) {
		return 0
	}
	v, _ := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
	return v
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		} else if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

func trimRange(in []bars.Bar, start, end time.Time) []bars.Bar {
	var out []bars.Bar
	for _, b := range in {
		if b.Index.Before(start) || b.Index.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// reindexForwardPad maps src (sorted ascending) onto calendar, forward-
// padding OHLC from the last known bar and zero-filling volume for
// timestamps with no matching source row.
func reindexForwardPad(src []bars.Bar, calendar []time.Time) []bars.Bar {
	out := make([]bars.Bar, len(calendar))
	bySrc := make(map[time.Time]bars.Bar, len(src))
	for _, b := range src {
		bySrc[b.Index] = b
	}

	var last bars.Bar
	haveLast := false
	for i, ts := range calendar {
		if b, ok := bySrc[ts]; ok {
			out[i] = b
			last, haveLast = b, true
			continue
		}
		if haveLast {
			padded := last
			padded.Index = ts
			padded.Volume = 0
			out[i] = padded
		} else {
			out[i] = bars.Bar{Index: ts}
		}
	}
	return out
}
