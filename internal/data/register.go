package data

import (
	"time"

	"github.com/ngmysamuel/gobacktester/internal/registry"
)

// init wires the CSV handler into the data_handler family. The vendor
// handler is not registered here either; it is built from a Fetcher. The
// live handler is deliberately not registered here: it needs a dialed
// websocket connection and a TickDecoder, neither expressible as a plain
// config value, so cmd/backtester constructs it directly when data_source
// is "live".
func init() {
	registry.DataHandlers.Register("csv_data_handler", func(params map[string]interface{}) (registry.DataSource, error) {
		dir := paramString(params, "data_dir", ".")
		symbols := paramStrings(params, "symbol_list")
		interval := paramDuration(params, "base_interval", time.Minute)
		intervalTag := paramString(params, "interval_tag", "1m")
		start := paramDate(params, "start_date")
		end := paramDate(params, "end_date")
		closing := paramString(params, "exchange_closing_time", "16:00")
		return NewCSVHandler(dir, symbols, interval, intervalTag, start, end, closing)
	})
}

func paramString(params map[string]interface{}, key, def string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return def
}

func paramStrings(params map[string]interface{}, key string) []string {
	raw, ok := params[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func paramDuration(params map[string]interface{}, key string, def time.Duration) time.Duration {
	switch v := params[key].(type) {
	case int:
		return time.Duration(v)
	case int64:
		return time.Duration(v)
	case float64:
		return time.Duration(v)
	default:
		return def
	}
}

var dateLayouts = []string{"2006-01-02", "02-01-2006"}

func paramDate(params map[string]interface{}, key string) time.Time {
	s, ok := params[key].(string)
	if !ok {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
