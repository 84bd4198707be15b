package data

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ngmysamuel/gobacktester/internal/bars"
	"github.com/ngmysamuel/gobacktester/internal/events"
	"github.com/ngmysamuel/gobacktester/internal/logging"
)

// Tick is one raw trade/quote update the websocket listener decodes.
type Tick struct {
	Ticker string
	Price  float64
	Size   float64
	Time   time.Time
}

// TickDecoder turns a raw websocket frame into a Tick. The concrete wire
// format is venue-specific and out of scope.
type TickDecoder func(raw []byte) (Tick, error)

// LiveHandler aggregates a websocket tick stream into interval bars on a
// background goroutine, and exposes the same DataSource contract as the
// backtest handlers so the driver does not need to know it is live.
//
// Grounded on the teacher's VolumeTracker.Run(ctx) ticker-loop pattern
// (internal/builder/tracker.go), generalized from a periodic REST sync to a
// continuously-aggregating websocket listener, per §5's live-feed
// concurrency model.
type LiveHandler struct {
	conn     *websocket.Conn
	decode   TickDecoder
	interval time.Duration
	symbols  []string
	log      logging.Logger

	mu          sync.Mutex
	latest      map[string]bars.Bar // current partial bar per ticker
	pending     map[string]bars.Bar // last closed bar per ticker, ready to be picked up
	continueRun atomic.Bool
}

// NewLiveHandler dials url; nothing is read from the connection until Run
// starts the listener and the aggregator goroutine that emits closed
// interval bars.
func NewLiveHandler(url string, symbols []string, interval time.Duration, decode TickDecoder, log logging.Logger) (*LiveHandler, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Noop{}
	}

	h := &LiveHandler{
		conn:     conn,
		decode:   decode,
		interval: interval,
		symbols:  symbols,
		log:      log,
		latest:   make(map[string]bars.Bar),
		pending:  make(map[string]bars.Bar),
	}
	h.continueRun.Store(true)
	return h, nil
}

// ContinueBacktest reports whether the feed is still live.
func (h *LiveHandler) ContinueBacktest() bool {
	return h.continueRun.Load()
}

// UpdateBars blocks until the aggregator has produced at least one closed
// bar, then returns it.
func (h *LiveHandler) UpdateBars(ctx context.Context) (events.Market, map[string]bars.Bar, error) {
	for {
		h.mu.Lock()
		if len(h.pending) > 0 {
			out := h.pending
			h.pending = make(map[string]bars.Bar)
			h.mu.Unlock()
			var ts time.Time
			for _, b := range out {
				if b.Index.After(ts) {
					ts = b.Index
				}
			}
			return events.Market{Timestamp: ts}, out, nil
		}
		h.mu.Unlock()

		select {
		case <-ctx.Done():
			return events.Market{}, nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
		if !h.continueRun.Load() {
			return events.Market{}, nil, nil
		}
	}
}

// Run starts the websocket listener and the aggregator goroutine. It
// blocks until ctx is canceled or the connection fails.
func (h *LiveHandler) Run(ctx context.Context) error {
	ticks := make(chan Tick, 256)
	go h.listen(ticks)
	return h.aggregate(ctx, ticks)
}

func (h *LiveHandler) listen(out chan<- Tick) {
	defer close(out)
	for {
		_, raw, err := h.conn.ReadMessage()
		if err != nil {
			h.log.Error("live feed read failed", logging.Err(err))
			h.continueRun.Store(false)
			return
		}
		tick, err := h.decode(raw)
		if err != nil {
			h.log.Warn("live feed decode failed", logging.Err(err))
			continue
		}
		out <- tick
	}
}

func (h *LiveHandler) aggregate(ctx context.Context, ticks <-chan Tick) error {
	for {
		deadline := nextBoundary(time.Now(), h.interval)
		timer := time.NewTimer(time.Until(deadline))

		draining := true
		for draining {
			select {
			case <-ctx.Done():
				timer.Stop()
				h.continueRun.Store(false)
				return ctx.Err()
			case tick, ok := <-ticks:
				if !ok {
					timer.Stop()
					h.continueRun.Store(false)
					return nil
				}
				h.fold(tick)
			case <-timer.C:
				draining = false
			}
		}
		h.closeInterval(deadline)
	}
}

func (h *LiveHandler) fold(tick Tick) {
	h.mu.Lock()
	defer h.mu.Unlock()
	bar, ok := h.latest[tick.Ticker]
	if !ok {
		h.latest[tick.Ticker] = bars.Bar{Index: tick.Time, Open: tick.Price, High: tick.Price, Low: tick.Price, Close: tick.Price, Volume: tick.Size}
		return
	}
	if tick.Price > bar.High {
		bar.High = tick.Price
	}
	if tick.Price < bar.Low {
		bar.Low = tick.Price
	}
	bar.Close = tick.Price
	bar.Volume += tick.Size
	bar.RawVolume += tick.Size
	h.latest[tick.Ticker] = bar
}

func (h *LiveHandler) closeInterval(boundary time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ticker, bar := range h.latest {
		bar.Index = boundary
		h.pending[ticker] = bar
	}
	h.latest = make(map[string]bars.Bar)
}

// nextBoundary returns the next wall-clock instant that is a multiple of
// interval after now, used as a monotonic sleep deadline to avoid drift.
func nextBoundary(now time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		return now
	}
	rem := now.UnixNano() % interval.Nanoseconds()
	return now.Add(interval - time.Duration(rem))
}
