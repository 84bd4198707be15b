package bars

import (
	"testing"
	"time"
)

type recordingSubscriber struct {
	calls int
	last  map[Key]History
}

func (r *recordingSubscriber) OnInterval(histories map[Key]History) {
	r.calls++
	r.last = histories
}

func TestAggregatesBaseBarsIntoCoarserInterval(t *testing.T) {
	base := time.Minute
	m := NewManager(base)
	sub := &recordingSubscriber{}
	if err := m.Subscribe(5*time.Minute, "BTC-USD", sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		bar := Bar{
			Index:  start.Add(time.Duration(i) * base),
			Open:   100 + float64(i),
			High:   101 + float64(i),
			Low:    99 + float64(i),
			Close:  100 + float64(i),
			Volume: 10,
		}
		m.OnHeartbeat(map[string]Bar{"BTC-USD": bar})
	}

	if sub.calls != 1 {
		t.Fatalf("expected exactly 1 dispatch after 5 base bars into a 5m bucket, got %d", sub.calls)
	}
	hist, ok := sub.last[Key{Ticker: "BTC-USD", Interval: 5 * time.Minute}]
	if !ok || len(hist) != 1 {
		t.Fatalf("expected one closed bar, got %+v", sub.last)
	}
	closed := hist[0]
	if closed.Open != 100 || closed.Close != 104 || closed.High != 105 || closed.Low != 99 || closed.Volume != 50 {
		t.Fatalf("unexpected aggregated bar: %+v", closed)
	}
}

func TestSubscribeRejectsNonMultipleInterval(t *testing.T) {
	m := NewManager(time.Minute)
	if err := m.Subscribe(90*time.Second, "BTC-USD", &recordingSubscriber{}); err == nil {
		t.Fatal("expected error for non-multiple interval")
	}
}

func TestDispatchOncePerSubscriberAcrossMultipleTickers(t *testing.T) {
	base := time.Minute
	m := NewManager(base)
	sub := &recordingSubscriber{}
	if err := m.Subscribe(2*time.Minute, "AAA", sub); err != nil {
		t.Fatal(err)
	}
	if err := m.Subscribe(2*time.Minute, "BBB", sub); err != nil {
		t.Fatal(err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bar := func(i int) Bar {
		return Bar{Index: start.Add(time.Duration(i) * base), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1}
	}
	m.OnHeartbeat(map[string]Bar{"AAA": bar(0), "BBB": bar(0)})
	m.OnHeartbeat(map[string]Bar{"AAA": bar(1), "BBB": bar(1)})

	if sub.calls != 1 {
		t.Fatalf("subscriber registered for two tickers closing on the same heartbeat must be notified once, got %d calls", sub.calls)
	}
	if len(sub.last) != 2 {
		t.Fatalf("expected closed bars for both tickers in the single dispatch, got %d keys", len(sub.last))
	}
}

func TestSkipsTickerMissingFromThisHeartbeat(t *testing.T) {
	base := time.Minute
	m := NewManager(base)
	sub := &recordingSubscriber{}
	if err := m.Subscribe(2*time.Minute, "AAA", sub); err != nil {
		t.Fatal(err)
	}
	m.OnHeartbeat(map[string]Bar{}) // no bar at all this tick
	if sub.calls != 0 {
		t.Fatalf("expected no dispatch when data source has no bar, got %d", sub.calls)
	}
}
