package apiserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ngmysamuel/gobacktester/internal/portfolio"
)

type fakeState struct {
	running bool
	current portfolio.Holdings
	curve   []portfolio.EquityPoint
}

func (f fakeState) IsRunning() bool                        { return f.running }
func (f fakeState) Current() portfolio.Holdings             { return f.current }
func (f fakeState) EquityCurve() []portfolio.EquityPoint     { return f.curve }

func newTestServer(t *testing.T, state RunState) *httptest.Server {
	t.Helper()
	s := &Server{state: state, startedAt: time.Now()}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/positions", s.handlePositions)
	mux.HandleFunc("/api/equity", s.handleEquity)
	return httptest.NewServer(mux)
}

func TestHandleHealthReportsOK(t *testing.T) {
	srv := newTestServer(t, fakeState{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["ok"] != true {
		t.Fatalf("ok = %v, want true", body["ok"])
	}
}

func TestHandleStatusReportsRunningAndTotal(t *testing.T) {
	state := fakeState{running: true, current: portfolio.Holdings{Cash: 100, Total: 500}}
	srv := newTestServer(t, state)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["running"] != true {
		t.Fatalf("running = %v, want true", body["running"])
	}
	if body["total"] != 500.0 {
		t.Fatalf("total = %v, want 500", body["total"])
	}
}

func TestHandlePositionsSkipsZeroEntries(t *testing.T) {
	state := fakeState{current: portfolio.Holdings{
		ByTicker: map[string]portfolio.TickerHolding{
			"AAA": {Position: 10, Value: 1000},
			"BBB": {Position: 0, Value: 0},
		},
		Margin: map[string]float64{"AAA": 0},
	}}
	srv := newTestServer(t, state)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/positions")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Positions []map[string]interface{} `json:"positions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Positions) != 1 {
		t.Fatalf("len(positions) = %d, want 1", len(body.Positions))
	}
	if body.Positions[0]["ticker"] != "AAA" {
		t.Fatalf("ticker = %v, want AAA", body.Positions[0]["ticker"])
	}
}

func TestHandleEquityReturnsCurve(t *testing.T) {
	state := fakeState{curve: []portfolio.EquityPoint{{Total: 100, EquityCurve: 1.0}, {Total: 110, EquityCurve: 1.1}}}
	srv := newTestServer(t, state)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/equity")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		EquityCurve []portfolio.EquityPoint `json:"equity_curve"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.EquityCurve) != 2 {
		t.Fatalf("len(equity_curve) = %d, want 2", len(body.EquityCurve))
	}
}
