// Package apiserver exposes a minimal JSON dashboard over a run's state:
// /api/health, /api/status, /api/positions, /api/equity.
//
// Grounded on the teacher's internal/api.Server (net.Listen + goroutine
// Serve, Start/Shutdown(ctx), a writeJSON helper, handlers reading from a
// narrow state interface), trimmed to the handful of endpoints a
// backtest/paper run can actually populate — no order book, builder
// leaderboard, or Telegram-report surface exists in this domain.
package apiserver

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/ngmysamuel/gobacktester/internal/portfolio"
)

// RunState exposes the running driver's state to the API layer.
type RunState interface {
	IsRunning() bool
	Current() portfolio.Holdings
	EquityCurve() []portfolio.EquityPoint
}

// Server is a lightweight HTTP API for the backtest/paper dashboard.
type Server struct {
	httpServer *http.Server
	state      RunState
	startedAt  time.Time
}

// NewServer creates a server bound to addr, backed by state.
func NewServer(addr string, state RunState) *Server {
	s := &Server{state: state, startedAt: time.Now()}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/positions", s.handlePositions)
	mux.HandleFunc("/api/equity", s.handleEquity)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving HTTP requests in a background goroutine.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	log.Printf("apiserver listening on %s", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("apiserver: %v", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GET /api/health — liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"ok":       true,
		"uptime_s": time.Since(s.startedAt).Seconds(),
	})
}

// GET /api/status — whether the run is still active, plus the latest
// account-level snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	cur := s.state.Current()
	s.writeJSON(w, map[string]interface{}{
		"running":   s.state.IsRunning(),
		"uptime_s":  time.Since(s.startedAt).Seconds(),
		"timestamp": cur.Timestamp,
		"cash":      cur.Cash,
		"total":     cur.Total,
	})
}

// GET /api/positions — latest per-ticker position and mark-to-market value.
func (s *Server) handlePositions(w http.ResponseWriter, _ *http.Request) {
	cur := s.state.Current()
	type positionEntry struct {
		Ticker   string  `json:"ticker"`
		Position float64 `json:"position"`
		Value    float64 `json:"value"`
		Margin   float64 `json:"margin"`
	}
	entries := make([]positionEntry, 0, len(cur.ByTicker))
	for ticker, h := range cur.ByTicker {
		if h.Position == 0 && h.Value == 0 {
			continue
		}
		entries = append(entries, positionEntry{
			Ticker:   ticker,
			Position: h.Position,
			Value:    h.Value,
			Margin:   cur.Margin[ticker],
		})
	}
	s.writeJSON(w, map[string]interface{}{"positions": entries})
}

// GET /api/equity — the full equity curve computed so far.
func (s *Server) handleEquity(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]interface{}{"equity_curve": s.state.EquityCurve()})
}
