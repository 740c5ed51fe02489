// Package web provides an HTTP status server for the flight-monitor daemon.
package web

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/sweeney/flight-monitor/internal/flightlog"
	"github.com/sweeney/flight-monitor/internal/metrics"
	"github.com/sweeney/flight-monitor/internal/status"
)

// defaultWindLimit is the number of wind records /flightlog.json returns
// without a limit query.
const defaultWindLimit = 50

// LogReader is the read side of the flight log.
type LogReader interface {
	RecentWind(ctx context.Context, limit int) ([]flightlog.WindRecord, error)
	Events(ctx context.Context, kind string) ([]flightlog.EventRecord, error)
}

// Options configures a Server. FlightLog may be nil.
type Options struct {
	Addr      string
	Tracker   *status.Tracker
	FlightLog LogReader
}

// Server serves the status page, its JSON form, the flight log and
// Prometheus metrics.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	flightLog  LogReader
}

// New creates a Server that reads state from o.Tracker.
func New(o Options) *Server {
	s := &Server{tracker: o.Tracker, flightLog: o.FlightLog}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/flightlog.json", s.handleFlightLog)
	mux.Handle("/metrics", metrics.Handler())

	s.httpServer = &http.Server{
		Addr:              o.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, s.tracker.Snapshot())
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}

type windJSON struct {
	Timestamp time.Time `json:"timestamp"`
	Speed     float64   `json:"speed"`
	Direction float64   `json:"direction"`
	HighWind  bool      `json:"high_wind"`
}

type eventJSON struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
}

type flightLogJSON struct {
	Wind   []windJSON  `json:"wind"`
	Events []eventJSON `json:"events"`
}

// handleFlightLog serves recent wind records (newest first) and the events of
// one kind (oldest first). Query: limit (default 50, at most
// flightlog.MaxReadRows), kind (default WIND_FAILSAFE).
func (s *Server) handleFlightLog(w http.ResponseWriter, r *http.Request) {
	if s.flightLog == nil {
		http.Error(w, "flight log disabled", http.StatusNotFound)
		return
	}

	limit := defaultWindLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, flightlog.MaxReadRows)
	}
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = flightlog.KindWindFailsafe
	}

	ctx := r.Context()
	winds, err := s.flightLog.RecentWind(ctx, limit)
	if err != nil {
		log.Printf("web: flight log: %v", err)
		http.Error(w, "flight log unavailable", http.StatusInternalServerError)
		return
	}
	events, err := s.flightLog.Events(ctx, kind)
	if err != nil {
		log.Printf("web: flight log: %v", err)
		http.Error(w, "flight log unavailable", http.StatusInternalServerError)
		return
	}

	out := flightLogJSON{Wind: []windJSON{}, Events: []eventJSON{}}
	for _, rec := range winds {
		out.Wind = append(out.Wind, windJSON{
			Timestamp: rec.Timestamp,
			Speed:     rec.Speed,
			Direction: rec.Direction,
			HighWind:  rec.HighWind,
		})
	}
	for _, e := range events {
		out.Events = append(out.Events, eventJSON{
			Timestamp: e.Timestamp,
			Kind:      e.Kind,
			Detail:    e.Detail.String,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		log.Printf("web: encode flight log: %v", err)
	}
}
