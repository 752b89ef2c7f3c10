// Package http serves the service's health, readiness, metrics and latest run
// summary endpoints.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

// RunSource exposes the most recent completed run, or nil before the first one.
type RunSource interface {
	LastRun() *domain.Run
}

// Server exposes health, readiness, metrics and run summary HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and
// /runs/latest routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, runs RunSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /runs/latest", handleLatestRun(runs))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// RunSummary is the JSON body of /runs/latest.
type RunSummary struct {
	ID             string       `json:"id"`
	GeneratedAt    time.Time    `json:"generated_at"`
	Years          []int        `json:"years"`
	Rows           int          `json:"rows"`
	Stations       int          `json:"stations"`
	ColumnsDropped int          `json:"columns_dropped"`
	BelowMinimum   bool         `json:"below_minimum"`
	Threshold      float64      `json:"threshold"`
	Ranking        *RankSummary `json:"ranking,omitempty"`
}

// RankSummary lists the least and most exceeding stations of the ranked year.
type RankSummary struct {
	Year  int         `json:"year"`
	Least []RankEntry `json:"least"`
	Most  []RankEntry `json:"most"`
}

type RankEntry struct {
	City     string `json:"city"`
	Station  string `json:"station"`
	Exceeded int    `json:"exceeded"`
	Observed int    `json:"observed"`
}

func handleLatestRun(runs RunSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		var run *domain.Run
		if runs != nil {
			run = runs.LastRun()
		}
		if run == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no completed run"})
			return
		}
		writeJSON(w, http.StatusOK, summarize(run))
	}
}

func summarize(run *domain.Run) RunSummary {
	out := RunSummary{
		ID:             run.ID,
		GeneratedAt:    run.GeneratedAt,
		Years:          run.Years,
		Rows:           run.Merge.Rows,
		Stations:       run.Merge.Stations,
		ColumnsDropped: run.Merge.DroppedCount(),
		BelowMinimum:   run.Merge.BelowThreshold,
	}
	if ex := run.Report.Exceedances; ex != nil {
		out.Threshold = ex.Threshold
	}
	if rank := run.Report.Ranking; !rank.Empty() {
		out.Ranking = &RankSummary{
			Year:  rank.Year,
			Least: rankEntries(rank.Least),
			Most:  rankEntries(rank.Most),
		}
	}
	return out
}

func rankEntries(in []domain.RankEntry) []RankEntry {
	out := make([]RankEntry, len(in))
	for i, e := range in {
		out[i] = RankEntry{City: e.Station.City, Station: e.Station.Station, Exceeded: e.Exceeded, Observed: e.Observed}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
