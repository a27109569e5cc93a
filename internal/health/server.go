package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tmcallister/crashkit/internal/spool"
)

// ActiveFunc reports whether the owning reporter currently holds the capture
// slot.
type ActiveFunc func() bool

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	store  spool.Store
	limit  int
	active ActiveFunc
	server *http.Server
}

// NewServer creates a diagnostics server over the given spool.
func NewServer(store spool.Store, limit int, active ActiveFunc, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		store:  store,
		limit:  limit,
		active: active,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if report.Status == StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(report)
}

func (s *Server) check(ctx context.Context) Report {
	report := Report{
		Status:     StatusHealthy,
		Active:     s.active != nil && s.active(),
		SpoolLimit: s.limit,
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		report.Status = StatusCritical
		report.SpoolError = err.Error()
		return report
	}
	report.PendingReports = count

	// A spool sitting at its limit means reports are being evicted.
	if s.limit > 0 && count >= s.limit {
		report.Status = StatusDegraded
	}
	return report
}
