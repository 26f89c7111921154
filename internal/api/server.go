// Package api exposes the report-generation pipeline over HTTP: spreadsheet
// and paginated-document downloads plus the discussion-summary stream.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/AitchEm-bot/audit-reports/internal/common"
	"github.com/AitchEm-bot/audit-reports/internal/report"
)

// Collector resolves filter criteria into enriched findings.
type Collector interface {
	Collect(ctx context.Context, filter report.Filter) ([]report.EnrichedFinding, error)
}

// Narrator produces the narrative artifacts attached to a report.
type Narrator interface {
	ExecutiveSummary(ctx context.Context, findings []report.EnrichedFinding) string
	GeneratePlans(ctx context.Context, findings []report.EnrichedFinding) map[string]string
	ClosingSummary(ctx context.Context, findingID string) (string, int, error)
	ClosingSummaryStream(ctx context.Context, findingID string) (<-chan string, <-chan error, int, error)
}

// Server drives a report request through authentication, aggregation,
// narrative generation, and rendering.
type Server struct {
	router    chi.Router
	collector Collector
	narrator  Narrator
}

// NewServer wires the pipeline stages behind the HTTP routes.
func NewServer(collector Collector, narrator Narrator) (*Server, error) {
	if collector == nil {
		return nil, fmt.Errorf("api: collector required")
	}
	if narrator == nil {
		return nil, fmt.Errorf("api: narrator required")
	}
	srv := &Server{
		router:    chi.NewRouter(),
		collector: collector,
		narrator:  narrator,
	}
	srv.routes()
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Group(func(r chi.Router) {
		r.Use(requireIdentity)
		r.Post("/v1/reports/spreadsheet", s.handleSpreadsheet)
		r.Post("/v1/reports/document", s.handleDocument)
		r.Get("/v1/findings/{id}/summary", s.handleClosingSummary)
		r.Get("/v1/logs", s.handleLogs)
	})
}

// requireIdentity is the pipeline's entry gate. Session verification itself
// lives in the fronting auth layer, which forwards the verified caller in
// X-Auth-User; a request arriving without one is rejected outright.
func requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := r.Header.Get("X-Auth-User")
		if identity == "" {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("verified caller identity required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": common.LogEntries()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
