package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/AitchEm-bot/audit-reports/internal/common"
	"github.com/AitchEm-bot/audit-reports/internal/render"
	"github.com/AitchEm-bot/audit-reports/internal/report"
)

const (
	spreadsheetMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	documentMIME    = "application/pdf"
)

func (s *Server) handleSpreadsheet(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	req, ok := decodeReportRequest(w, r)
	if !ok {
		return
	}
	logger.Info("api: spreadsheet report requested", "criteria", req.Filters.Describe())

	findings, err := s.collector.Collect(r.Context(), req.Filters)
	if err != nil {
		writeAggregationError(w, err)
		return
	}

	buf, err := render.Spreadsheet(findings, req.Filters, req.Options)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	sendAttachment(w, buf.Bytes(), spreadsheetMIME, render.Filename("audit_findings", "xlsx", time.Now()))
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	req, ok := decodeReportRequest(w, r)
	if !ok {
		return
	}
	logger.Info("api: document report requested", "criteria", req.Filters.Describe(), "group_by", req.Options.GroupBy)

	findings, err := s.collector.Collect(r.Context(), req.Filters)
	if err != nil {
		writeAggregationError(w, err)
		return
	}

	var summary string
	var plans map[string]string
	if req.Options.IncludeSummary {
		summary = s.narrator.ExecutiveSummary(r.Context(), findings)
	}
	if req.Options.IncludePlans {
		plans = s.narrator.GeneratePlans(r.Context(), findings)
	}

	generatedAt := time.Now()
	buf, err := render.Document(findings, summary, plans, req.Options, req.Filters, generatedAt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	sendAttachment(w, buf.Bytes(), documentMIME, render.Filename("audit_report", "pdf", generatedAt))
}

func decodeReportRequest(w http.ResponseWriter, r *http.Request) (reportRequest, bool) {
	req := reportRequest{Options: report.DefaultOptions()}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode report request: %w", err))
			return reportRequest{}, false
		}
	}
	if req.Filters.From != nil && req.Filters.To != nil && req.Filters.To.Before(*req.Filters.From) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("date range end precedes start"))
		return reportRequest{}, false
	}
	return req, true
}

// writeAggregationError maps the aggregator's sentinel errors onto distinct
// user-facing responses. "Store is empty" and "filters too narrow" must stay
// distinguishable.
func writeAggregationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, report.ErrEmptyStore):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, report.ErrNoMatchingData):
		writeError(w, http.StatusNotFound, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func sendAttachment(w http.ResponseWriter, payload []byte, mime, filename string) {
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(payload)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}
