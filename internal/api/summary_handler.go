package api

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/AitchEm-bot/audit-reports/internal/common"
	"github.com/AitchEm-bot/audit-reports/internal/narrative"
)

// handleClosingSummary serves the discussion-summarization path. Unlike the
// report endpoints, a narrative failure here is surfaced as a structured
// failure carrying a usable fallback string, because the caller must still
// show something actionable.
func (s *Server) handleClosingSummary(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	findingID := strings.TrimSpace(chi.URLParam(r, "id"))
	if findingID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("finding id required"))
		return
	}
	stream, _ := strconv.ParseBool(r.URL.Query().Get("stream"))
	logger.Info("api: closing summary requested", "finding", findingID, "stream", stream)

	if stream {
		s.streamClosingSummary(w, r, findingID)
		return
	}

	summary, count, err := s.narrator.ClosingSummary(r.Context(), findingID)
	if err != nil {
		writeSummaryError(w, err, count)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{Summary: summary, CommentCount: count})
}

// streamClosingSummary forwards inference output chunks as they arrive. The
// request context is the teardown signal: a disconnecting caller cancels it,
// which kills the spawned inference process.
func (s *Server) streamClosingSummary(w http.ResponseWriter, r *http.Request, findingID string) {
	logger := common.Logger()
	chunks, errc, count, err := s.narrator.ClosingSummaryStream(r.Context(), findingID)
	if err != nil {
		writeSummaryError(w, err, count)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported by transport"))
		return
	}

	started := false
	streamHeaders := func() {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Comment-Count", strconv.Itoa(count))
		w.WriteHeader(http.StatusOK)
		started = true
	}
	for chunk := range chunks {
		if !started {
			streamHeaders()
		}
		if _, err := io.WriteString(w, chunk); err != nil {
			logger.Debug("api: summary stream consumer gone", "finding", findingID, "error", err)
			return
		}
		flusher.Flush()
	}
	if err := <-errc; err != nil {
		if !started {
			writeSummaryError(w, err, count)
			return
		}
		// Headers are already on the wire; the truncation is all the
		// caller can observe.
		logger.Warn("api: summary stream ended with error", "finding", findingID, "error", err)
		return
	}
	// A model can legitimately emit nothing; the side channel still goes out.
	if !started {
		streamHeaders()
	}
}

func writeSummaryError(w http.ResponseWriter, err error, count int) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, narrative.ErrNoDiscussionHistory):
		writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, narrative.ErrTimeout), errors.Is(err, narrative.ErrUnavailable):
		writeJSON(w, http.StatusBadGateway, summaryFailure{
			Error:        err.Error(),
			Fallback:     narrative.PlaceholderUnavailable,
			CommentCount: count,
		})
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
