package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AitchEm-bot/audit-reports/internal/narrative"
	"github.com/AitchEm-bot/audit-reports/internal/report"
)

type fakeCollector struct {
	findings []report.EnrichedFinding
	err      error
	filter   report.Filter
}

func (f *fakeCollector) Collect(ctx context.Context, filter report.Filter) ([]report.EnrichedFinding, error) {
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.findings, nil
}

type fakeNarrator struct {
	summary      string
	plans        map[string]string
	closing      string
	commentCount int
	closingErr   error
	chunks       []string

	summaryCalls int
	planCalls    int
}

func (f *fakeNarrator) ExecutiveSummary(ctx context.Context, findings []report.EnrichedFinding) string {
	f.summaryCalls++
	return f.summary
}

func (f *fakeNarrator) GeneratePlans(ctx context.Context, findings []report.EnrichedFinding) map[string]string {
	f.planCalls++
	return f.plans
}

func (f *fakeNarrator) ClosingSummary(ctx context.Context, findingID string) (string, int, error) {
	if f.closingErr != nil {
		return "", f.commentCount, f.closingErr
	}
	return f.closing, f.commentCount, nil
}

func (f *fakeNarrator) ClosingSummaryStream(ctx context.Context, findingID string) (<-chan string, <-chan error, int, error) {
	if f.closingErr != nil {
		return nil, nil, f.commentCount, f.closingErr
	}
	chunks := make(chan string, len(f.chunks))
	errc := make(chan error, 1)
	for _, c := range f.chunks {
		chunks <- c
	}
	close(chunks)
	close(errc)
	return chunks, errc, f.commentCount, nil
}

func testFindings() []report.EnrichedFinding {
	return []report.EnrichedFinding{
		{Finding: report.Finding{
			ID: "a", Number: "F-001", Title: "Stale accounts", Department: "IT",
			Priority: report.PriorityHigh, Status: report.StatusOpen,
			CreatorID: "u1", CreatedAt: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC),
		}},
	}
}

func newTestServer(t *testing.T, collector Collector, narrator Narrator) *Server {
	t.Helper()
	srv, err := NewServer(collector, narrator)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func authedRequest(method, target string, body []byte) *http.Request {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("X-Auth-User", "auditor@example.com")
	return req
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	srv := newTestServer(t, &fakeCollector{findings: testFindings()}, &fakeNarrator{})
	req := httptest.NewRequest(http.MethodPost, "/v1/reports/spreadsheet", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestSpreadsheetDownload(t *testing.T) {
	collector := &fakeCollector{findings: testFindings()}
	srv := newTestServer(t, collector, &fakeNarrator{})

	body, _ := json.Marshal(map[string]interface{}{
		"filters": map[string]interface{}{"statuses": []string{"open"}, "departments": []string{"IT"}},
	})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, authedRequest(http.MethodPost, "/v1/reports/spreadsheet", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != spreadsheetMIME {
		t.Errorf("content type = %q", ct)
	}
	disposition := rec.Header().Get("Content-Disposition")
	if !strings.HasPrefix(disposition, `attachment; filename="audit_findings_`) || !strings.HasSuffix(disposition, `.xlsx"`) {
		t.Errorf("content disposition = %q", disposition)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty spreadsheet body")
	}
	if len(collector.filter.Statuses) != 1 || collector.filter.Statuses[0] != "open" {
		t.Errorf("filter not forwarded: %+v", collector.filter)
	}
}

func TestDocumentDownloadDrivesNarrative(t *testing.T) {
	narrator := &fakeNarrator{summary: "All quiet.", plans: map[string]string{"a": "Plan."}}
	srv := newTestServer(t, &fakeCollector{findings: testFindings()}, narrator)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, authedRequest(http.MethodPost, "/v1/reports/document", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != documentMIME {
		t.Errorf("content type = %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Error("response is not a PDF")
	}
	if narrator.summaryCalls != 1 || narrator.planCalls != 1 {
		t.Errorf("narrative stages: summary=%d plans=%d, want 1 each", narrator.summaryCalls, narrator.planCalls)
	}
}

func TestDocumentNarrativeSkippedWhenDisabled(t *testing.T) {
	narrator := &fakeNarrator{}
	srv := newTestServer(t, &fakeCollector{findings: testFindings()}, narrator)

	body, _ := json.Marshal(map[string]interface{}{
		"options": map[string]interface{}{"include_summary": false, "include_plans": false},
	})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, authedRequest(http.MethodPost, "/v1/reports/document", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if narrator.summaryCalls != 0 || narrator.planCalls != 0 {
		t.Errorf("narrative invoked despite being disabled: summary=%d plans=%d", narrator.summaryCalls, narrator.planCalls)
	}
}

func TestAggregationErrorsStayDistinct(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"empty store", report.ErrEmptyStore},
		{"no matching data", report.ErrNoMatchingData},
	}
	var messages []string
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeCollector{err: tc.err}, &fakeNarrator{})
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, authedRequest(http.MethodPost, "/v1/reports/spreadsheet", nil))
			if rec.Code != http.StatusNotFound {
				t.Fatalf("status = %d, want 404", rec.Code)
			}
			var payload map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode error payload: %v", err)
			}
			messages = append(messages, payload["error"])
		})
	}
	if len(messages) == 2 && messages[0] == messages[1] {
		t.Errorf("empty-store and no-match errors share a message: %q", messages[0])
	}
}

func TestInvalidDateRangeRejected(t *testing.T) {
	srv := newTestServer(t, &fakeCollector{findings: testFindings()}, &fakeNarrator{})
	body, _ := json.Marshal(map[string]interface{}{
		"filters": map[string]interface{}{
			"from": "2026-06-01T00:00:00Z",
			"to":   "2026-01-01T00:00:00Z",
		},
	})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, authedRequest(http.MethodPost, "/v1/reports/spreadsheet", body))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestClosingSummaryJSON(t *testing.T) {
	narrator := &fakeNarrator{closing: "The thread concluded cleanly.", commentCount: 4}
	srv := newTestServer(t, &fakeCollector{}, narrator)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, authedRequest(http.MethodGet, "/v1/findings/f1/summary", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var payload summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Summary != "The thread concluded cleanly." || payload.CommentCount != 4 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestClosingSummaryNoHistory(t *testing.T) {
	narrator := &fakeNarrator{closingErr: narrative.ErrNoDiscussionHistory}
	srv := newTestServer(t, &fakeCollector{}, narrator)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, authedRequest(http.MethodGet, "/v1/findings/f1/summary", nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestClosingSummaryNarrativeFailureCarriesFallback(t *testing.T) {
	narrator := &fakeNarrator{closingErr: narrative.ErrTimeout, commentCount: 3}
	srv := newTestServer(t, &fakeCollector{}, narrator)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, authedRequest(http.MethodGet, "/v1/findings/f1/summary", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var payload summaryFailure
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Fallback == "" {
		t.Error("structured failure missing usable fallback string")
	}
	if payload.CommentCount != 3 {
		t.Errorf("comment count = %d, want 3", payload.CommentCount)
	}
}

func TestClosingSummaryStreaming(t *testing.T) {
	narrator := &fakeNarrator{chunks: []string{"The team ", "closed the finding."}, commentCount: 2}
	srv := newTestServer(t, &fakeCollector{}, narrator)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, authedRequest(http.MethodGet, "/v1/findings/f1/summary?stream=true", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("X-Comment-Count"); got != "2" {
		t.Errorf("X-Comment-Count = %q", got)
	}
	if rec.Body.String() != "The team closed the finding." {
		t.Errorf("streamed body = %q", rec.Body.String())
	}
}

func TestClosingSummaryStreamingEmptyOutput(t *testing.T) {
	narrator := &fakeNarrator{chunks: nil, commentCount: 1}
	srv := newTestServer(t, &fakeCollector{}, narrator)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, authedRequest(http.MethodGet, "/v1/findings/f1/summary?stream=true", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	if got := rec.Header().Get("X-Comment-Count"); got != "1" {
		t.Errorf("X-Comment-Count = %q", got)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rec.Body.String())
	}
}

func TestLogsEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeCollector{}, &fakeNarrator{})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, authedRequest(http.MethodGet, "/v1/logs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := payload["entries"]; !ok {
		t.Error("logs payload missing entries key")
	}
}
