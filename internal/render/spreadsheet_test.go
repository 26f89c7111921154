package render

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/AitchEm-bot/audit-reports/internal/report"
)

func sampleFindings() []report.EnrichedFinding {
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	creator := &report.Profile{ID: "u1", Name: "Amira Hassan"}
	assignee := &report.Profile{ID: "u2", Name: "Joao Silva"}
	return []report.EnrichedFinding{
		{
			Finding: report.Finding{
				ID: "a", Number: "F-001", Title: "Stale admin accounts",
				Description: "Fourteen dormant administrator accounts remain enabled.",
				Department:  "IT", Priority: report.PriorityCritical, Status: report.StatusOpen,
				CreatorID: "u1", AssigneeID: "u2", CreatedAt: base,
			},
			Creator:  creator,
			Assignee: assignee,
			Comments: []report.EnrichedComment{
				{
					Comment: report.Comment{ID: "c1", FindingID: "a", Kind: report.ActivityComment, Content: "Confirmed with directory export.", AuthorID: "u2", CreatedAt: base},
					Author:  assignee,
				},
			},
		},
		{
			Finding: report.Finding{
				ID: "b", Number: "F-002", Title: "Missing invoice approvals",
				Department: "Finance", Priority: report.PriorityHigh, Status: report.StatusClosed,
				ClosingComment: "Approval workflow enforced in ERP.",
				CreatorID:      "u1", CreatedAt: base.Add(time.Hour),
			},
			Creator: creator,
		},
	}
}

func TestSpreadsheetRoundTrip(t *testing.T) {
	buf, err := Spreadsheet(sampleFindings(), report.Filter{}, report.DefaultOptions())
	if err != nil {
		t.Fatalf("Spreadsheet: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("empty workbook buffer")
	}

	wb, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("workbook is not structurally valid: %v", err)
	}
	defer wb.Close()

	for _, sheet := range []string{findingsSheet, commentsSheet, metricsSheet} {
		if idx, _ := wb.GetSheetIndex(sheet); idx < 0 {
			t.Errorf("missing sheet %q", sheet)
		}
	}

	rows, err := wb.GetRows(findingsSheet)
	if err != nil {
		t.Fatalf("read findings sheet: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("findings sheet rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "Number" || rows[0][1] != "Title" {
		t.Errorf("unexpected header row: %v", rows[0])
	}
	if rows[1][0] != "F-001" || rows[1][6] != "Amira Hassan" || rows[1][7] != "Joao Silva" {
		t.Errorf("unexpected first finding row: %v", rows[1])
	}
	if rows[2][7] != "Unassigned" {
		t.Errorf("unassigned finding should render Unassigned, got %q", rows[2][7])
	}

	commentRows, err := wb.GetRows(commentsSheet)
	if err != nil {
		t.Fatalf("read comments sheet: %v", err)
	}
	if len(commentRows) != 2 {
		t.Fatalf("comments sheet rows = %d, want header + 1", len(commentRows))
	}
	if commentRows[1][0] != "F-001" || commentRows[1][1] != "Joao Silva" {
		t.Errorf("unexpected comment row: %v", commentRows[1])
	}
}

func TestSpreadsheetDefensiveFiltering(t *testing.T) {
	filter := report.Filter{Departments: []string{"IT"}}
	buf, err := Spreadsheet(sampleFindings(), filter, report.DefaultOptions())
	if err != nil {
		t.Fatalf("Spreadsheet: %v", err)
	}
	wb, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer wb.Close()

	rows, err := wb.GetRows(findingsSheet)
	if err != nil {
		t.Fatalf("read findings sheet: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 IT row, got %d rows", len(rows))
	}
	if rows[1][3] != "IT" {
		t.Errorf("non-IT row leaked through defensive filter: %v", rows[1])
	}
}

func TestSpreadsheetOptionalSheetsOmitted(t *testing.T) {
	opts := report.DefaultOptions()
	opts.IncludeComments = false
	opts.IncludeMetrics = false
	buf, err := Spreadsheet(sampleFindings(), report.Filter{}, opts)
	if err != nil {
		t.Fatalf("Spreadsheet: %v", err)
	}
	wb, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer wb.Close()

	if idx, _ := wb.GetSheetIndex(commentsSheet); idx >= 0 {
		t.Error("comments sheet present despite being disabled")
	}
	if idx, _ := wb.GetSheetIndex(metricsSheet); idx >= 0 {
		t.Error("metrics sheet present despite being disabled")
	}
}

func TestSpreadsheetMetricsBreakdown(t *testing.T) {
	buf, err := Spreadsheet(sampleFindings(), report.Filter{}, report.DefaultOptions())
	if err != nil {
		t.Fatalf("Spreadsheet: %v", err)
	}
	wb, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer wb.Close()

	rows, err := wb.GetRows(metricsSheet)
	if err != nil {
		t.Fatalf("read metrics sheet: %v", err)
	}
	if len(rows) == 0 || rows[0][0] != "Total findings" || rows[0][1] != "2" {
		t.Fatalf("unexpected metrics head: %v", rows)
	}
	var sawStatus, sawPriority, sawDepartment bool
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		switch row[0] {
		case "By status":
			sawStatus = true
		case "By priority":
			sawPriority = true
		case "By department":
			sawDepartment = true
		}
	}
	if !sawStatus || !sawPriority || !sawDepartment {
		t.Errorf("metrics sheet missing breakdown sections: status=%v priority=%v department=%v", sawStatus, sawPriority, sawDepartment)
	}
}

func TestFilename(t *testing.T) {
	at := time.Date(2026, 6, 1, 9, 30, 15, 0, time.UTC)
	got := Filename("audit_findings", "xlsx", at)
	if got != "audit_findings_20260601_093015.xlsx" {
		t.Errorf("Filename = %q", got)
	}
}
