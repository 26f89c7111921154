package render

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/AitchEm-bot/audit-reports/internal/common"
	"github.com/AitchEm-bot/audit-reports/internal/report"
)

const documentTitle = "Audit Findings Report"

// Document builds the paginated report artifact in memory. Content flows
// continuously with automatic page breaks; headers, footers, and page
// numbers are stamped in a second pass after the flow completes.
func Document(findings []report.EnrichedFinding, summary string, plans map[string]string, opts report.Options, filter report.Filter, generatedAt time.Time) (*bytes.Buffer, error) {
	logger := common.Logger()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(documentTitle, true)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)

	writeCoverPage(pdf, filter, len(findings), generatedAt)
	writeSummaryPage(pdf, findings, summary, opts)
	writeFindingSections(pdf, findings, plans, opts)

	stamped := stampPages(pdf, generatedAt)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render: serialize document: %w", err)
	}
	logger.Info("render: document complete", "findings", len(findings), "pages_stamped", stamped, "bytes", buf.Len())
	return &buf, nil
}

func writeCoverPage(pdf *gofpdf.Fpdf, filter report.Filter, count int, generatedAt time.Time) {
	pdf.AddPage()
	pdf.SetY(80)
	pdf.SetFont("Helvetica", "B", 26)
	pdf.CellFormat(0, 14, documentTitle, "", 1, "C", false, 0, "")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("%d findings", count), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 8, "Criteria: "+filter.Describe(), "", 1, "C", false, 0, "")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.CellFormat(0, 6, "Generated "+generatedAt.Format("2 January 2006 15:04 MST"), "", 1, "C", false, 0, "")
}

func writeSummaryPage(pdf *gofpdf.Fpdf, findings []report.EnrichedFinding, summary string, opts report.Options) {
	pdf.AddPage()
	writeHeading(pdf, "Executive Summary")

	statusCounts := report.Tally(findings, func(f report.EnrichedFinding) string { return f.Status })
	priorityCounts := report.Tally(findings, func(f report.EnrichedFinding) string { return f.Priority })
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, fmt.Sprintf("Total findings: %d", len(findings)), "", "L", false)
	for _, line := range []struct {
		label string
		tally map[string]int
	}{{"By status", statusCounts}, {"By priority", priorityCounts}} {
		var parts []string
		for _, key := range report.SortedKeys(line.tally) {
			parts = append(parts, fmt.Sprintf("%s %d", key, line.tally[key]))
		}
		pdf.MultiCell(0, 6, line.label+": "+strings.Join(parts, ", "), "", "L", false)
	}
	pdf.Ln(4)

	if opts.IncludeSummary && strings.TrimSpace(summary) != "" {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, strings.TrimSpace(summary), "", "L", false)
	}
}

func writeFindingSections(pdf *gofpdf.Fpdf, findings []report.EnrichedFinding, plans map[string]string, opts report.Options) {
	pdf.AddPage()
	writeHeading(pdf, "Findings")

	groups := report.GroupFindings(findings, opts.GroupBy)
	for _, group := range groups {
		if group.Key != "" {
			pdf.Ln(3)
			pdf.SetFont("Helvetica", "B", 13)
			pdf.CellFormat(0, 8, groupLabel(opts.GroupBy, group.Key), "", 1, "L", false, 0, "")
			pdf.Ln(1)
		}
		for _, f := range group.Findings {
			writeFinding(pdf, f, plans, opts)
		}
	}
}

func writeFinding(pdf *gofpdf.Fpdf, f report.EnrichedFinding, plans map[string]string, opts report.Options) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.MultiCell(0, 7, fmt.Sprintf("%s  %s", f.Number, f.Title), "", "L", false)

	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, fmt.Sprintf("Status: %s    Department: %s    Raised by: %s", f.Status, f.Department, f.CreatorName()), "", "L", false)

	field := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 5, label, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, strings.TrimSpace(value), "", "L", false)
	}

	if opts.IncludeDescription {
		field("Description", f.Description)
	}
	if opts.IncludeRiskLevel {
		field("Risk Level", f.Priority)
	}
	if opts.IncludeManagementResp {
		field("Management Response", f.ClosingComment)
	}
	if opts.IncludeActionPlan {
		field("Action Plan", plans[f.ID])
	}
	if opts.IncludeResponsibleParty {
		field("Responsible Party", f.AssigneeName())
	}
	if opts.IncludeTargetDate && f.DueDate != nil {
		field("Target Date", f.DueDate.Format("2006-01-02"))
	}
	if opts.IncludeComments && len(f.Comments) > 0 {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 5, "Discussion", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		for _, c := range f.Comments {
			if strings.TrimSpace(c.Content) == "" {
				continue
			}
			author := "Unknown"
			if c.Author != nil && c.Author.Name != "" {
				author = c.Author.Name
			}
			pdf.MultiCell(0, 5, fmt.Sprintf("%s (%s): %s", author, c.CreatedAt.Format("2006-01-02"), strings.TrimSpace(c.Content)), "", "L", false)
		}
	}
	pdf.Ln(5)
}

// stampPages is the second pass over the fully flowed document. The page
// count is read exactly once into frozen before the loop: stamping writes
// near the page edges, and iterating a live count while doing so is an
// infinite-loop class of bug. Auto page breaks are disabled for the same
// reason. The cover page is excluded from numbering; the cursor is restored
// after each stamp. Returns the number of pages stamped.
func stampPages(pdf *gofpdf.Fpdf, generatedAt time.Time) int {
	frozen := pdf.PageCount()
	if frozen < 2 {
		return 0
	}
	pdf.SetAutoPageBreak(false, 0)
	defer pdf.SetAutoPageBreak(true, 20)

	_, pageHeight := pdf.GetPageSize()
	stamped := 0
	for page := 2; page <= frozen; page++ {
		pdf.SetPage(page)
		x, y := pdf.GetXY()

		pdf.SetY(8)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 5, documentTitle+"  -  "+generatedAt.Format("2006-01-02"), "", 0, "L", false, 0, "")

		pdf.SetY(pageHeight - 12)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d of %d", page-1, frozen-1), "", 0, "C", false, 0, "")

		pdf.SetTextColor(0, 0, 0)
		pdf.SetXY(x, y)
		stamped++
	}
	return stamped
}

func writeHeading(pdf *gofpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, text, "", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func groupLabel(groupBy, key string) string {
	if key == "" {
		return "Ungrouped"
	}
	switch groupBy {
	case report.GroupPriority:
		return "Priority: " + key
	case report.GroupStatus:
		return "Status: " + key
	case report.GroupDepartment:
		return "Department: " + key
	default:
		return key
	}
}
