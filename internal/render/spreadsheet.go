// Package render serializes enriched findings into the two downloadable
// report artifacts: a multi-sheet workbook and a paginated document.
package render

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/AitchEm-bot/audit-reports/internal/common"
	"github.com/AitchEm-bot/audit-reports/internal/report"
)

const (
	findingsSheet = "Findings"
	commentsSheet = "Comments"
	metricsSheet  = "Metrics"
)

var findingColumns = []struct {
	Title string
	Width float64
}{
	{"Number", 12},
	{"Title", 40},
	{"Description", 60},
	{"Department", 18},
	{"Priority", 12},
	{"Status", 14},
	{"Created By", 22},
	{"Assigned To", 22},
	{"Due Date", 14},
	{"Created At", 18},
	{"Closing Comment", 60},
}

var commentColumns = []struct {
	Title string
	Width float64
}{
	{"Finding", 12},
	{"Author", 22},
	{"Kind", 18},
	{"Content", 70},
	{"Old Value", 16},
	{"New Value", 16},
	{"Date", 18},
}

// Spreadsheet builds the workbook artifact in memory. The filter predicates
// are re-applied defensively so a stale call site cannot leak rows the
// criteria exclude.
func Spreadsheet(findings []report.EnrichedFinding, filter report.Filter, opts report.Options) (*bytes.Buffer, error) {
	logger := common.Logger()
	kept := make([]report.EnrichedFinding, 0, len(findings))
	for _, f := range findings {
		if filter.Matches(f.Finding) {
			kept = append(kept, f)
		}
	}
	if len(kept) < len(findings) {
		logger.Warn("render: filter re-application dropped rows", "dropped", len(findings)-len(kept))
	}

	wb := excelize.NewFile()
	defer wb.Close()
	if err := wb.SetSheetName("Sheet1", findingsSheet); err != nil {
		return nil, fmt.Errorf("render: rename findings sheet: %w", err)
	}
	if err := writeFindingsSheet(wb, kept); err != nil {
		return nil, err
	}
	if opts.IncludeComments {
		if err := writeCommentsSheet(wb, kept); err != nil {
			return nil, err
		}
	}
	if opts.IncludeMetrics {
		if err := writeMetricsSheet(wb, kept); err != nil {
			return nil, err
		}
	}

	buf, err := wb.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render: serialize workbook: %w", err)
	}
	logger.Info("render: workbook complete", "findings", len(kept), "bytes", buf.Len())
	return buf, nil
}

func writeFindingsSheet(wb *excelize.File, findings []report.EnrichedFinding) error {
	for i, col := range findingColumns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("render: column name: %w", err)
		}
		if err := wb.SetColWidth(findingsSheet, name, name, col.Width); err != nil {
			return fmt.Errorf("render: set column width: %w", err)
		}
		if err := setCell(wb, findingsSheet, i+1, 1, col.Title); err != nil {
			return err
		}
	}
	for row, f := range findings {
		due := ""
		if f.DueDate != nil {
			due = f.DueDate.Format("2006-01-02")
		}
		values := []interface{}{
			f.Number,
			f.Title,
			f.Description,
			f.Department,
			f.Priority,
			f.Status,
			f.CreatorName(),
			f.AssigneeName(),
			due,
			f.CreatedAt.Format("2006-01-02 15:04"),
			f.ClosingComment,
		}
		for col, value := range values {
			if err := setCell(wb, findingsSheet, col+1, row+2, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeCommentsSheet(wb *excelize.File, findings []report.EnrichedFinding) error {
	if _, err := wb.NewSheet(commentsSheet); err != nil {
		return fmt.Errorf("render: create comments sheet: %w", err)
	}
	for i, col := range commentColumns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("render: column name: %w", err)
		}
		if err := wb.SetColWidth(commentsSheet, name, name, col.Width); err != nil {
			return fmt.Errorf("render: set column width: %w", err)
		}
		if err := setCell(wb, commentsSheet, i+1, 1, col.Title); err != nil {
			return err
		}
	}
	row := 2
	for _, f := range findings {
		for _, c := range f.Comments {
			author := "Unknown"
			if c.Author != nil && c.Author.Name != "" {
				author = c.Author.Name
			}
			values := []interface{}{
				f.Number,
				author,
				c.Kind,
				c.Content,
				c.OldValue,
				c.NewValue,
				c.CreatedAt.Format("2006-01-02 15:04"),
			}
			for col, value := range values {
				if err := setCell(wb, commentsSheet, col+1, row, value); err != nil {
					return err
				}
			}
			row++
		}
	}
	return nil
}

func writeMetricsSheet(wb *excelize.File, findings []report.EnrichedFinding) error {
	if _, err := wb.NewSheet(metricsSheet); err != nil {
		return fmt.Errorf("render: create metrics sheet: %w", err)
	}
	for _, width := range []struct {
		name string
		w    float64
	}{{"A", 30}, {"B", 12}} {
		if err := wb.SetColWidth(metricsSheet, width.name, width.name, width.w); err != nil {
			return fmt.Errorf("render: set column width: %w", err)
		}
	}

	row := 1
	writePair := func(label string, value interface{}) error {
		if err := setCell(wb, metricsSheet, 1, row, label); err != nil {
			return err
		}
		if err := setCell(wb, metricsSheet, 2, row, value); err != nil {
			return err
		}
		row++
		return nil
	}

	if err := writePair("Total findings", len(findings)); err != nil {
		return err
	}
	row++
	breakdowns := []struct {
		heading string
		key     func(report.EnrichedFinding) string
	}{
		{"By status", func(f report.EnrichedFinding) string { return f.Status }},
		{"By priority", func(f report.EnrichedFinding) string { return f.Priority }},
		{"By department", func(f report.EnrichedFinding) string { return f.Department }},
	}
	for _, breakdown := range breakdowns {
		if err := setCell(wb, metricsSheet, 1, row, breakdown.heading); err != nil {
			return err
		}
		row++
		tally := report.Tally(findings, breakdown.key)
		for _, key := range report.SortedKeys(tally) {
			if err := writePair(key, tally[key]); err != nil {
				return err
			}
		}
		row++
	}
	return nil
}

func setCell(wb *excelize.File, sheet string, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("render: cell coordinates: %w", err)
	}
	if err := wb.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("render: set cell %s!%s: %w", sheet, cell, err)
	}
	return nil
}

// Filename returns the attachment name for a generated artifact, embedding
// the generation timestamp.
func Filename(prefix, ext string, generatedAt time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, generatedAt.Format("20060102_150405"), ext)
}
