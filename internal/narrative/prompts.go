package narrative

import (
	"fmt"
	"strings"

	"github.com/AitchEm-bot/audit-reports/internal/report"
)

func buildSummaryPrompt(resolved []report.EnrichedFinding, all []report.EnrichedFinding) string {
	var b strings.Builder
	b.WriteString("Write an executive summary for an internal audit report. ")
	b.WriteString("Use plain professional prose, three to five sentences, no lists or markup.\n\n")

	statusCounts := report.Tally(all, func(f report.EnrichedFinding) string { return f.Status })
	priorityCounts := report.Tally(all, func(f report.EnrichedFinding) string { return f.Priority })
	fmt.Fprintf(&b, "The report covers %d findings.\n", len(all))
	b.WriteString("Counts by status:\n")
	for _, key := range report.SortedKeys(statusCounts) {
		fmt.Fprintf(&b, "- %s: %d\n", key, statusCounts[key])
	}
	b.WriteString("Counts by priority:\n")
	for _, key := range report.SortedKeys(priorityCounts) {
		fmt.Fprintf(&b, "- %s: %d\n", key, priorityCounts[key])
	}

	b.WriteString("\nResolved findings with their outcomes:\n")
	for _, f := range resolved {
		fmt.Fprintf(&b, "- %s (%s, %s department): %s\n",
			f.Title, f.Status, f.Department, strings.TrimSpace(f.ClosingComment))
	}
	b.WriteString("\nSummarize the overall audit posture, highlight the most significant resolved issues, and note the remaining open workload.")
	return b.String()
}

func buildPlanPrompt(f report.EnrichedFinding) string {
	var b strings.Builder
	b.WriteString("Write a short action plan for the following resolved audit finding. ")
	b.WriteString("Two to three sentences of plain prose describing what was done and what follow-up remains.\n\n")
	fmt.Fprintf(&b, "Finding %s: %s\n", f.Number, f.Title)
	fmt.Fprintf(&b, "Department: %s\nPriority: %s\nStatus: %s\n", f.Department, f.Priority, f.Status)
	if strings.TrimSpace(f.Description) != "" {
		fmt.Fprintf(&b, "Description: %s\n", strings.TrimSpace(f.Description))
	}
	fmt.Fprintf(&b, "Resolution: %s\n", strings.TrimSpace(f.ClosingComment))
	return b.String()
}

func buildThreadPrompt(f report.Finding, entries []threadEntry) string {
	var b strings.Builder
	b.WriteString("Summarize the following audit finding discussion in the third person. ")
	b.WriteString("Plain text only, two to four sentences, no markup and no direct address.\n\n")
	fmt.Fprintf(&b, "Finding %s: %s (status: %s)\n\nDiscussion:\n", f.Number, f.Title, f.Status)
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s: %s\n", e.When.Format("2006-01-02 15:04"), e.Author, e.Content)
	}
	return b.String()
}
