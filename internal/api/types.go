package api

import "github.com/AitchEm-bot/audit-reports/internal/report"

// reportRequest carries filter criteria and render options for the two
// download endpoints. Absent option fields keep their defaults.
type reportRequest struct {
	Filters report.Filter  `json:"filters"`
	Options report.Options `json:"options"`
}

// summaryResponse is the non-streaming closing-summary payload.
type summaryResponse struct {
	Summary      string `json:"summary"`
	CommentCount int    `json:"comment_count"`
}

// summaryFailure is the structured failure returned when narrative
// generation fails on the dedicated summary endpoint. Fallback is a
// human-usable string the caller can show directly.
type summaryFailure struct {
	Error        string `json:"error"`
	Fallback     string `json:"fallback"`
	CommentCount int    `json:"comment_count"`
}
