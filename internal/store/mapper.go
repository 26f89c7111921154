package store

import "github.com/AitchEm-bot/audit-reports/internal/report"

func mapTicket(row TicketRow) report.Finding {
	finding := report.Finding{
		ID:             row.ID,
		Number:         row.Number,
		Title:          row.Title,
		Description:    row.Description,
		Department:     row.Department,
		Priority:       row.Priority,
		Status:         row.Status,
		ClosingComment: row.ClosingComment,
		CreatorID:      row.CreatorID,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	if row.DueDate.Valid {
		due := row.DueDate.Time
		finding.DueDate = &due
	}
	if row.AssigneeID.Valid {
		finding.AssigneeID = row.AssigneeID.String
	}
	return finding
}

func mapTickets(rows []TicketRow) []report.Finding {
	out := make([]report.Finding, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapTicket(row))
	}
	return out
}

func mapActivities(rows []ActivityRow) []report.Comment {
	out := make([]report.Comment, 0, len(rows))
	for _, row := range rows {
		out = append(out, report.Comment{
			ID:        row.ID,
			FindingID: row.TicketID,
			Kind:      row.Kind,
			Content:   row.Content,
			OldValue:  row.OldValue,
			NewValue:  row.NewValue,
			AuthorID:  row.AuthorID,
			CreatedAt: row.CreatedAt,
		})
	}
	return out
}

func mapProfiles(rows []ProfileRow) []report.Profile {
	out := make([]report.Profile, 0, len(rows))
	for _, row := range rows {
		out = append(out, report.Profile{
			ID:         row.ID,
			Name:       row.Name,
			Email:      row.Email,
			Department: row.Department,
		})
	}
	return out
}
