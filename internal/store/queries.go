package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/AitchEm-bot/audit-reports/internal/report"
)

// FindingsFiltered returns findings matching the filter, newest first.
func (s *Store) FindingsFiltered(ctx context.Context, filter report.Filter) ([]report.Finding, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store: not initialised")
	}
	query := `SELECT * FROM tickets`
	var clauses []string
	var args []interface{}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, `status IN (?)`)
		args = append(args, filter.Statuses)
	}
	if len(filter.Priorities) > 0 {
		clauses = append(clauses, `priority IN (?)`)
		args = append(args, filter.Priorities)
	}
	if len(filter.Departments) > 0 {
		clauses = append(clauses, `department IN (?)`)
		args = append(args, filter.Departments)
	}
	if filter.From != nil {
		clauses = append(clauses, `created_at >= ?`)
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		clauses = append(clauses, `created_at <= ?`)
		args = append(args, *filter.To)
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, ` AND `)
	}
	query += ` ORDER BY created_at DESC`

	expanded, expandedArgs, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: build ticket query: %w", err)
	}
	expanded = s.db.Rebind(expanded)
	rows := []TicketRow{}
	if err := s.db.SelectContext(ctx, &rows, expanded, expandedArgs...); err != nil {
		return nil, fmt.Errorf("store: select tickets: %w", err)
	}
	return mapTickets(rows), nil
}

// CountFindings returns the total number of tickets, ignoring any filter.
func (s *Store) CountFindings(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("store: not initialised")
	}
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM tickets`); err != nil {
		return 0, fmt.Errorf("store: count tickets: %w", err)
	}
	return count, nil
}

// CommentsForFindings returns the activity rows for the given ticket ids in
// chronological order, issued as a single batched query.
func (s *Store) CommentsForFindings(ctx context.Context, findingIDs []string) ([]report.Comment, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store: not initialised")
	}
	if len(findingIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM activities WHERE ticket_id IN (?) ORDER BY created_at, id`, findingIDs)
	if err != nil {
		return nil, fmt.Errorf("store: build activity query: %w", err)
	}
	query = s.db.Rebind(query)
	rows := []ActivityRow{}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("store: select activities: %w", err)
	}
	return mapActivities(rows), nil
}

// ProfilesByIDs resolves a set of profile ids in a single batched query.
func (s *Store) ProfilesByIDs(ctx context.Context, ids []string) ([]report.Profile, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store: not initialised")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM profiles WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("store: build profile query: %w", err)
	}
	query = s.db.Rebind(query)
	rows := []ProfileRow{}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("store: select profiles: %w", err)
	}
	return mapProfiles(rows), nil
}

// CommentsForFinding returns one ticket's thread in chronological order.
func (s *Store) CommentsForFinding(ctx context.Context, findingID string) ([]report.Comment, error) {
	return s.CommentsForFindings(ctx, []string{findingID})
}

// FindingByID fetches a single ticket.
func (s *Store) FindingByID(ctx context.Context, id string) (*report.Finding, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store: not initialised")
	}
	var row TicketRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM tickets WHERE id = ?`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("store: ticket %s not found: %w", id, err)
		}
		return nil, fmt.Errorf("store: select ticket: %w", err)
	}
	finding := mapTicket(row)
	return &finding, nil
}

// SaveProfile inserts or updates a profile, assigning an id when absent.
func (s *Store) SaveProfile(ctx context.Context, profile report.Profile) (string, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("store: not initialised")
	}
	if strings.TrimSpace(profile.ID) == "" {
		profile.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO profiles(id, name, email, department)
                VALUES(?, ?, ?, ?)
                ON CONFLICT(id) DO UPDATE SET
                        name = excluded.name,
                        email = excluded.email,
                        department = excluded.department`,
		profile.ID, profile.Name, profile.Email, profile.Department)
	if err != nil {
		return "", fmt.Errorf("store: upsert profile: %w", err)
	}
	return profile.ID, nil
}

// SaveFinding inserts or updates a ticket, assigning an id when absent.
func (s *Store) SaveFinding(ctx context.Context, finding report.Finding) (string, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("store: not initialised")
	}
	if strings.TrimSpace(finding.ID) == "" {
		finding.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if finding.CreatedAt.IsZero() {
		finding.CreatedAt = now
	}
	finding.UpdatedAt = now
	var due interface{}
	if finding.DueDate != nil {
		due = *finding.DueDate
	}
	var assignee interface{}
	if finding.AssigneeID != "" {
		assignee = finding.AssigneeID
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO tickets(
                        id, number, title, description, department, priority, status,
                        due_date, closing_comment, creator_id, assignee_id, created_at, updated_at)
                VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
                ON CONFLICT(id) DO UPDATE SET
                        number = excluded.number,
                        title = excluded.title,
                        description = excluded.description,
                        department = excluded.department,
                        priority = excluded.priority,
                        status = excluded.status,
                        due_date = excluded.due_date,
                        closing_comment = excluded.closing_comment,
                        assignee_id = excluded.assignee_id,
                        updated_at = excluded.updated_at`,
		finding.ID, finding.Number, finding.Title, finding.Description,
		finding.Department, finding.Priority, finding.Status,
		due, finding.ClosingComment, finding.CreatorID, assignee,
		finding.CreatedAt, finding.UpdatedAt)
	if err != nil {
		return "", fmt.Errorf("store: upsert ticket: %w", err)
	}
	return finding.ID, nil
}

// SaveComment appends an activity entry to a ticket's thread.
func (s *Store) SaveComment(ctx context.Context, comment report.Comment) (string, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("store: not initialised")
	}
	if strings.TrimSpace(comment.ID) == "" {
		comment.ID = uuid.NewString()
	}
	if comment.Kind == "" {
		comment.Kind = report.ActivityComment
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO activities(
                        id, ticket_id, kind, content, old_value, new_value, author_id, created_at)
                VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		comment.ID, comment.FindingID, comment.Kind, comment.Content,
		comment.OldValue, comment.NewValue, comment.AuthorID, comment.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("store: insert activity: %w", err)
	}
	return comment.ID, nil
}
