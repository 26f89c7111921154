package store

import (
	"database/sql"
	"time"
)

// TicketRow is a tickets table row.
type TicketRow struct {
	ID             string         `db:"id"`
	Number         string         `db:"number"`
	Title          string         `db:"title"`
	Description    string         `db:"description"`
	Department     string         `db:"department"`
	Priority       string         `db:"priority"`
	Status         string         `db:"status"`
	DueDate        sql.NullTime   `db:"due_date"`
	ClosingComment string         `db:"closing_comment"`
	CreatorID      string         `db:"creator_id"`
	AssigneeID     sql.NullString `db:"assignee_id"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

// ActivityRow is an activities table row.
type ActivityRow struct {
	ID        string    `db:"id"`
	TicketID  string    `db:"ticket_id"`
	Kind      string    `db:"kind"`
	Content   string    `db:"content"`
	OldValue  string    `db:"old_value"`
	NewValue  string    `db:"new_value"`
	AuthorID  string    `db:"author_id"`
	CreatedAt time.Time `db:"created_at"`
}

// ProfileRow is a profiles table row.
type ProfileRow struct {
	ID         string `db:"id"`
	Name       string `db:"name"`
	Email      string `db:"email"`
	Department string `db:"department"`
}
