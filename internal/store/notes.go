package store

import (
	"context"
	"fmt"
	"time"

	"github.com/lazypower/mnemo/internal/common"
)

// notesPageSize bounds a single ListNotes query; ListNotes keeps paging
// until the user's notes are exhausted.
const notesPageSize = 200

// Note is a stored memory owned by one user.
type Note struct {
	ID         int64
	UserID     string
	Title      string
	Content    string
	ReminderAt *int64 // unix ms, UTC
	CreatedAt  int64
}

// Reminder returns the reminder instant, or nil when the note has none.
func (n *Note) Reminder() *time.Time {
	if n.ReminderAt == nil {
		return nil
	}
	t := time.UnixMilli(*n.ReminderAt).UTC()
	return &t
}

// InsertNote stores a note and returns it with ID and CreatedAt populated.
// CreatedAt is set to now when zero.
func (db *DB) InsertNote(ctx context.Context, n *Note) (*Note, error) {
	stored := *n
	if stored.CreatedAt == 0 {
		stored.CreatedAt = time.Now().UnixMilli()
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO notes (user_id, title, content, reminder_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, stored.UserID, stored.Title, stored.Content, stored.ReminderAt, stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: insert note: %w", common.ErrStore, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: insert note id: %w", common.ErrStore, err)
	}
	stored.ID = id
	return &stored, nil
}

// ListNotes returns every note owned by userID, oldest first.
func (db *DB) ListNotes(ctx context.Context, userID string) ([]Note, error) {
	var notes []Note
	var after int64

	for {
		page, err := db.listNotesPage(ctx, userID, after, notesPageSize)
		if err != nil {
			return nil, err
		}
		notes = append(notes, page...)
		if len(page) < notesPageSize {
			return notes, nil
		}
		after = page[len(page)-1].ID
	}
}

func (db *DB) listNotesPage(ctx context.Context, userID string, after int64, limit int) ([]Note, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, title, content, reminder_at, created_at
		FROM notes WHERE user_id = ? AND id > ?
		ORDER BY id LIMIT ?
	`, userID, after, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list notes: %w", common.ErrStore, err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.ReminderAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan note: %w", common.ErrStore, err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list notes: %w", common.ErrStore, err)
	}
	return notes, nil
}

// CountNotes returns the number of notes owned by userID.
func (db *DB) CountNotes(ctx context.Context, userID string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: count notes: %w", common.ErrStore, err)
	}
	return count, nil
}
