package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lazypower/mnemo/internal/common"
)

// User is an email identity. Email is the case-sensitive identity key.
type User struct {
	ID        string
	Email     string
	CreatedAt int64
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetUserByEmail returns the user with the given email, or nil if none exists.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return getUserByEmail(ctx, db.DB, email)
}

// UpsertUser creates the user for email if it does not exist yet and returns
// the stored row either way.
func (db *DB) UpsertUser(ctx context.Context, email string) (*User, error) {
	return upsertUser(ctx, db.DB, email)
}

func getUserByEmail(ctx context.Context, q querier, email string) (*User, error) {
	var u User
	err := q.QueryRowContext(ctx, `
		SELECT id, email, created_at FROM users WHERE email = ?
	`, email).Scan(&u.ID, &u.Email, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get user: %w", common.ErrStore, err)
	}
	return &u, nil
}

func upsertUser(ctx context.Context, q querier, email string) (*User, error) {
	now := time.Now().UnixMilli()
	_, err := q.ExecContext(ctx, `
		INSERT INTO users (id, email, created_at) VALUES (?, ?, ?)
		ON CONFLICT(email) DO NOTHING
	`, uuid.New().String(), email, now)
	if err != nil {
		return nil, fmt.Errorf("%w: upsert user: %w", common.ErrStore, err)
	}

	u, err := getUserByEmail(ctx, q, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: upsert user: row for %s vanished", common.ErrStore, email)
	}
	return u, nil
}
