package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lazypower/mnemo/internal/common"
)

// LoginToken is a magic-link token. Used only ever moves from false to true.
type LoginToken struct {
	Token     string
	Email     string
	ExpiresAt int64 // unix ms
	Used      bool
	CreatedAt int64
}

// Expired reports whether the token is no longer valid at now.
func (t *LoginToken) Expired(now time.Time) bool {
	return now.UnixMilli() >= t.ExpiresAt
}

// InsertLoginToken stores a freshly issued token.
func (db *DB) InsertLoginToken(ctx context.Context, t *LoginToken) error {
	createdAt := t.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO login_tokens (token, email, expires_at, used, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, t.Token, t.Email, t.ExpiresAt, t.Used, createdAt)
	if err != nil {
		return fmt.Errorf("%w: insert login token: %w", common.ErrStore, err)
	}
	return nil
}

// GetLoginToken returns the token row for value, or nil if none exists.
func (db *DB) GetLoginToken(ctx context.Context, value string) (*LoginToken, error) {
	var t LoginToken
	err := db.QueryRowContext(ctx, `
		SELECT token, email, expires_at, used, created_at
		FROM login_tokens WHERE token = ?
	`, value).Scan(&t.Token, &t.Email, &t.ExpiresAt, &t.Used, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get login token: %w", common.ErrStore, err)
	}
	return &t, nil
}

// MarkLoginTokenUsed flips used to true in a single conditional update.
// It returns true only for the caller that performed the transition; a token
// that is already used or expired at now is left untouched.
func (db *DB) MarkLoginTokenUsed(ctx context.Context, value string, now time.Time) (bool, error) {
	return markLoginTokenUsed(ctx, db.DB, value, now)
}

func markLoginTokenUsed(ctx context.Context, q querier, value string, now time.Time) (bool, error) {
	result, err := q.ExecContext(ctx, `
		UPDATE login_tokens SET used = 1
		WHERE token = ? AND used = 0 AND expires_at > ?
	`, value, now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("%w: mark login token used: %w", common.ErrStore, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: mark login token used: %w", common.ErrStore, err)
	}
	return rows == 1, nil
}

// RedeemLoginToken consumes a token and upserts the user it was issued for
// in one transaction. ok is false, with nothing changed, when the token is
// missing, already used or expired at now. If the user cannot be stored the
// token stays unused.
func (db *DB) RedeemLoginToken(ctx context.Context, value string, now time.Time) (user *User, ok bool, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: begin redeem: %w", common.ErrStore, err)
	}
	defer tx.Rollback()

	won, err := markLoginTokenUsed(ctx, tx, value, now)
	if err != nil || !won {
		return nil, false, err
	}

	var email string
	err = tx.QueryRowContext(ctx, `SELECT email FROM login_tokens WHERE token = ?`, value).Scan(&email)
	if err != nil {
		return nil, false, fmt.Errorf("%w: redeem login token: %w", common.ErrStore, err)
	}

	user, err = upsertUser(ctx, tx, email)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("%w: commit redeem: %w", common.ErrStore, err)
	}
	return user, true, nil
}

// DeleteLoginToken removes a token row. Used to roll back issuance when the
// magic link could not be delivered.
func (db *DB) DeleteLoginToken(ctx context.Context, value string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM login_tokens WHERE token = ?`, value)
	if err != nil {
		return fmt.Errorf("%w: delete login token: %w", common.ErrStore, err)
	}
	return nil
}
