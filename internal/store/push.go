package store

import (
	"context"
	"fmt"
	"time"

	"github.com/lazypower/mnemo/internal/common"
)

// PushSubscription is an opaque browser push subscription payload.
type PushSubscription struct {
	ID        int64
	UserID    string
	Payload   string
	CreatedAt int64
}

// SavePushSubscription stores payload for userID. Saving the same payload
// twice is a no-op.
func (db *DB) SavePushSubscription(ctx context.Context, userID, payload string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO push_subscriptions (user_id, payload, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, payload) DO NOTHING
	`, userID, payload, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("%w: save push subscription: %w", common.ErrStore, err)
	}
	return nil
}

// ListPushSubscriptions returns every subscription saved for userID.
func (db *DB) ListPushSubscriptions(ctx context.Context, userID string) ([]PushSubscription, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, payload, created_at
		FROM push_subscriptions WHERE user_id = ? ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list push subscriptions: %w", common.ErrStore, err)
	}
	defer rows.Close()

	var subs []PushSubscription
	for rows.Next() {
		var s PushSubscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.Payload, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan push subscription: %w", common.ErrStore, err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
