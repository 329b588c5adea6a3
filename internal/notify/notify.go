// Package notify delivers magic links to users.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Mailer sends a sign-in link to an email address. ttl is how long the
// link stays valid.
type Mailer interface {
	SendMagicLink(ctx context.Context, to, link string, ttl time.Duration) error
}

// LogMailer writes the link to the log instead of sending it. Used when no
// SMTP host is configured.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendMagicLink logs the link at INFO.
func (m *LogMailer) SendMagicLink(ctx context.Context, to, link string, ttl time.Duration) error {
	m.logger.InfoContext(ctx, "magic link (smtp not configured)",
		slog.String("to", to), slog.String("link", link), slog.Duration("ttl", ttl))
	return nil
}
