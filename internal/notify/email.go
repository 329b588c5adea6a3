package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/lazypower/mnemo/internal/config"
)

const magicLinkSubject = "Your sign-in link"

// EmailNotifier sends magic links over SMTP.
type EmailNotifier struct {
	cfg    config.EmailConfig
	logger *slog.Logger
	sender gomail.Sender // nil dials cfg's SMTP server per message
}

// NewEmailNotifier creates a new SMTP notifier.
func NewEmailNotifier(cfg config.EmailConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger,
	}
}

// SendMagicLink emails link to the given address.
func (n *EmailNotifier) SendMagicLink(ctx context.Context, to, link string, ttl time.Duration) error {
	if n.cfg.SMTPHost == "" || n.cfg.From == "" {
		return fmt.Errorf("email config missing")
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", magicLinkSubject)
	m.SetBody("text/plain", magicLinkText(link, ttl))
	m.AddAlternative("text/html", magicLinkHTML(link, ttl))

	if n.sender != nil {
		if err := gomail.Send(n.sender, m); err != nil {
			return fmt.Errorf("send email: %w", err)
		}
	} else {
		d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)
		if err := d.DialAndSend(m); err != nil {
			return fmt.Errorf("send email: %w", err)
		}
	}

	n.logger.InfoContext(ctx, "magic link sent", slog.String("to", to))
	return nil
}

func magicLinkText(link string, ttl time.Duration) string {
	return fmt.Sprintf(`Sign in to Mnemo with this link:

%s

The link expires in %s and can be used only once.
If you did not ask for it, ignore this email.
`, link, humanDuration(ttl))
}

func magicLinkHTML(link string, ttl time.Duration) string {
	escaped := html.EscapeString(link)
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Sign in to Mnemo</h2>
    <p>Click the link below to sign in:</p>
    <p><a href="%s">%s</a></p>
    <p>The link expires in %s and can be used only once.</p>
    <p style="color: #6b7280; font-size: 12px;">If you did not ask for it, ignore this email.</p>
  </div>
</body>
</html>`, escaped, escaped, humanDuration(ttl))
}

// humanDuration renders whole hours or minutes in words and falls back to
// Duration.String otherwise.
func humanDuration(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	default:
		return d.String()
	}
}
