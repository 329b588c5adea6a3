// Package auth implements passwordless magic-link login and the signed
// session cookie that follows it.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lazypower/mnemo/internal/common"
	"github.com/lazypower/mnemo/internal/metrics"
	"github.com/lazypower/mnemo/internal/notify"
	"github.com/lazypower/mnemo/internal/store"
)

// DefaultTokenTTL is how long a magic link stays valid.
const DefaultTokenTTL = 10 * time.Minute

// tokenBytes is the entropy of a login token before hex encoding.
const tokenBytes = 32

// SessionIdentity is the authenticated caller. The zero value is anonymous.
type SessionIdentity struct {
	Email string
}

// Authenticated reports whether the identity carries an email.
func (id SessionIdentity) Authenticated() bool {
	return id.Email != ""
}

// Store is the persistence the auth service needs. *store.DB satisfies it.
type Store interface {
	InsertLoginToken(ctx context.Context, t *store.LoginToken) error
	GetLoginToken(ctx context.Context, value string) (*store.LoginToken, error)
	RedeemLoginToken(ctx context.Context, value string, now time.Time) (*store.User, bool, error)
	DeleteLoginToken(ctx context.Context, value string) error
}

// Config configures a Service.
type Config struct {
	BaseURL  string        // magic links point at BaseURL + /login/verify
	TokenTTL time.Duration // DefaultTokenTTL when zero
	Metrics  metrics.Recorder
	Logger   *slog.Logger
}

// Service issues and redeems magic-link tokens.
type Service struct {
	store    Store
	mailer   notify.Mailer
	baseURL  string
	tokenTTL time.Duration
	metrics  metrics.Recorder
	logger   *slog.Logger

	now    func() time.Time
	random io.Reader
}

// NewService creates a Service.
func NewService(st Store, mailer notify.Mailer, cfg Config) *Service {
	s := &Service{
		store:    st,
		mailer:   mailer,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		tokenTTL: cfg.TokenTTL,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		now:      time.Now,
		random:   rand.Reader,
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = DefaultTokenTTL
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// RequestLogin issues a single-use token for email and mails the link.
// If the mail cannot be sent the token is removed again, so a failed
// request leaves nothing redeemable behind.
func (s *Service) RequestLogin(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		s.metrics.RecordLoginRequest("invalid")
		return common.ErrInvalidEmail
	}

	value, err := s.newToken()
	if err != nil {
		s.metrics.RecordLoginRequest("error")
		return err
	}

	now := s.now()
	err = s.store.InsertLoginToken(ctx, &store.LoginToken{
		Token:     value,
		Email:     email,
		ExpiresAt: now.Add(s.tokenTTL).UnixMilli(),
		CreatedAt: now.UnixMilli(),
	})
	if err != nil {
		s.metrics.RecordLoginRequest("store_error")
		return err
	}

	link := s.baseURL + "/login/verify?token=" + value
	if err := s.mailer.SendMagicLink(ctx, email, link, s.tokenTTL); err != nil {
		if delErr := s.store.DeleteLoginToken(context.WithoutCancel(ctx), value); delErr != nil {
			s.logger.ErrorContext(ctx, "roll back login token", slog.String("error", delErr.Error()))
		}
		s.metrics.RecordLoginRequest("send_error")
		return fmt.Errorf("%w: send magic link: %w", common.ErrNotification, err)
	}

	s.metrics.RecordLoginRequest("sent")
	return nil
}

// Verify redeems a token. Exactly one caller can redeem a given token; every
// other attempt gets ErrTokenAlreadyUsed.
func (s *Service) Verify(ctx context.Context, value string) (SessionIdentity, error) {
	id, err := s.verify(ctx, value)
	s.metrics.RecordVerify(verifyOutcome(err))
	return id, err
}

func (s *Service) verify(ctx context.Context, value string) (SessionIdentity, error) {
	if value == "" {
		return SessionIdentity{}, common.ErrTokenNotFound
	}

	now := s.now()
	t, err := s.store.GetLoginToken(ctx, value)
	if err != nil {
		return SessionIdentity{}, err
	}
	if t == nil {
		return SessionIdentity{}, common.ErrTokenNotFound
	}
	if t.Expired(now) {
		return SessionIdentity{}, common.ErrTokenExpired
	}
	if t.Used {
		return SessionIdentity{}, common.ErrTokenAlreadyUsed
	}

	user, won, err := s.store.RedeemLoginToken(ctx, value, now)
	if err != nil {
		return SessionIdentity{}, err
	}
	if !won {
		return SessionIdentity{}, common.ErrTokenAlreadyUsed
	}
	return SessionIdentity{Email: user.Email}, nil
}

func (s *Service) newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := io.ReadFull(s.random, b); err != nil {
		return "", fmt.Errorf("generate login token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func verifyOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrTokenNotFound):
		return "not_found"
	case errors.Is(err, common.ErrTokenExpired):
		return "expired"
	case errors.Is(err, common.ErrTokenAlreadyUsed):
		return "already_used"
	default:
		return "error"
	}
}
