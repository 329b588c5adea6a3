package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lazypower/mnemo/internal/common"
)

// CookieName is the session cookie set after a successful verification.
const CookieName = "mnemo_session"

// DefaultSessionTTL is the lifetime of a session cookie.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Sessions signs and checks session cookies. Sessions are not stored; the
// HS256 signature and exp claim are the whole record.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewSessions creates a Sessions. secure sets the cookie Secure flag.
func NewSessions(secret string, ttl time.Duration, secure bool) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}
}

// Issue returns a signed session value for email and its expiry.
func (s *Sessions) Issue(email string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	})

	value, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return value, expires, nil
}

// Parse returns the email bound to a session value. Any malformed, forged or
// expired value yields ErrUnauthenticated.
func (s *Sessions) Parse(value string) (string, error) {
	if value == "" {
		return "", common.ErrUnauthenticated
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(value, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUnauthenticated, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", common.ErrUnauthenticated
	}
	return claims.Subject, nil
}

// Identity resolves the session cookie on r. A missing or invalid cookie is
// the anonymous identity, not an error.
func (s *Sessions) Identity(r *http.Request) SessionIdentity {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return SessionIdentity{}
	}
	email, err := s.Parse(c.Value)
	if err != nil {
		return SessionIdentity{}
	}
	return SessionIdentity{Email: email}
}

// Cookie builds the session cookie for value.
func (s *Sessions) Cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(s.ttl / time.Second),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie builds a cookie that deletes the session.
func (s *Sessions) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
