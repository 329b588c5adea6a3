package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/mnemo/internal/common"
)

func TestSessionIssueAndParse(t *testing.T) {
	s := NewSessions("secret", 0, false)

	value, expires, err := s.Issue("a@b.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), expires, time.Minute)

	email, err := s.Parse(value)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", email)
}

func TestSessionExpired(t *testing.T) {
	s := NewSessions("secret", time.Hour, false)
	issued := time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }

	value, _, err := s.Issue("a@b.com")
	require.NoError(t, err)

	s.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = s.Parse(value)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestSessionWrongSecret(t *testing.T) {
	value, _, err := NewSessions("secret", 0, false).Issue("a@b.com")
	require.NoError(t, err)

	_, err = NewSessions("other", 0, false).Parse(value)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestSessionMalformed(t *testing.T) {
	s := NewSessions("secret", 0, false)
	for _, v := range []string{"", "garbage", "a.b.c"} {
		_, err := s.Parse(v)
		assert.ErrorIs(t, err, common.ErrUnauthenticated, "value %q", v)
	}
}

func TestSessionCookie(t *testing.T) {
	s := NewSessions("secret", 0, true)
	value, expires, err := s.Issue("a@b.com")
	require.NoError(t, err)

	c := s.Cookie(value, expires)
	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 7*24*60*60, c.MaxAge)

	clear := s.ClearCookie()
	assert.Equal(t, CookieName, clear.Name)
	assert.Less(t, clear.MaxAge, 0)
}

func TestSessionIdentity(t *testing.T) {
	s := NewSessions("secret", 0, false)
	value, expires, err := s.Issue("a@b.com")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.AddCookie(s.Cookie(value, expires))
	assert.Equal(t, SessionIdentity{Email: "a@b.com"}, s.Identity(r))

	anon := httptest.NewRequest(http.MethodGet, "/me", nil)
	assert.False(t, s.Identity(anon).Authenticated())

	forged := httptest.NewRequest(http.MethodGet, "/me", nil)
	forged.AddCookie(&http.Cookie{Name: CookieName, Value: "forged"})
	assert.False(t, s.Identity(forged).Authenticated())
}
