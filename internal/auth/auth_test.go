package auth

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/mnemo/internal/common"
	"github.com/lazypower/mnemo/internal/store"
)

type fakeMailer struct {
	mu    sync.Mutex
	links []string
	ttls  []time.Duration
	err   error
}

func (m *fakeMailer) SendMagicLink(ctx context.Context, to, link string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, link)
	m.ttls = append(m.ttls, ttl)
	return m.err
}

func (m *fakeMailer) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.links)
	u, err := url.Parse(m.links[len(m.links)-1])
	require.NoError(t, err)
	return u.Query().Get("token")
}

func newTestService(t *testing.T, mailer *fakeMailer) (*Service, *store.DB) {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewService(db, mailer, Config{BaseURL: "https://mnemo.example.com/"})
	return svc, db
}

func TestRequestLoginIssuesToken(t *testing.T) {
	mailer := &fakeMailer{}
	svc, db := newTestService(t, mailer)
	now := time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.RequestLogin(context.Background(), "  a@b.com "))

	require.Len(t, mailer.links, 1)
	assert.Contains(t, mailer.links[0], "https://mnemo.example.com/login/verify?token=")

	value := mailer.lastToken(t)
	assert.Len(t, value, tokenBytes*2)

	tok, err := db.GetLoginToken(context.Background(), value)
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "a@b.com", tok.Email)
	assert.False(t, tok.Used)
	assert.Equal(t, now.Add(10*time.Minute).UnixMilli(), tok.ExpiresAt)
}

func TestRequestLoginPassesConfiguredTTL(t *testing.T) {
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mailer := &fakeMailer{}
	svc := NewService(db, mailer, Config{BaseURL: "https://mnemo.example.com", TokenTTL: 30 * time.Minute})

	require.NoError(t, svc.RequestLogin(context.Background(), "a@b.com"))
	require.Len(t, mailer.ttls, 1)
	assert.Equal(t, 30*time.Minute, mailer.ttls[0])
}

func TestRequestLoginTokensAreDistinct(t *testing.T) {
	mailer := &fakeMailer{}
	svc, _ := newTestService(t, mailer)

	require.NoError(t, svc.RequestLogin(context.Background(), "a@b.com"))
	first := mailer.lastToken(t)
	require.NoError(t, svc.RequestLogin(context.Background(), "a@b.com"))
	second := mailer.lastToken(t)

	assert.NotEqual(t, first, second)
}

func TestRequestLoginEmptyEmail(t *testing.T) {
	mailer := &fakeMailer{}
	svc, _ := newTestService(t, mailer)

	err := svc.RequestLogin(context.Background(), "   ")
	assert.ErrorIs(t, err, common.ErrInvalidEmail)
	assert.Empty(t, mailer.links)
}

func TestRequestLoginSendFailureRollsBack(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	svc, db := newTestService(t, mailer)

	err := svc.RequestLogin(context.Background(), "a@b.com")
	require.ErrorIs(t, err, common.ErrNotification)

	value := mailer.lastToken(t)
	tok, err := db.GetLoginToken(context.Background(), value)
	require.NoError(t, err)
	assert.Nil(t, tok, "token should be removed when the link was never delivered")
}

func TestVerify(t *testing.T) {
	mailer := &fakeMailer{}
	svc, db := newTestService(t, mailer)
	ctx := context.Background()

	require.NoError(t, svc.RequestLogin(ctx, "a@b.com"))
	value := mailer.lastToken(t)

	id, err := svc.Verify(ctx, value)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", id.Email)
	assert.True(t, id.Authenticated())

	u, err := db.GetUserByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	require.NotNil(t, u, "verification should create the user")

	_, err = svc.Verify(ctx, value)
	assert.ErrorIs(t, err, common.ErrTokenAlreadyUsed)
}

func TestVerifyExistingUserIsKept(t *testing.T) {
	mailer := &fakeMailer{}
	svc, db := newTestService(t, mailer)
	ctx := context.Background()

	existing, err := db.UpsertUser(ctx, "a@b.com")
	require.NoError(t, err)

	require.NoError(t, svc.RequestLogin(ctx, "a@b.com"))
	_, err = svc.Verify(ctx, mailer.lastToken(t))
	require.NoError(t, err)

	u, err := db.GetUserByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, u.ID)
}

func TestVerifyUnknownToken(t *testing.T) {
	svc, _ := newTestService(t, &fakeMailer{})

	_, err := svc.Verify(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, common.ErrTokenNotFound)

	_, err = svc.Verify(context.Background(), "")
	assert.ErrorIs(t, err, common.ErrTokenNotFound)
}

func TestVerifyExpired(t *testing.T) {
	mailer := &fakeMailer{}
	svc, db := newTestService(t, mailer)
	ctx := context.Background()
	issued := time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }

	require.NoError(t, svc.RequestLogin(ctx, "a@b.com"))
	value := mailer.lastToken(t)

	// exactly at expiry the token is already dead
	svc.now = func() time.Time { return issued.Add(10 * time.Minute) }
	_, err := svc.Verify(ctx, value)
	assert.ErrorIs(t, err, common.ErrTokenExpired)

	tok, err := db.GetLoginToken(ctx, value)
	require.NoError(t, err)
	assert.False(t, tok.Used, "expired token must not be consumed")
}

func TestVerifyConcurrentSingleWinner(t *testing.T) {
	mailer := &fakeMailer{}
	svc, _ := newTestService(t, mailer)
	ctx := context.Background()

	require.NoError(t, svc.RequestLogin(ctx, "a@b.com"))
	value := mailer.lastToken(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Verify(ctx, value)
		}(i)
	}
	wg.Wait()

	wins, used := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, common.ErrTokenAlreadyUsed):
			used++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, used)
}

func TestVerifyUserStoreFailureLeavesTokenRedeemable(t *testing.T) {
	mailer := &fakeMailer{}
	svc, db := newTestService(t, mailer)
	ctx := context.Background()

	require.NoError(t, svc.RequestLogin(ctx, "a@b.com"))
	value := mailer.lastToken(t)

	_, err := db.Exec(`CREATE TRIGGER users_readonly BEFORE INSERT ON users BEGIN SELECT RAISE(ABORT, 'users read-only'); END`)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, value)
	assert.ErrorIs(t, err, common.ErrStore)

	_, err = db.Exec(`DROP TRIGGER users_readonly`)
	require.NoError(t, err)

	id, err := svc.Verify(ctx, value)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", id.Email)
}

func TestVerifyStoreFailure(t *testing.T) {
	svc, db := newTestService(t, &fakeMailer{})
	db.Close()

	_, err := svc.Verify(context.Background(), "abc")
	assert.ErrorIs(t, err, common.ErrStore)
}
