package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/mnemo/internal/auth"
	"github.com/lazypower/mnemo/internal/classifier"
	"github.com/lazypower/mnemo/internal/clock"
	"github.com/lazypower/mnemo/internal/common"
	"github.com/lazypower/mnemo/internal/llm"
	"github.com/lazypower/mnemo/internal/store"
)

const testZone = "America/Toronto"

// 2026-02-18 12:00 in Toronto
var testNow = time.Date(2026, 2, 18, 17, 0, 0, 0, time.UTC)

type fixture struct {
	router *Router
	db     *store.DB
	llm    *llm.MockClient
	user   *store.User
	id     auth.SessionIdentity
}

func newFixture(t *testing.T, replies ...string) *fixture {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	user, err := db.UpsertUser(context.Background(), "a@b.com")
	require.NoError(t, err)

	mock := &llm.MockClient{Responses: replies}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewRouter(db, classifier.New(mock, nil), testZone, nil, logger)
	r.now = func() time.Time { return testNow }

	return &fixture{
		router: r,
		db:     db,
		llm:    mock,
		user:   user,
		id:     auth.SessionIdentity{Email: "a@b.com"},
	}
}

func (f *fixture) notes(t *testing.T) []store.Note {
	t.Helper()
	notes, err := f.db.ListNotes(context.Background(), f.user.ID)
	require.NoError(t, err)
	return notes
}

func TestNoteWithReminder(t *testing.T) {
	msg := "Remind me to call mom tomorrow at 5pm"
	f := newFixture(t,
		"NOTE",
		`{"title":"Call mom","content":"call mom","reminder":"2026-02-19T17:00"}`,
	)

	reply, err := f.router.HandleMessage(context.Background(), f.id, msg)
	require.NoError(t, err)
	assert.Equal(t, AckReply, reply)

	notes := f.notes(t)
	require.Len(t, notes, 1)
	n := notes[0]
	assert.Equal(t, "Call mom", n.Title)
	assert.Contains(t, n.Content, "call mom")
	assert.Contains(t, n.Content, msg)

	require.NotNil(t, n.Reminder())
	local, err := clock.ToLocal(*n.Reminder(), testZone)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-19T17:00", local)
	assert.True(t, n.Reminder().Equal(time.Date(2026, 2, 19, 22, 0, 0, 0, time.UTC)))

	require.Len(t, f.llm.Calls, 2)
	assert.Contains(t, f.llm.Calls[1].System, "2026-02-18T12:00")
	assert.Contains(t, f.llm.Calls[1].System, testZone)
}

func TestExtractionAnchoredToLocalTime(t *testing.T) {
	f := newFixture(t,
		"NOTE",
		`{"title":"Oven","content":"check the oven in an hour","reminder":"2026-02-18T11:42"}`,
	)
	f.router.now = func() time.Time { return time.Date(2026, 2, 18, 15, 42, 0, 0, time.UTC) }

	_, err := f.router.HandleMessage(context.Background(), f.id, "check the oven in an hour")
	require.NoError(t, err)

	require.Len(t, f.llm.Calls, 2)
	assert.Contains(t, f.llm.Calls[1].System, "2026-02-18T10:42")

	notes := f.notes(t)
	require.Len(t, notes, 1)
	require.NotNil(t, notes[0].Reminder())
	assert.True(t, notes[0].Reminder().Equal(time.Date(2026, 2, 18, 16, 42, 0, 0, time.UTC)))
}

func TestHedgedIntentIsStoredAsNote(t *testing.T) {
	msg := "my locker code is 4512"
	f := newFixture(t,
		"NOTE (not a QUESTION)",
		`{"title":"Locker","content":"my locker code is 4512","reminder":null}`,
	)

	reply, err := f.router.HandleMessage(context.Background(), f.id, msg)
	require.NoError(t, err)
	assert.Equal(t, AckReply, reply)

	notes := f.notes(t)
	require.Len(t, notes, 1)
	assert.Equal(t, msg, notes[0].Content)
}

func TestNoteWithoutReminderKeepsContent(t *testing.T) {
	msg := "The wifi password is hunter2"
	f := newFixture(t,
		"NOTE",
		`{"title":"Wifi","content":"The wifi password is hunter2","reminder":null}`,
	)

	_, err := f.router.HandleMessage(context.Background(), f.id, msg)
	require.NoError(t, err)

	notes := f.notes(t)
	require.Len(t, notes, 1)
	assert.Equal(t, msg, notes[0].Content)
	assert.Nil(t, notes[0].ReminderAt)
}

func TestQuestionAnswersFromNotes(t *testing.T) {
	f := newFixture(t, "QUESTION", "The wifi password is hunter2.")
	_, err := f.db.InsertNote(context.Background(), &store.Note{UserID: f.user.ID, Title: "Wifi", Content: "password is hunter2"})
	require.NoError(t, err)

	reply, err := f.router.HandleMessage(context.Background(), f.id, "What's the wifi password?")
	require.NoError(t, err)
	assert.Equal(t, "The wifi password is hunter2.", reply)

	require.Len(t, f.llm.Calls, 2)
	assert.Contains(t, f.llm.Calls[1].System, "• Wifi — password is hunter2")
	assert.Len(t, f.notes(t), 1, "a question must not create a note")
}

func TestQuestionWithNoNotes(t *testing.T) {
	f := newFixture(t, "question", "You haven't told me that.")

	reply, err := f.router.HandleMessage(context.Background(), f.id, "Where did I park?")
	require.NoError(t, err)
	assert.Equal(t, "You haven't told me that.", reply)
	assert.Contains(t, f.llm.Calls[1].System, llm.NoNotesPlaceholder)
	assert.Empty(t, f.notes(t))
}

func TestQuestionSeesOnlyOwnNotes(t *testing.T) {
	f := newFixture(t, "QUESTION", "no idea")
	other, err := f.db.UpsertUser(context.Background(), "other@b.com")
	require.NoError(t, err)
	_, err = f.db.InsertNote(context.Background(), &store.Note{UserID: other.ID, Title: "Secret", Content: "not yours"})
	require.NoError(t, err)

	_, err = f.router.HandleMessage(context.Background(), f.id, "what is the secret?")
	require.NoError(t, err)
	assert.NotContains(t, f.llm.Calls[1].System, "not yours")
}

func TestClassifierFailurePersistsNothing(t *testing.T) {
	f := newFixture(t)
	f.llm.Errs = []error{errors.New("upstream timeout")}

	_, err := f.router.HandleMessage(context.Background(), f.id, "buy milk")
	assert.ErrorIs(t, err, common.ErrClassifier)
	assert.Empty(t, f.notes(t))
}

func TestMalformedExtractionPersistsNothing(t *testing.T) {
	f := newFixture(t, "NOTE", `{"title":"x"}`)

	_, err := f.router.HandleMessage(context.Background(), f.id, "buy milk")
	assert.ErrorIs(t, err, common.ErrClassifier)
	assert.Empty(t, f.notes(t))
}

func TestUnauthenticated(t *testing.T) {
	f := newFixture(t)

	_, err := f.router.HandleMessage(context.Background(), auth.SessionIdentity{}, "hello")
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
	assert.Empty(t, f.llm.Calls)

	_, err = f.router.ListNotes(context.Background(), auth.SessionIdentity{})
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestEmptyMessage(t *testing.T) {
	f := newFixture(t)

	_, err := f.router.HandleMessage(context.Background(), f.id, "   ")
	assert.ErrorIs(t, err, common.ErrEmptyMessage)
	assert.Empty(t, f.llm.Calls)
}

func TestUserNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.router.HandleMessage(context.Background(), auth.SessionIdentity{Email: "ghost@b.com"}, "hello")
	assert.ErrorIs(t, err, common.ErrUserNotFound)
	assert.Empty(t, f.llm.Calls)
}

func TestListNotesViews(t *testing.T) {
	f := newFixture(t)
	reminder := time.Date(2026, 2, 19, 22, 0, 0, 0, time.UTC).UnixMilli()
	created := time.Date(2026, 2, 18, 17, 0, 0, 0, time.UTC).UnixMilli()
	_, err := f.db.InsertNote(context.Background(), &store.Note{UserID: f.user.ID, Title: "Call mom", Content: "call mom", ReminderAt: &reminder, CreatedAt: created})
	require.NoError(t, err)
	_, err = f.db.InsertNote(context.Background(), &store.Note{UserID: f.user.ID, Title: "Wifi", Content: "hunter2", CreatedAt: created})
	require.NoError(t, err)

	views, err := f.router.ListNotes(context.Background(), f.id)
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.NotNil(t, views[0].Reminder)
	assert.Equal(t, "2026-02-19T22:00:00Z", *views[0].Reminder)
	assert.Equal(t, "2026-02-18T17:00:00Z", views[0].CreatedAt)
	assert.Nil(t, views[1].Reminder)
}

func TestSavePushSubscription(t *testing.T) {
	f := newFixture(t)
	payload := `{"endpoint":"https://push.example.com/1"}`

	require.NoError(t, f.router.SavePushSubscription(context.Background(), f.id, payload))

	subs, err := f.db.ListPushSubscriptions(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, payload, subs[0].Payload)

	err = f.router.SavePushSubscription(context.Background(), auth.SessionIdentity{}, payload)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestContextLines(t *testing.T) {
	notes := []store.Note{
		{Title: "Wifi", Content: "hunter2"},
		{Title: "", Content: ""},
		{Title: "Only title"},
		{Content: "only content"},
	}
	assert.Equal(t, []string{
		"• Wifi — hunter2",
		"• Only title",
		"• only content",
	}, contextLines(notes))
}

func TestLargeContextStillAnswers(t *testing.T) {
	f := newFixture(t, "QUESTION", "ok")
	for i := 0; i < contextWarnLines+1; i++ {
		_, err := f.db.InsertNote(context.Background(), &store.Note{UserID: f.user.ID, Title: fmt.Sprintf("n%d", i), Content: "c"})
		require.NoError(t, err)
	}

	_, err := f.router.HandleMessage(context.Background(), f.id, "anything?")
	require.NoError(t, err)
	assert.Contains(t, f.llm.Calls[1].System, fmt.Sprintf("• n%d — c", contextWarnLines))
}
