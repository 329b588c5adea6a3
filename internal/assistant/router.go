// Package assistant routes chat messages to either a grounded answer or a
// newly stored note.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lazypower/mnemo/internal/auth"
	"github.com/lazypower/mnemo/internal/classifier"
	"github.com/lazypower/mnemo/internal/clock"
	"github.com/lazypower/mnemo/internal/common"
	"github.com/lazypower/mnemo/internal/metrics"
	"github.com/lazypower/mnemo/internal/store"
)

// AckReply is returned after a note is stored.
const AckReply = "Noted. I'll remember that for you."

// contextWarnLines is the grounding size past which a warning is logged.
const contextWarnLines = 500

// Store is the persistence the router needs. *store.DB satisfies it.
type Store interface {
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	ListNotes(ctx context.Context, userID string) ([]store.Note, error)
	InsertNote(ctx context.Context, n *store.Note) (*store.Note, error)
	SavePushSubscription(ctx context.Context, userID, payload string) error
}

// Classifier is the language-model side of the router.
type Classifier interface {
	ClassifyIntent(ctx context.Context, text string) (classifier.Intent, error)
	AnswerFromContext(ctx context.Context, lines []string, question string) (string, error)
	ExtractNote(ctx context.Context, text, reference, tz string) (classifier.ExtractedNote, error)
}

// NoteView is a note as shown to its owner.
type NoteView struct {
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	Reminder  *string `json:"reminder"` // RFC 3339 UTC
	CreatedAt string  `json:"createdAt"`
}

// Router handles one message per call. It holds no per-request state.
type Router struct {
	store      Store
	classifier Classifier
	timezone   string
	metrics    metrics.Recorder
	logger     *slog.Logger
	now        func() time.Time
}

// NewRouter creates a Router. timezone is the IANA zone reminders are
// interpreted in.
func NewRouter(st Store, c Classifier, timezone string, rec metrics.Recorder, logger *slog.Logger) *Router {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		store:      st,
		classifier: c,
		timezone:   timezone,
		metrics:    rec,
		logger:     logger,
		now:        time.Now,
	}
}

// HandleMessage classifies text and either answers it from the caller's
// notes or stores it as a new note. Nothing is persisted on failure.
func (r *Router) HandleMessage(ctx context.Context, id auth.SessionIdentity, text string) (string, error) {
	if !id.Authenticated() {
		return "", common.ErrUnauthenticated
	}
	if strings.TrimSpace(text) == "" {
		return "", common.ErrEmptyMessage
	}
	user, err := r.user(ctx, id)
	if err != nil {
		return "", err
	}

	intent, err := r.classifier.ClassifyIntent(ctx, text)
	if err != nil {
		return "", err
	}
	r.metrics.RecordIntent(string(intent))

	if intent == classifier.IntentQuestion {
		return r.answer(ctx, user, text)
	}
	return r.remember(ctx, user, text)
}

func (r *Router) answer(ctx context.Context, user *store.User, question string) (string, error) {
	notes, err := r.store.ListNotes(ctx, user.ID)
	if err != nil {
		return "", err
	}

	lines := contextLines(notes)
	if len(lines) > contextWarnLines {
		r.logger.WarnContext(ctx, "large grounding context",
			slog.String("user_id", user.ID), slog.Int("lines", len(lines)))
	}

	return r.classifier.AnswerFromContext(ctx, lines, question)
}

func (r *Router) remember(ctx context.Context, user *store.User, text string) (string, error) {
	reference, err := clock.ToLocal(r.now(), r.timezone)
	if err != nil {
		return "", err
	}

	extracted, err := r.classifier.ExtractNote(ctx, text, reference, r.timezone)
	if err != nil {
		return "", err
	}

	note := &store.Note{
		UserID:  user.ID,
		Title:   extracted.Title,
		Content: extracted.Content,
	}
	if !strings.Contains(note.Content, text) {
		note.Content = note.Content + "\n\n" + text
	}
	if extracted.Reminder != nil {
		at, err := clock.ToAbsolute(*extracted.Reminder, r.timezone)
		if err != nil {
			return "", fmt.Errorf("%w: reminder: %w", common.ErrClassifier, err)
		}
		ms := at.UnixMilli()
		note.ReminderAt = &ms
	}

	if _, err := r.store.InsertNote(ctx, note); err != nil {
		return "", err
	}
	r.metrics.RecordNoteSaved()
	return AckReply, nil
}

// ListNotes returns the caller's notes, oldest first.
func (r *Router) ListNotes(ctx context.Context, id auth.SessionIdentity) ([]NoteView, error) {
	user, err := r.user(ctx, id)
	if err != nil {
		return nil, err
	}

	notes, err := r.store.ListNotes(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	views := make([]NoteView, 0, len(notes))
	for i := range notes {
		v := NoteView{
			Title:     notes[i].Title,
			Content:   notes[i].Content,
			CreatedAt: time.UnixMilli(notes[i].CreatedAt).UTC().Format(time.RFC3339),
		}
		if at := notes[i].Reminder(); at != nil {
			s := at.Format(time.RFC3339)
			v.Reminder = &s
		}
		views = append(views, v)
	}
	return views, nil
}

// SavePushSubscription stores an opaque browser push subscription for the
// caller.
func (r *Router) SavePushSubscription(ctx context.Context, id auth.SessionIdentity, payload string) error {
	user, err := r.user(ctx, id)
	if err != nil {
		return err
	}
	return r.store.SavePushSubscription(ctx, user.ID, payload)
}

func (r *Router) user(ctx context.Context, id auth.SessionIdentity) (*store.User, error) {
	if !id.Authenticated() {
		return nil, common.ErrUnauthenticated
	}
	user, err := r.store.GetUserByEmail(ctx, id.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, common.ErrUserNotFound
	}
	return user, nil
}

// contextLines renders notes as "• title — content". Notes with neither are
// skipped; a missing half is left out rather than rendered empty.
func contextLines(notes []store.Note) []string {
	lines := make([]string, 0, len(notes))
	for _, n := range notes {
		title := strings.TrimSpace(n.Title)
		content := strings.TrimSpace(n.Content)
		switch {
		case title == "" && content == "":
			continue
		case title == "":
			lines = append(lines, "• "+content)
		case content == "":
			lines = append(lines, "• "+title)
		default:
			lines = append(lines, "• "+title+" — "+content)
		}
	}
	return lines
}
