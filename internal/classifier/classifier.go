// Package classifier turns free-text messages into intents, grounded answers
// and structured notes using a language model.
package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/lazypower/mnemo/internal/common"
	"github.com/lazypower/mnemo/internal/llm"
	"github.com/lazypower/mnemo/internal/metrics"
)

// Intent is the routing decision for a message.
type Intent string

const (
	IntentQuestion Intent = "QUESTION"
	IntentNote     Intent = "NOTE"
)

// ExtractedNote is the structured form of a NOTE message. Reminder, when
// set, is a naive local date-time (YYYY-MM-DDTHH:MM) in the user's zone.
type ExtractedNote struct {
	Title    string
	Content  string
	Reminder *string
}

// Classifier wraps an llm.Client with the three prompts the router needs.
// No call is retried.
type Classifier struct {
	client  llm.Client
	metrics metrics.Recorder
}

// New creates a Classifier. rec may be nil.
func New(client llm.Client, rec metrics.Recorder) *Classifier {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Classifier{client: client, metrics: rec}
}

// ClassifyIntent returns IntentQuestion only when the completion is the
// QUESTION label on its own, ignoring case, surrounding quotes and
// punctuation. Anything else is IntentNote so information is kept.
func (c *Classifier) ClassifyIntent(ctx context.Context, text string) (Intent, error) {
	content, err := c.complete(ctx, "intent", llm.Request{
		System: llm.IntentPrompt(),
		User:   text,
	})
	if err != nil {
		return "", err
	}
	if intentLabel(content) == string(IntentQuestion) {
		return IntentQuestion, nil
	}
	return IntentNote, nil
}

func intentLabel(content string) string {
	label := strings.TrimFunc(content, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	return strings.ToUpper(label)
}

// AnswerFromContext answers question using only the given grounding lines.
func (c *Classifier) AnswerFromContext(ctx context.Context, lines []string, question string) (string, error) {
	content, err := c.complete(ctx, "answer", llm.Request{
		System: llm.AnswerPrompt(strings.Join(lines, "\n")),
		User:   question,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// ExtractNote asks for a {title, content, reminder} object describing text.
// reference is the current local time (YYYY-MM-DDTHH:MM) in tz; relative
// phrases such as "tomorrow" or "in an hour" are resolved against it.
func (c *Classifier) ExtractNote(ctx context.Context, text, reference, tz string) (ExtractedNote, error) {
	content, err := c.complete(ctx, "extract", llm.Request{
		System: llm.ExtractionPrompt(reference, tz),
		User:   text,
		JSON:   true,
	})
	if err != nil {
		return ExtractedNote{}, err
	}

	note, err := parseExtraction(content)
	if err != nil {
		c.metrics.RecordClassifierFailure("extract")
		return ExtractedNote{}, fmt.Errorf("%w: extract note: %w", common.ErrClassifier, err)
	}
	return note, nil
}

func (c *Classifier) complete(ctx context.Context, op string, req llm.Request) (string, error) {
	start := time.Now()
	resp, err := c.client.Complete(ctx, req)
	c.metrics.RecordClassifierLatency(op, time.Since(start))
	if err != nil {
		c.metrics.RecordClassifierFailure(op)
		return "", fmt.Errorf("%w: %s: %w", common.ErrClassifier, op, err)
	}
	if resp == nil {
		c.metrics.RecordClassifierFailure(op)
		return "", fmt.Errorf("%w: %s: empty response", common.ErrClassifier, op)
	}
	return resp.Content, nil
}
