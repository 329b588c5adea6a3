package llm

import "fmt"

// NoNotesPlaceholder stands in for the grounding context when the user has
// no notes yet.
const NoNotesPlaceholder = "No notes available."

// IntentPrompt is the system prompt for message intent classification.
func IntentPrompt() string {
	return `You must reply with exactly one word: "QUESTION" or "NOTE".

QUESTION = the user is looking for information they noted earlier.
NOTE = the user is handing over new information to remember.`
}

// AnswerPrompt is the system prompt for answering a question from the user's
// notes. context is the newline-joined grounding lines.
func AnswerPrompt(context string) string {
	if context == "" {
		context = NoNotesPlaceholder
	}
	return fmt.Sprintf(`You are a calm and reliable personal memory.

Here are the user's previous notes:
%s

Rules:
- Answer only with the information present above.
- Do not invent anything.
- If the information cannot be found, say so plainly.`, context)
}

// ExtractionPrompt is the system prompt for turning a message into a note.
// now is the current wall-clock time in tz, as YYYY-MM-DDTHH:MM.
func ExtractionPrompt(now, tz string) string {
	return fmt.Sprintf(`The current date and time is %s.
The user's time zone is %s.
All dates and times must be interpreted in this time zone.

You are a calm and reliable external memory. Every message becomes a note.

Fields:
- title
- content
- reminder (optional)

Rules:
- Never ask a question back.
- Make a reasonable assumption when a date is vague.
- If no date can be detected, use null.
- The content must contain the original message.

Reply STRICTLY with valid JSON in this format:

{
  "title": "...",
  "content": "...",
  "reminder": null | "YYYY-MM-DDTHH:MM"
}`, now, tz)
}
