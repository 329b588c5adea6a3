package classifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lazypower/mnemo/internal/clock"
)

// parseExtraction decodes the extraction object. The response might be
// wrapped in markdown code fences. Every field must be present with the
// right type; a malformed reminder is rejected here rather than dropped.
func parseExtraction(content string) (ExtractedNote, error) {
	content = strings.TrimSpace(content)

	// Strip markdown code fences if present
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}

	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ExtractedNote{}, fmt.Errorf("no JSON object found in response")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return ExtractedNote{}, fmt.Errorf("unmarshal extraction: %w", err)
	}

	var note ExtractedNote
	var err error
	if note.Title, err = requiredString(raw, "title"); err != nil {
		return ExtractedNote{}, err
	}
	if note.Content, err = requiredString(raw, "content"); err != nil {
		return ExtractedNote{}, err
	}

	reminder, ok := raw["reminder"]
	if !ok {
		return ExtractedNote{}, fmt.Errorf("missing field %q", "reminder")
	}
	if string(reminder) == "null" {
		return note, nil
	}
	var r string
	if err := json.Unmarshal(reminder, &r); err != nil {
		return ExtractedNote{}, fmt.Errorf("field %q: want string or null", "reminder")
	}
	r = strings.TrimSpace(r)
	if r == "" {
		return note, nil
	}
	if _, err := clock.ParseLocal(r); err != nil {
		return ExtractedNote{}, fmt.Errorf("field %q: %w", "reminder", err)
	}
	note.Reminder = &r
	return note, nil
}

func requiredString(raw map[string]json.RawMessage, field string) (string, error) {
	v, ok := raw[field]
	if !ok {
		return "", fmt.Errorf("missing field %q", field)
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", fmt.Errorf("field %q: want string", field)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("field %q is empty", field)
	}
	return s, nil
}
