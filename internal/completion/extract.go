package completion

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

var (
	// fencePattern matches an answer wrapped in ```json ... ``` or ``` ... ```.
	fencePattern = regexp.MustCompile("(?s)^```(?:json|JSON)?\\s*\\n?(.*?)\\s*```$")
	// objectPattern is the greedy fallback for prose around a JSON object.
	objectPattern = regexp.MustCompile(`(?s)\{.*\}`)
)

// StripFences removes a surrounding Markdown code fence, if any.
func StripFences(text string) string {
	t := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(t); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return t
}

// ParseAnswer returns the model's answer as JSON. It strips code fences and,
// when the answer has prose around it, falls back to the outermost object.
func ParseAnswer(text string) (json.RawMessage, bool) {
	stripped := StripFences(text)
	if isJSONObject(stripped) {
		return json.RawMessage(stripped), true
	}
	if m := objectPattern.FindString(stripped); m != "" && isJSONObject(m) {
		return json.RawMessage(m), true
	}
	return nil, false
}

func isJSONObject(s string) bool {
	b := bytes.TrimSpace([]byte(s))
	return len(b) > 0 && b[0] == '{' && json.Valid(b)
}
