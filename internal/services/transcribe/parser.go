package transcribe

import (
	"encoding/json"
	"strings"

	"github.com/talknote/talknote/internal/models"
)

// Result is the structured pair extracted from a raw transcription answer
type Result struct {
	Title         string `json:"title"`
	Transcription string `json:"transcription"`
}

// Parse extracts a {title, transcription} pair from the raw answer text.
// It locates the first balanced {...} substring and decodes it; a trimmed
// empty title is replaced with the placeholder. On any decoding failure the
// entire raw text becomes the transcription under the placeholder title.
// Parse never fails; the fallback is the defined recovery path.
func Parse(raw string) Result {
	if obj, ok := extractJSONObject(raw); ok {
		var result Result
		if err := json.Unmarshal([]byte(obj), &result); err == nil && result.Transcription != "" {
			result.Title = strings.TrimSpace(result.Title)
			if result.Title == "" {
				result.Title = models.DefaultTitle
			}
			return result
		}
	}
	return Result{
		Title:         models.DefaultTitle,
		Transcription: raw,
	}
}

// extractJSONObject returns the first balanced top-level {...} substring,
// skipping braces inside JSON string literals.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
