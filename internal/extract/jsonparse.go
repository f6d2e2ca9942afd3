package extract

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/vialcheck/vialcheck-cli/internal/model"
)

// decodeRecord parses a provider's raw text response into an
// ExtractionRecord. Markdown code fences around the JSON payload are
// stripped first; models wrap responses in them regardless of instructions.
func decodeRecord(provider, text string) (*model.ExtractionRecord, error) {
	cleaned := stripCodeFence(text)

	var rec model.ExtractionRecord
	if err := json.Unmarshal([]byte(cleaned), &rec); err != nil {
		return nil, &ParseError{
			Provider: provider,
			Snippet:  snippet(cleaned),
			Err:      err,
		}
	}
	if !rec.TaskNumber.IsSet() {
		return nil, &ParseError{
			Provider: provider,
			Snippet:  snippet(cleaned),
			Err:      eris.New("missing task_number"),
		}
	}
	return &rec, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence, leaving the
// payload untouched otherwise.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	// Drop the opening fence line (which may carry a language tag) and the
	// closing fence line.
	body := lines[1:]
	if strings.HasPrefix(strings.TrimSpace(body[len(body)-1]), "```") {
		body = body[:len(body)-1]
	}
	inner := strings.TrimSpace(strings.Join(body, "\n"))
	inner = strings.TrimPrefix(inner, "json")
	return strings.TrimSpace(inner)
}

func snippet(s string) string {
	const max = 120
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
