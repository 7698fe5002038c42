package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/ipdd/internal/doc"
)

// ErrUnparseable is returned when no JSON object can be recovered from a response
var ErrUnparseable = errors.New("generator response is not a JSON object")

// ParseDocument recovers the report object from raw generator text. It tries
// a strict parse, then the body of a code fence, then the span from the first
// "{" to the last "}". The result is always a mapping.
func ParseDocument(raw string) (*doc.Node, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty response", ErrUnparseable)
	}

	candidates := []string{raw}
	if stripped := stripCodeFences(raw); stripped != raw {
		candidates = append(candidates, stripped)
	}
	if block := extractJSONBlock(raw); block != "" && block != raw {
		candidates = append(candidates, block)
	}

	var lastErr error
	for _, c := range candidates {
		n, err := doc.Parse([]byte(c))
		if err != nil {
			lastErr = err
			continue
		}
		if !n.IsMapping() {
			lastErr = fmt.Errorf("top-level value is %s", n.Kind)
			continue
		}
		return n, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnparseable, lastErr)
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

func extractJSONBlock(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return ""
	}
	return strings.TrimSpace(s[start : end+1])
}
