package summarizer

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/nineylabs/placefeed/internal/models"
)

var errUnparseable = errors.New("response is not a JSON object")

// parsePayload turns a backend response into a structured payload. Three
// stages, each tried in order: strip a markdown fence, strict decode, then
// salvage the largest {...} substring. Failing all three is a parse failure
// the retry ladder handles, never a crash.
func parsePayload(raw string) (*models.SummaryPayload, error) {
	candidate := stripFence(raw)

	if payload, err := decodePayload(candidate); err == nil {
		return payload, nil
	}

	if obj := largestObject(candidate); obj != "" {
		if payload, err := decodePayload(obj); err == nil {
			return payload, nil
		}
	}
	return nil, errUnparseable
}

func decodePayload(s string) (*models.SummaryPayload, error) {
	var payload models.SummaryPayload
	dec := json.NewDecoder(strings.NewReader(s))
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Summary == "" {
		return nil, errUnparseable
	}
	payload.Sentiment = normalizeSentiment(payload.Sentiment)
	return &payload, nil
}

// stripFence removes a wrapping ```json ... ``` markdown fence if present.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// largestObject returns the longest balanced {...} substring, or "" when the
// input contains no complete object. String literals are skipped so braces
// inside values do not confuse the depth count.
func largestObject(s string) string {
	best := ""
	for start := 0; start < len(s); start++ {
		if s[start] != '{' {
			continue
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
					if i-start+1 > len(best) {
						best = s[start : i+1]
					}
					i = len(s)
				}
			}
		}
	}
	return best
}

func normalizeSentiment(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive":
		return "positive"
	case "negative":
		return "negative"
	case "neutral":
		return "neutral"
	case "mixed":
		return "mixed"
	default:
		return "unknown"
	}
}
