package summarizer

import (
	"testing"
)

func TestParsePayload_StrictJSON(t *testing.T) {
	payload, err := parsePayload(`{"summary": "Great pork stew.", "sentiment": "positive", "keywords": ["stew", "service"]}`)
	if err != nil {
		t.Fatalf("parsePayload() error = %v", err)
	}
	if payload.Summary != "Great pork stew." {
		t.Errorf("Summary = %q", payload.Summary)
	}
	if payload.Sentiment != "positive" {
		t.Errorf("Sentiment = %q", payload.Sentiment)
	}
	if len(payload.Keywords) != 2 {
		t.Errorf("Keywords = %v", payload.Keywords)
	}
	if payload.Fallback {
		t.Error("Fallback should be false for a parsed payload")
	}
}

func TestParsePayload_MarkdownFence(t *testing.T) {
	raw := "```json\n{\"summary\": \"Fenced.\", \"sentiment\": \"neutral\"}\n```"
	payload, err := parsePayload(raw)
	if err != nil {
		t.Fatalf("parsePayload() error = %v", err)
	}
	if payload.Summary != "Fenced." {
		t.Errorf("Summary = %q", payload.Summary)
	}
}

func TestParsePayload_LargestSubstring(t *testing.T) {
	raw := `Sure! Here is the summary you asked for:
{"summary": "Buried in prose.", "sentiment": "negative"}
Hope that helps.`
	payload, err := parsePayload(raw)
	if err != nil {
		t.Fatalf("parsePayload() error = %v", err)
	}
	if payload.Summary != "Buried in prose." {
		t.Errorf("Summary = %q", payload.Summary)
	}
}

func TestParsePayload_BracesInsideStrings(t *testing.T) {
	raw := `noise {"summary": "uses {braces} inside", "sentiment": "neutral"} noise`
	payload, err := parsePayload(raw)
	if err != nil {
		t.Fatalf("parsePayload() error = %v", err)
	}
	if payload.Summary != "uses {braces} inside" {
		t.Errorf("Summary = %q", payload.Summary)
	}
}

func TestParsePayload_Unparseable(t *testing.T) {
	for _, raw := range []string{"", "not json at all", "{\"truncated\": ", "{}"} {
		if _, err := parsePayload(raw); err == nil {
			t.Errorf("parsePayload(%q) should fail", raw)
		}
	}
}

func TestParsePayload_SentimentNormalized(t *testing.T) {
	payload, err := parsePayload(`{"summary": "ok", "sentiment": "VERY POSITIVE!!"}`)
	if err != nil {
		t.Fatalf("parsePayload() error = %v", err)
	}
	if payload.Sentiment != "unknown" {
		t.Errorf("Sentiment = %q, want unknown for out-of-vocabulary values", payload.Sentiment)
	}
}

func TestStripFence(t *testing.T) {
	tests := []struct{ in, want string }{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{`{"a":1}`, `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := stripFence(tt.in); got != tt.want {
			t.Errorf("stripFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLargestObject(t *testing.T) {
	if got := largestObject(`{"a":1} and {"b": {"c": 2}}`); got != `{"b": {"c": 2}}` {
		t.Errorf("largestObject = %q, want the bigger object", got)
	}
	if got := largestObject("no objects here"); got != "" {
		t.Errorf("largestObject = %q, want empty", got)
	}
	if got := largestObject(`{"open": `); got != "" {
		t.Errorf("largestObject = %q, want empty for unbalanced input", got)
	}
}
