package llm

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractJSONObject returns, verbatim, the span of text from the first '{'
// to the last '}' if that span is valid JSON, or ok=false otherwise. LLM
// completions are frequently wrapped in prose or code fences. Unlike the
// sandbox's stdout protocol, which takes the last line starting with '{',
// this works on the whole response body, so text holding two separate
// objects yields ok=false.
func ExtractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	end := strings.LastIndexByte(text, '}')
	if end < start {
		return "", false
	}
	candidate := text[start : end+1]
	if !gjson.Valid(candidate) {
		return "", false
	}
	return candidate, true
}
