package extraction

import (
	"encoding/json"
	"strings"
)

// extractJSON pulls the first JSON object out of a model response, tolerating
// markdown fences and prose around it.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	} else if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+3:]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	}
	start := strings.Index(text, "{")
	if start < 0 {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[start:])
}

// repairTruncatedJSON closes open strings, brackets, and braces on a
// truncated JSON document. Returns the repaired text and whether it parses.
func repairTruncatedJSON(text string) (string, bool) {
	text = extractJSON(text)
	if text == "" {
		return "", false
	}

	// Quick accept when the document is already whole.
	if json.Valid([]byte(text)) {
		return text, true
	}

	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
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
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	repaired := text
	if escaped {
		repaired = repaired[:len(repaired)-1]
	}
	if inString {
		repaired += `"`
	}

	// Strip a dangling comma or key fragment before closing.
	repaired = strings.TrimRight(repaired, " \t\r\n")
	repaired = strings.TrimSuffix(repaired, ",")
	repaired = strings.TrimSuffix(repaired, ":")

	for i := len(stack) - 1; i >= 0; i-- {
		switch stack[i] {
		case '{':
			repaired += "}"
		case '[':
			repaired += "]"
		}
	}

	return repaired, json.Valid([]byte(repaired))
}
