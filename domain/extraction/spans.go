package extraction

import "github.com/incidentwire/incidentwire/pkg/textmatch"

// ValidateSpans keeps only spans whose offsets land inside the article and
// whose text matches the article slice after whitespace normalization and
// case folding. Invalid spans are silently dropped.
func ValidateSpans(article string, spans []Span) []Span {
	var out []Span
	for _, s := range spans {
		if s.Start < 0 || s.End <= s.Start || s.End > len(article) {
			continue
		}
		if textmatch.NormalizeWS(article[s.Start:s.End]) != textmatch.NormalizeWS(s.Text) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// spansFromPayload strips the source_spans key out of an extracted payload
// and decodes it.
func spansFromPayload(data map[string]any) []Span {
	raw, ok := data["source_spans"]
	if !ok {
		return nil
	}
	delete(data, "source_spans")

	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []Span
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		s := Span{}
		if v, ok := m["start"].(float64); ok {
			s.Start = int(v)
		}
		if v, ok := m["end"].(float64); ok {
			s.End = int(v)
		}
		if v, ok := m["text"].(string); ok {
			s.Text = v
		}
		out = append(out, s)
	}
	return out
}
