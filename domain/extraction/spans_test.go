package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSpans(t *testing.T) {
	article := "Juan Perez, 34, was charged with DUI fatality in Dallas."

	valid := Span{Start: 0, End: 10, Text: "Juan Perez"}
	caseInsensitive := Span{Start: 0, End: 10, Text: "juan perez"}
	wrongText := Span{Start: 0, End: 10, Text: "John Smith"}
	outOfRange := Span{Start: 40, End: 100, Text: "Dallas"}
	inverted := Span{Start: 10, End: 5, Text: "Perez"}
	negative := Span{Start: -1, End: 4, Text: "Juan"}

	got := ValidateSpans(article, []Span{valid, caseInsensitive, wrongText, outOfRange, inverted, negative})
	require.Len(t, got, 2)
	assert.Equal(t, valid, got[0])
	assert.Equal(t, caseInsensitive, got[1])
}

func TestValidateSpansWhitespaceNormalized(t *testing.T) {
	article := "charged  with\nDUI"
	span := Span{Start: 0, End: len(article), Text: "charged with DUI"}
	got := ValidateSpans(article, []Span{span})
	assert.Len(t, got, 1)
}

func TestSpansFromPayload(t *testing.T) {
	data := map[string]any{
		"offender_name": "Juan Perez",
		"source_spans": []any{
			map[string]any{"start": float64(0), "end": float64(10), "text": "Juan Perez"},
		},
	}
	spans := spansFromPayload(data)
	require.Len(t, spans, 1)
	assert.Equal(t, Span{Start: 0, End: 10, Text: "Juan Perez"}, spans[0])

	// The key is stripped from the payload.
	assert.NotContains(t, data, "source_spans")
}
