package extraction

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"markdown fence", "Here you go:\n```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"leading prose", `The result is {"a": 1}`, `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.in))
		})
	}
}

func TestRepairTruncatedJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{"already valid", `{"events": [{"type": "arrest"}]}`, true},
		{"open array and object", `{"events": [{"type": "arrest"`, true},
		{"open string", `{"events": [{"type": "arre`, true},
		{"trailing comma", `{"events": [{"type": "arrest"},`, true},
		{"dangling key", `{"events": [], "confidence":`, false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repaired, ok := repairTruncatedJSON(tt.in)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.True(t, json.Valid([]byte(repaired)))
			}
		})
	}
}

func TestRepairKeepsParsedContent(t *testing.T) {
	repaired, ok := repairTruncatedJSON(`{"entities": [{"name": "Juan Perez"}, {"name": "Dallas PD"`)
	require.True(t, ok)

	var data Stage1Data
	require.NoError(t, json.Unmarshal([]byte(repaired), &data))
	require.Len(t, data.Entities, 2)
	assert.Equal(t, "Dallas PD", data.Entities[1]["name"])
}
