package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorLowConfidenceFiltered(t *testing.T) {
	s := NewSelector(nil)
	got := s.Select([]CandidateResult{
		{ExtractedData: map[string]any{"offender_name": "Juan Perez"}, Confidence: 0.2, DomainSlug: "immigration"},
	})
	assert.Nil(t, got)
}

func TestSelectorNormalizesPercentConfidence(t *testing.T) {
	s := NewSelector(nil)
	got := s.Select([]CandidateResult{
		{ExtractedData: map[string]any{"offender_name": "Juan Perez"}, Confidence: 92, DomainSlug: "immigration", SchemaName: "immigration/crime"},
	})
	require.NotNil(t, got)
	assert.InDelta(t, 0.92, got.Confidence, 0.001)
	assert.False(t, got.MergeInfo.Merged)
	require.Len(t, got.MergeInfo.Sources, 1)
	assert.Equal(t, RoleSole, got.MergeInfo.Sources[0].Role)
}

func TestSelectorCrossContaminationBlocked(t *testing.T) {
	s := NewSelector(nil)
	got := s.Select([]CandidateResult{
		{
			ExtractedData: map[string]any{"offender_name": "Juan Perez", "state": "TX"},
			Confidence:    0.88,
			DomainSlug:    "immigration",
			CategorySlug:  "crime",
			SchemaName:    "immigration/crime",
		},
		{
			ExtractedData: map[string]any{"defendant_name": "John Smith", "charges": []any{"fraud"}},
			Confidence:    0.95,
			DomainSlug:    "criminal_justice",
			CategorySlug:  "prosecution",
			SchemaName:    "criminal_justice/prosecution",
		},
	})
	require.NotNil(t, got)

	// The immigration cluster wins despite lower raw confidence, and the
	// other subject's fields must not leak in.
	assert.Equal(t, "Juan Perez", got.ExtractedData["offender_name"])
	assert.NotContains(t, got.ExtractedData, "defendant_name")
	assert.NotContains(t, got.ExtractedData, "charges")
	assert.InDelta(t, 0.88, got.Confidence, 0.001)
}

func TestSelectorMergeSameSubject(t *testing.T) {
	s := NewSelector(nil)
	got := s.Select([]CandidateResult{
		{
			ExtractedData: map[string]any{"offender_name": "Juan Perez", "state": "TX", "city": ""},
			Confidence:    0.8,
			DomainSlug:    "immigration",
			SchemaName:    "immigration/crime",
		},
		{
			ExtractedData: map[string]any{"defendant_name": "Juan A. Perez", "city": "Dallas", "state": "CA", "charges": []any{"dui"}},
			Confidence:    0.9,
			DomainSlug:    "criminal_justice",
			SchemaName:    "criminal_justice/prosecution",
		},
	})
	require.NotNil(t, got)
	assert.True(t, got.MergeInfo.Merged)

	// Immigration member is the base by domain priority; its non-empty
	// fields survive, empties are supplemented.
	assert.Equal(t, "TX", got.ExtractedData["state"])
	assert.Equal(t, "Dallas", got.ExtractedData["city"])
	assert.Equal(t, []any{"dui"}, got.ExtractedData["charges"])

	require.Len(t, got.MergeInfo.Sources, 2)
	assert.Equal(t, RoleBase, got.MergeInfo.Sources[0].Role)
	assert.Equal(t, RoleSupplement, got.MergeInfo.Sources[1].Role)
	assert.ElementsMatch(t, []string{"city", "charges", "defendant_name"}, got.MergeInfo.Sources[1].FieldsContributed)
}

func TestSelectorConfidenceRaisedToImmigrationMax(t *testing.T) {
	s := NewSelector(nil)
	got := s.Select([]CandidateResult{
		{
			ExtractedData: map[string]any{"offender_name": "Juan Perez"},
			Confidence:    0.6,
			DomainSlug:    "immigration",
			SchemaName:    "a",
		},
		{
			ExtractedData: map[string]any{"offender_name": "Juan Perez", "state": "TX"},
			Confidence:    0.85,
			DomainSlug:    "immigration",
			SchemaName:    "b",
		},
	})
	require.NotNil(t, got)
	// Base is the higher-confidence immigration member; merged confidence
	// equals the max immigration confidence.
	assert.InDelta(t, 0.85, got.Confidence, 0.001)
}

func TestNamesMatch(t *testing.T) {
	assert.True(t, namesMatch("juan perez", "juan perez"))
	assert.True(t, namesMatch("juan perez", "juan a perez"))
	assert.True(t, namesMatch("j perez", "juan perez"))
	assert.False(t, namesMatch("juan perez", "john smith"))
}

func TestPrimaryNameFieldOrder(t *testing.T) {
	name := primaryName(map[string]any{
		"victim_name":   "Jane Roe",
		"offender_name": "Juan Perez",
	})
	assert.Equal(t, "juan perez", name)

	assert.Equal(t, "", primaryName(map[string]any{"state": "TX"}))
}
