package extraction

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incidentwire/incidentwire/domain/schemas"
	"github.com/incidentwire/incidentwire/pkg/llm"
)

func stage2Schema(domain, category string) *schemas.ExtractionSchema {
	return &schemas.ExtractionSchema{
		ID:           uuid.New(),
		SchemaType:   schemas.TypeStage2,
		Name:         domain + "/" + category,
		DomainSlug:   domain,
		CategorySlug: category,
	}
}

func TestSelectSchemasExactMatch(t *testing.T) {
	crime := stage2Schema("immigration", "crime")
	prosecution := stage2Schema("criminal_justice", "prosecution")

	got := SelectSchemas(&Stage1Data{
		ClassificationHints: []ClassificationHint{
			{DomainSlug: "immigration", CategorySlug: "crime", Confidence: 0.9},
		},
	}, []*schemas.ExtractionSchema{crime, prosecution})

	require.Len(t, got, 1)
	assert.Equal(t, crime.ID, got[0].ID)
}

func TestSelectSchemasLowConfidenceHintDropped(t *testing.T) {
	crime := stage2Schema("immigration", "crime")
	got := SelectSchemas(&Stage1Data{
		ClassificationHints: []ClassificationHint{
			{DomainSlug: "immigration", CategorySlug: "crime", Confidence: 0.2},
		},
	}, []*schemas.ExtractionSchema{crime})
	assert.Empty(t, got)
}

func TestSelectSchemasDomainOnlyMatch(t *testing.T) {
	crime := stage2Schema("immigration", "crime")
	got := SelectSchemas(&Stage1Data{
		ClassificationHints: []ClassificationHint{
			// Category invented by the model; domain still routes.
			{DomainSlug: "immigration", CategorySlug: "made_up", Confidence: 0.8},
		},
	}, []*schemas.ExtractionSchema{crime})
	require.Len(t, got, 1)
}

func TestSelectSchemasCombinedSlugMatch(t *testing.T) {
	crime := stage2Schema("immigration", "crime")
	got := SelectSchemas(&Stage1Data{
		ClassificationHints: []ClassificationHint{
			{DomainSlug: "immigration_crime", Confidence: 0.8},
		},
	}, []*schemas.ExtractionSchema{crime})
	require.Len(t, got, 1)
}

func TestSelectSchemasRelevanceGate(t *testing.T) {
	crime := stage2Schema("immigration", "crime")
	hints := []ClassificationHint{
		{DomainSlug: "immigration", CategorySlug: "crime", Confidence: 0.9},
	}

	// No relevant domain at sufficient confidence selects nothing.
	got := SelectSchemas(&Stage1Data{
		ClassificationHints: hints,
		DomainRelevance: []DomainRelevance{
			{DomainSlug: "immigration", IsRelevant: true, Confidence: 0.4},
		},
	}, []*schemas.ExtractionSchema{crime})
	assert.Empty(t, got)

	// Relevant domain at 0.5+ lets the hint through.
	got = SelectSchemas(&Stage1Data{
		ClassificationHints: hints,
		DomainRelevance: []DomainRelevance{
			{DomainSlug: "immigration", IsRelevant: true, Confidence: 0.9},
		},
	}, []*schemas.ExtractionSchema{crime})
	require.Len(t, got, 1)

	// Hints outside the relevant domains are filtered.
	got = SelectSchemas(&Stage1Data{
		ClassificationHints: hints,
		DomainRelevance: []DomainRelevance{
			{DomainSlug: "civil_rights", IsRelevant: true, Confidence: 0.9},
		},
	}, []*schemas.ExtractionSchema{crime})
	assert.Empty(t, got)
}

func TestSelectSchemasDedup(t *testing.T) {
	crime := stage2Schema("immigration", "crime")
	got := SelectSchemas(&Stage1Data{
		ClassificationHints: []ClassificationHint{
			{DomainSlug: "immigration", CategorySlug: "crime", Confidence: 0.9},
			{DomainSlug: "immigration", CategorySlug: "enforcement", Confidence: 0.7},
		},
	}, []*schemas.ExtractionSchema{crime})
	require.Len(t, got, 1)
}

func TestSelectSchemasHintPrefixMatch(t *testing.T) {
	crime := stage2Schema("immigration", "crime")
	got := SelectSchemas(&Stage1Data{
		ClassificationHints: []ClassificationHint{
			{DomainSlug: "immigration_enforcement_raid", Confidence: 0.8},
		},
	}, []*schemas.ExtractionSchema{crime})
	require.Len(t, got, 1)
}

func TestSettleStage2Errors(t *testing.T) {
	rateLimit := &llm.Error{Category: llm.CategoryTransient, Code: "rate_limit", Message: "429"}
	noCredit := &llm.Error{Category: llm.CategoryPermanent, Code: "credit_balance_too_low", Message: "credit exhausted"}

	tests := []struct {
		name      string
		successes int
		errs      []error
		want      error
	}{
		{
			name:      "one schema failing does not fail the run",
			successes: 1,
			errs:      []error{rateLimit, nil},
			want:      nil,
		},
		{
			name:      "all schemas succeeded",
			successes: 2,
			errs:      []error{nil, nil},
			want:      nil,
		},
		{
			name:      "every schema failed surfaces the first error",
			successes: 0,
			errs:      []error{rateLimit, errors.New("boom")},
			want:      rateLimit,
		},
		{
			name:      "permanent error preferred over earlier transient",
			successes: 0,
			errs:      []error{rateLimit, noCredit},
			want:      noCredit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := settleStage2Errors(tt.successes, tt.errs)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFailedStage2RowRecordsCause(t *testing.T) {
	version := 3
	stage1 := &ArticleExtraction{ID: uuid.New(), Stage1SchemaVersion: &version}
	schema := stage2Schema("immigration", "crime")

	cause := &llm.Error{
		Category: llm.CategoryTransient,
		Code:     "rate_limit",
		Message:  "429 from provider",
		Provider: "anthropic",
	}
	row := failedStage2Row(stage1, schema, cause)

	assert.Equal(t, StatusFailed, row.Status)
	assert.Equal(t, stage1.ID, row.ArticleExtractionID)
	assert.Equal(t, schema.ID, row.SchemaID)
	require.NotNil(t, row.ErrorMessage)
	assert.Contains(t, *row.ErrorMessage, "rate_limit")
	require.NotNil(t, row.Provider)
	assert.Equal(t, "anthropic", *row.Provider)
	require.NotNil(t, row.Stage1Version)
	assert.Equal(t, 3, *row.Stage1Version)
}

func TestFailedStage2RowPlainError(t *testing.T) {
	stage1 := &ArticleExtraction{ID: uuid.New()}
	row := failedStage2Row(stage1, stage2Schema("immigration", "crime"), errors.New("boom"))

	assert.Equal(t, StatusFailed, row.Status)
	require.NotNil(t, row.ErrorMessage)
	assert.Equal(t, "boom", *row.ErrorMessage)
	assert.Nil(t, row.Provider)
}
