package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/incidentwire/incidentwire/domain/schemas"
)

func testSchema(required, optional []string) *schemas.ExtractionSchema {
	return &schemas.ExtractionSchema{
		RequiredFields: required,
		OptionalFields: optional,
	}
}

func TestScoreConfidenceAllRequiredPresent(t *testing.T) {
	schema := testSchema([]string{"date", "state"}, nil)
	score, missing := scoreConfidence(map[string]any{
		"date":  "2024-02-14",
		"state": "TX",
	}, schema)
	assert.Empty(t, missing)
	assert.InDelta(t, 1.0, score, 0.001)
}

func TestScoreConfidenceMissingRequired(t *testing.T) {
	schema := testSchema([]string{"date", "state", "description"}, nil)
	score, missing := scoreConfidence(map[string]any{
		"date": "2024-02-14",
	}, schema)
	assert.ElementsMatch(t, []string{"state", "description"}, missing)
	assert.Less(t, score, 1.0)
}

func TestScoreConfidenceCriticalDoubleWeighted(t *testing.T) {
	schema := testSchema([]string{"date", "description"}, nil)

	// Missing a critical field costs more than missing a plain one.
	missingCritical, _ := scoreConfidence(map[string]any{"description": "x"}, schema)
	missingPlain, _ := scoreConfidence(map[string]any{"date": "2024-02-14"}, schema)
	assert.Less(t, missingCritical, missingPlain)
}

func TestScoreConfidenceOptionalBonusCapped(t *testing.T) {
	schema := testSchema([]string{"date"}, []string{"city", "county"})
	withBonus, _ := scoreConfidence(map[string]any{
		"date": "2024-02-14",
		"city": "Dallas",
	}, schema)
	full, _ := scoreConfidence(map[string]any{
		"date":   "2024-02-14",
		"city":   "Dallas",
		"county": "Dallas County",
	}, schema)
	// Bonus never pushes past 1.0.
	assert.LessOrEqual(t, withBonus, 1.0)
	assert.LessOrEqual(t, full, 1.0)
}

func TestScoreConfidenceBlendsLLMScore(t *testing.T) {
	schema := testSchema([]string{"date"}, nil)
	score, _ := scoreConfidence(map[string]any{
		"date":               "2024-02-14",
		"overall_confidence": 0.5,
	}, schema)
	// 0.6*1.0 + 0.4*0.5
	assert.InDelta(t, 0.8, score, 0.001)
}

func TestScoreConfidencePercentScaleLLMScore(t *testing.T) {
	schema := testSchema([]string{"date"}, nil)
	score, _ := scoreConfidence(map[string]any{
		"date":       "2024-02-14",
		"confidence": 50.0,
	}, schema)
	assert.InDelta(t, 0.8, score, 0.001)
}

func TestCrossFieldPenaltyChronology(t *testing.T) {
	p := crossFieldPenalty(map[string]any{
		"date":        "2024-02-14",
		"arrest_date": "2024-01-01",
	})
	assert.InDelta(t, 0.15, p, 0.001)
}

func TestCrossFieldPenaltyConvictionWithoutCharges(t *testing.T) {
	p := crossFieldPenalty(map[string]any{
		"disposition": "Convicted at trial",
	})
	assert.InDelta(t, 0.15, p, 0.001)

	none := crossFieldPenalty(map[string]any{
		"disposition": "Convicted at trial",
		"charges":     []any{"dui"},
	})
	assert.Equal(t, 0.0, none)
}

func TestCrossFieldPenaltyCapped(t *testing.T) {
	p := crossFieldPenalty(map[string]any{
		"date":            "2024-02-14",
		"arrest_date":     "2024-01-01",
		"conviction_date": "2024-01-02",
		"disposition":     "convicted",
	})
	assert.InDelta(t, penaltyCap, p, 0.001)
}

func TestNormalizeConfidence(t *testing.T) {
	assert.InDelta(t, 0.92, NormalizeConfidence(92), 0.001)
	assert.InDelta(t, 0.92, NormalizeConfidence(0.92), 0.001)
	assert.Equal(t, 0.0, NormalizeConfidence(-1))
	assert.Equal(t, 1.0, NormalizeConfidence(150))
}

func TestCoerceFields(t *testing.T) {
	defs := map[string]any{
		"offender_age": map[string]any{"type": "integer"},
		"latitude":     map[string]any{"type": "number"},
		"state":        map[string]any{"type": "string"},
	}
	data := map[string]any{
		"offender_age": "34",
		"latitude":     "32.78",
		"state":        float64(48),
	}
	errs := coerceFields(data, defs)
	assert.Empty(t, errs)
	assert.Equal(t, 34, data["offender_age"])
	assert.InDelta(t, 32.78, data["latitude"].(float64), 0.001)
	assert.Equal(t, "48", data["state"])
}

func TestCoerceFieldsFailure(t *testing.T) {
	defs := map[string]any{"offender_age": map[string]any{"type": "integer"}}
	data := map[string]any{"offender_age": "thirty-four"}
	errs := coerceFields(data, defs)
	assert.Len(t, errs, 1)
	assert.NotContains(t, data, "offender_age")
}
