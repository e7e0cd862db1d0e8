package approval

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDecider() *Decider {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewDecider(DefaultConfig(), nil, log)
}

func TestDecideHappyPathCrime(t *testing.T) {
	d := newTestDecider()
	extraction := map[string]any{
		"is_relevant":        true,
		"offender_name":      "Juan Perez",
		"offender_age":       34.0,
		"prior_deportations": 2.0,
		"state":              "TX",
		"city":               "Dallas",
		"date":               "2024-02-14",
		"incident_type":      "dui_fatality",
		"overall_confidence": 0.92,
	}

	res := d.Decide(context.Background(), extraction, CategoryCrime, nil, nil)
	assert.Equal(t, DecisionAutoApprove, res.Decision)
	assert.Equal(t, 0.92, res.Confidence)
	assert.Equal(t, 8, res.Details["severity"])
}

func TestDecideBelowRejectThreshold(t *testing.T) {
	d := newTestDecider()
	extraction := map[string]any{
		"is_relevant":        true,
		"overall_confidence": 0.22,
		"date":               "2024-05-01",
		"state":              "NV",
	}

	res := d.Decide(context.Background(), extraction, CategoryCrime, nil, nil)
	assert.Equal(t, DecisionAutoReject, res.Decision)
	assert.Equal(t, "Extraction confidence (22%) below threshold", res.Reason)
}

func TestDecideNotRelevant(t *testing.T) {
	d := newTestDecider()
	res := d.Decide(context.Background(), map[string]any{
		"is_relevant":        false,
		"overall_confidence": 0.95,
	}, CategoryCrime, nil, nil)
	assert.Equal(t, DecisionAutoReject, res.Decision)
}

func TestDecideMissingRequiredFields(t *testing.T) {
	d := newTestDecider()
	extraction := map[string]any{
		"is_relevant":        true,
		"overall_confidence": 0.92,
		"date":               "2024-02-14",
		"state":              "TX",
		// crime also requires incident_type and offender_name
	}

	res := d.Decide(context.Background(), extraction, CategoryCrime, nil, nil)
	require.Equal(t, DecisionNeedsReview, res.Decision)
	missing := res.Details["missing_fields"].([]string)
	assert.Contains(t, missing, "incident_type")
	assert.Contains(t, missing, "offender_name")
}

func TestDecideLowFieldConfidence(t *testing.T) {
	d := newTestDecider()
	extraction := map[string]any{
		"is_relevant":        true,
		"overall_confidence": 0.92,
		"date":               "2024-02-14",
		"state":              "TX",
		"incident_type":      "assault",
		"offender_name":      "John Smith",
		"field_confidence":   map[string]any{"state": 0.4},
	}

	res := d.Decide(context.Background(), extraction, CategoryCrime, nil, nil)
	require.Equal(t, DecisionNeedsReview, res.Decision)
	assert.Equal(t, []string{"state"}, res.Details["low_confidence_fields"])
}

func TestDecideFlatFieldConfidenceKey(t *testing.T) {
	d := newTestDecider()
	extraction := map[string]any{
		"is_relevant":        true,
		"overall_confidence": 0.92,
		"date":               "2024-02-14",
		"date_confidence":    0.5,
		"state":              "TX",
		"incident_type":      "assault",
		"offender_name":      "John Smith",
	}

	res := d.Decide(context.Background(), extraction, CategoryCrime, nil, nil)
	require.Equal(t, DecisionNeedsReview, res.Decision)
	assert.Equal(t, []string{"date"}, res.Details["low_confidence_fields"])
}

func TestDecideNormalization(t *testing.T) {
	d := newTestDecider()
	extraction := map[string]any{
		"is_relevant": true,
		"confidence":  0.92,
		"date":        "2024-02-14",
		"location":    map[string]any{"state": "TX", "city": "Dallas"},
		"charges":     []any{"aggravated assault"},
		"offender_name": "John Smith",
	}

	res := d.Decide(context.Background(), extraction, CategoryCrime, nil, nil)
	assert.Equal(t, DecisionAutoApprove, res.Decision)
	assert.Equal(t, 0.92, res.Confidence)
}

func TestDecidePercentScaleConfidence(t *testing.T) {
	d := newTestDecider()
	extraction := map[string]any{
		"is_relevant":        true,
		"overall_confidence": 92.0,
		"date":               "2024-02-14",
		"state":              "TX",
		"incident_type":      "homicide",
		"offender_name":      "John Smith",
	}

	res := d.Decide(context.Background(), extraction, CategoryCrime, nil, nil)
	assert.Equal(t, DecisionAutoApprove, res.Decision)
	assert.InDelta(t, 0.92, res.Confidence, 0.001)
}

func TestDecideMidBandNeedsReview(t *testing.T) {
	d := newTestDecider()
	extraction := map[string]any{
		"is_relevant":        true,
		"overall_confidence": 0.6,
		"date":               "2024-02-14",
		"state":              "TX",
		"incident_type":      "homicide",
		"offender_name":      "John Smith",
	}

	res := d.Decide(context.Background(), extraction, CategoryCrime, nil, nil)
	assert.Equal(t, DecisionNeedsReview, res.Decision)
}

func TestDecideEnforcementHigherBar(t *testing.T) {
	d := newTestDecider()
	extraction := map[string]any{
		"is_relevant":        true,
		"overall_confidence": 0.87,
		"date":               "2024-02-14",
		"state":              "TX",
		"incident_type":      "ice_raid",
	}

	// 0.87 clears crime's 0.85 but not enforcement's 0.90.
	res := d.Decide(context.Background(), extraction, CategoryEnforcement, nil, nil)
	assert.Equal(t, DecisionNeedsReview, res.Decision)
}

func TestDecideMonotonicity(t *testing.T) {
	d := newTestDecider()
	base := map[string]any{
		"is_relevant":   true,
		"date":          "2024-02-14",
		"state":         "TX",
		"incident_type": "homicide",
		"offender_name": "John Smith",
	}

	rank := func(decision string) int {
		switch decision {
		case DecisionAutoReject:
			return 0
		case DecisionNeedsReview:
			return 1
		default:
			return 2
		}
	}

	prev := -1
	for _, conf := range []float64{0.1, 0.3, 0.5, 0.7, 0.85, 0.95} {
		extraction := map[string]any{}
		for k, v := range base {
			extraction[k] = v
		}
		extraction["overall_confidence"] = conf
		res := d.Decide(context.Background(), extraction, CategoryCrime, nil, nil)
		require.GreaterOrEqual(t, rank(res.Decision), prev,
			"decision regressed at confidence %.2f", conf)
		prev = rank(res.Decision)
	}
}

func TestSeverityOf(t *testing.T) {
	assert.Equal(t, 10, SeverityOf("homicide"))
	assert.Equal(t, 10, SeverityOf("vehicular homicide"))
	assert.Equal(t, 8, SeverityOf("dui_fatality"))
	assert.Equal(t, 6, SeverityOf("dui"))
	assert.Equal(t, 3, SeverityOf("vandalism"))
	assert.Equal(t, 3, SeverityOf(""))
}
