package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestMatchEntitiesNameStateDate(t *testing.T) {
	// Exact name, same state, one day apart: name 1.0, state 1.0,
	// date 1.0 - 0.5*(1/30). Average just under 1.0.
	a := Entities{OffenderName: "Juan Carlos Perez", State: "TX", Date: day(2025, 6, 1)}
	b := Entities{OffenderName: "Juan Carlos Perez", State: "TX", Date: day(2025, 6, 2)}

	ok, conf, reasons := MatchEntities(a, b)
	require.True(t, ok)
	assert.InDelta(t, 0.994, conf, 0.005)
	assert.Len(t, reasons, 3)
}

func TestMatchEntitiesRelatedTypes(t *testing.T) {
	a := Entities{IncidentType: "murder", State: "CA", Date: day(2025, 1, 10)}
	b := Entities{IncidentType: "homicide", State: "CA", Date: day(2025, 1, 12)}

	// Related type +0.5/+0.7, state +1/+1, date +1/~0.97:
	// matches 2.5, avg ~1.07 clamped to 1.0 contributions -> tier 2.
	ok, conf, _ := MatchEntities(a, b)
	require.True(t, ok)
	assert.LessOrEqual(t, conf, 1.0)
	assert.GreaterOrEqual(t, conf, 0.7)
}

func TestMatchEntitiesCityBoostsConfidenceOnly(t *testing.T) {
	a := Entities{State: "TX", City: "Dallas", Date: day(2025, 3, 1)}
	b := Entities{State: "TX", City: "Dallas", Date: day(2025, 3, 1)}

	// State and date are two matches; city adds confidence, not a match.
	ok, conf, reasons := MatchEntities(a, b)
	require.True(t, ok)
	// (1.0 + 0.2 + 1.0) / 2 clamped to 1.0.
	assert.Equal(t, 1.0, conf)
	assert.Contains(t, reasons, "city match")
}

func TestMatchEntitiesDateOutsideWindow(t *testing.T) {
	a := Entities{OffenderName: "John Smith", State: "NY", Date: day(2025, 1, 1)}
	b := Entities{OffenderName: "John Smith", State: "NY", Date: day(2025, 3, 15)}

	// Date contributes nothing; name + state still clear tier 1.
	ok, _, reasons := MatchEntities(a, b)
	require.True(t, ok)
	for _, reason := range reasons {
		assert.NotContains(t, reason, "date")
	}
}

func TestMatchEntitiesSingleMatchInsufficient(t *testing.T) {
	a := Entities{State: "FL"}
	b := Entities{State: "FL"}

	ok, _, _ := MatchEntities(a, b)
	assert.False(t, ok)
}

func TestMatchEntitiesNoOverlap(t *testing.T) {
	a := Entities{OffenderName: "John Smith", State: "TX"}
	b := Entities{OffenderName: "Robert Jones", State: "WA"}

	ok, conf, _ := MatchEntities(a, b)
	assert.False(t, ok)
	assert.Zero(t, conf)
}

func TestNormalizeType(t *testing.T) {
	assert.Equal(t, "aggravated_assault", normalizeType("Aggravated Assault"))
	assert.Equal(t, "dui", normalizeType("DUI"))
}

func TestRelatedTypes(t *testing.T) {
	assert.True(t, relatedTypes("murder", "homicide"))
	assert.True(t, relatedTypes("dui", "drunk_driving"))
	assert.False(t, relatedTypes("murder", "robbery"))
	assert.False(t, relatedTypes("murder", "murder")) // exact handled elsewhere, still related
}
