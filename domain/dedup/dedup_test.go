package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareURLMatch(t *testing.T) {
	d := NewDetector()
	a := &Candidate{ID: "a", URL: "https://news.example.com/story-1"}
	b := &Candidate{ID: "b", URL: "https://news.example.com/story-1"}

	res := d.Compare(a, b)
	require.True(t, res.IsDuplicate)
	assert.Equal(t, MatchURL, res.MatchType)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, "b", res.MatchedID)
}

func TestCompareTitleMatch(t *testing.T) {
	d := NewDetector()
	a := &Candidate{
		ID:    "a",
		URL:   "https://one.example.com/x",
		Title: "Suspect arrested after downtown shooting leaves victim injured",
	}
	b := &Candidate{
		ID:    "b",
		URL:   "https://two.example.com/y",
		Title: "Suspect arrested after downtown shooting leaves victim hospitalized",
	}

	res := d.Compare(a, b)
	require.True(t, res.IsDuplicate)
	assert.Equal(t, MatchTitle, res.MatchType)
	assert.GreaterOrEqual(t, res.Confidence, DefaultTitleThreshold)
}

func TestCompareTitleBelowThreshold(t *testing.T) {
	d := NewDetector()
	a := &Candidate{ID: "a", URL: "https://one.example.com/x", Title: "City council votes on new budget proposal"}
	b := &Candidate{ID: "b", URL: "https://two.example.com/y", Title: "Suspect arrested after downtown shooting incident"}

	res := d.Compare(a, b)
	assert.False(t, res.IsDuplicate)
}

func TestCompareContentMatch(t *testing.T) {
	d := NewDetector()
	body := "Federal agents arrested a man on Tuesday morning after a lengthy " +
		"investigation into a series of robberies across the metropolitan area. " +
		"Officials said the suspect had been under surveillance for several weeks " +
		"before the operation concluded without further incident near the river."
	a := &Candidate{ID: "a", URL: "https://one.example.com/x", Title: "Arrest made", Content: body}
	b := &Candidate{ID: "b", URL: "https://two.example.com/y", Title: "Man in custody", Content: body}

	res := d.Compare(a, b)
	require.True(t, res.IsDuplicate)
	assert.Equal(t, MatchContent, res.MatchType)
	assert.InDelta(t, 1.0, res.Confidence, 0.001)
}

func TestCompareEntityFallback(t *testing.T) {
	d := NewDetector()
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	a := &Candidate{
		ID:    "a",
		URL:   "https://one.example.com/x",
		Title: "Local man charged in fatal crash",
		Entities: Entities{
			OffenderName: "Juan Carlos Perez",
			State:        "TX",
			Date:         &date,
		},
	}
	later := date.AddDate(0, 0, 1)
	b := &Candidate{
		ID:    "b",
		URL:   "https://two.example.com/y",
		Title: "Driver faces charges after deadly collision",
		Entities: Entities{
			OffenderName: "Juan Carlos Perez",
			State:        "TX",
			Date:         &later,
		},
	}

	res := d.Compare(a, b)
	require.True(t, res.IsDuplicate)
	assert.Equal(t, MatchEntity, res.MatchType)
	assert.NotEmpty(t, res.Reasons)
}

func TestFindInBatchCollapsesChains(t *testing.T) {
	d := NewDetector()
	a := &Candidate{ID: "a", URL: "https://example.com/s"}
	b := &Candidate{ID: "b", URL: "https://example.com/s"}
	c := &Candidate{ID: "c", URL: "https://example.com/s"}

	out := d.FindInBatch([]*Candidate{a, b, c})
	require.Len(t, out, 2)
	assert.Equal(t, "a", out["b"].MatchedID)
	// c matches a, not b, because b is already marked duplicate.
	assert.Equal(t, "a", out["c"].MatchedID)
}

func TestFindInBatchNoMatches(t *testing.T) {
	d := NewDetector()
	out := d.FindInBatch([]*Candidate{
		{ID: "a", URL: "https://one.example.com", Title: "Mayor announces citywide transit expansion"},
		{ID: "b", URL: "https://two.example.com", Title: "Storm causes widespread flooding along coast"},
	})
	assert.Empty(t, out)
}
