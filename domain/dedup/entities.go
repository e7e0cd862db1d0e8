package dedup

import (
	"fmt"
	"math"
	"strings"

	"github.com/incidentwire/incidentwire/pkg/textmatch"
)

// Incident types treated as related when not exactly equal.
var incidentTypeSynonyms = [][]string{
	{"murder", "homicide", "killing", "manslaughter"},
	{"dui", "dwi", "drunk_driving", "dui_fatality"},
	{"assault", "battery", "aggravated_assault"},
	{"rape", "sexual_assault", "sexual_abuse"},
	{"robbery", "armed_robbery", "theft"},
	{"deportation", "removal", "ice_arrest"},
}

// MatchEntities applies the tiered entity comparison: per-field match and
// confidence contributions, then tier decision rules. Returns the decision,
// the average confidence, and human-readable reasons.
func MatchEntities(a, b Entities) (bool, float64, []string) {
	matches := 0.0
	confidenceSum := 0.0
	nameMatched := false
	var reasons []string

	// Offender and victim names via the fuzzy cascade.
	for _, pair := range [][2]string{
		{a.OffenderName, b.OffenderName},
		{a.VictimName, b.VictimName},
	} {
		if pair[0] == "" || pair[1] == "" {
			continue
		}
		if m := textmatch.CheckNameSimilarity(pair[0], pair[1]); m.Matched {
			matches++
			confidenceSum += m.Confidence
			nameMatched = true
			reasons = append(reasons, fmt.Sprintf("name match (%s, %.2f)", m.Method, m.Confidence))
		}
	}

	if a.IncidentType != "" && b.IncidentType != "" {
		typeA := normalizeType(a.IncidentType)
		typeB := normalizeType(b.IncidentType)
		switch {
		case typeA == typeB:
			matches++
			confidenceSum += 1.0
			reasons = append(reasons, "incident type exact")
		case relatedTypes(typeA, typeB):
			matches += 0.5
			confidenceSum += 0.7
			reasons = append(reasons, "incident type related")
		}
	}

	if a.State != "" && b.State != "" && strings.EqualFold(a.State, b.State) {
		matches++
		confidenceSum += 1.0
		reasons = append(reasons, "state match")
		if a.City != "" && b.City != "" && strings.EqualFold(a.City, b.City) {
			// City agreement boosts confidence but is not its own match.
			confidenceSum += 0.2
			reasons = append(reasons, "city match")
		}
	}

	if a.Date != nil && b.Date != nil {
		days := math.Abs(a.Date.Sub(*b.Date).Hours() / 24)
		if days <= dateWindowDays {
			matches++
			confidenceSum += 1.0 - 0.5*(days/dateWindowDays)
			reasons = append(reasons, fmt.Sprintf("date within %.0f days", days))
		}
	}

	if matches == 0 {
		return false, 0, nil
	}
	avg := confidenceSum / matches
	if avg > 1.0 {
		avg = 1.0
	}

	switch {
	case nameMatched && matches >= 2:
		return true, avg, reasons
	case matches >= 3 && avg >= 0.7:
		return true, avg, reasons
	case matches >= 2 && avg >= 0.6:
		return true, avg, reasons
	}
	return false, avg, reasons
}

func normalizeType(s string) string {
	return strings.ReplaceAll(textmatch.Normalize(s), " ", "_")
}

func relatedTypes(a, b string) bool {
	for _, group := range incidentTypeSynonyms {
		inA, inB := false, false
		for _, t := range group {
			if t == a {
				inA = true
			}
			if t == b {
				inB = true
			}
		}
		if inA && inB {
			return true
		}
	}
	return false
}
