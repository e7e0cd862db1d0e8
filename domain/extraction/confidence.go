package extraction

import (
	"fmt"
	"strings"
	"time"

	"github.com/incidentwire/incidentwire/domain/schemas"
)

// Fields weighted double when scoring required-field presence.
var criticalFields = map[string]bool{
	"date":          true,
	"state":         true,
	"incident_type": true,
	"offender_name": true,
}

const (
	optionalBonusMax   = 0.15
	penaltyCap         = 0.3
	fieldWeightWithLLM = 0.6
	llmWeight          = 0.4
)

// scoreConfidence computes a Stage 2 result confidence: weighted
// required-field presence, an optional-field bonus, an optional blend with
// the model's self-reported confidence, and cross-field penalties. Returns
// the score and the list of missing required fields.
func scoreConfidence(data map[string]any, schema *schemas.ExtractionSchema) (float64, []string) {
	var missing []string
	weightTotal := 0.0
	weightPresent := 0.0
	for _, field := range schema.RequiredFields {
		w := 1.0
		if criticalFields[field] {
			w = 2.0
		}
		weightTotal += w
		if hasValue(data, field) {
			weightPresent += w
		} else {
			missing = append(missing, field)
		}
	}

	fieldScore := 1.0
	if weightTotal > 0 {
		fieldScore = weightPresent / weightTotal
	}

	bonus := 0.0
	if n := len(schema.OptionalFields); n > 0 {
		present := 0
		for _, field := range schema.OptionalFields {
			if hasValue(data, field) {
				present++
			}
		}
		bonus = optionalBonusMax * float64(present) / float64(n)
	}
	fieldScore += bonus
	if fieldScore > 1.0 {
		fieldScore = 1.0
	}

	score := fieldScore
	if llmConf, ok := reportedConfidence(data); ok {
		score = fieldWeightWithLLM*fieldScore + llmWeight*llmConf
	}

	score -= crossFieldPenalty(data)
	if score < 0 {
		score = 0
	}
	return score, missing
}

// reportedConfidence reads the model's own confidence score, normalizing a
// 0-100 scale to 0-1.
func reportedConfidence(data map[string]any) (float64, bool) {
	for _, key := range []string{"overall_confidence", "confidence"} {
		if v, ok := data[key].(float64); ok {
			return NormalizeConfidence(v), true
		}
	}
	return 0, false
}

// NormalizeConfidence maps a 0-100 score down to 0-1 and clamps.
func NormalizeConfidence(v float64) float64 {
	if v > 1.0 {
		v = v / 100.0
	}
	if v < 0 {
		return 0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}

// crossFieldPenalty applies consistency penalties, capped.
func crossFieldPenalty(data map[string]any) float64 {
	penalty := 0.0

	// Dates must be chronologically consistent.
	incidentDate, okA := parseAnyDate(data["date"])
	arrestDate, okB := parseAnyDate(data["arrest_date"])
	if okA && okB && arrestDate.Before(incidentDate) {
		penalty += 0.15
	}
	convictionDate, okC := parseAnyDate(data["conviction_date"])
	if okA && okC && convictionDate.Before(incidentDate) {
		penalty += 0.15
	}

	// A conviction without charges is suspect.
	if disposition, ok := data["disposition"].(string); ok &&
		strings.Contains(strings.ToLower(disposition), "convicted") && !hasValue(data, "charges") {
		penalty += 0.15
	}

	if penalty > penaltyCap {
		penalty = penaltyCap
	}
	return penalty
}

func parseAnyDate(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "01/02/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// hasValue reports whether a field is present and non-empty.
func hasValue(data map[string]any, field string) bool {
	v, ok := data[field]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// coerceFields applies field_definitions type coercions in place, returning
// validation errors for values that cannot be coerced.
func coerceFields(data map[string]any, defs map[string]any) []string {
	var errs []string
	for field, rawDef := range defs {
		def, ok := rawDef.(map[string]any)
		if !ok {
			continue
		}
		wantType, _ := def["type"].(string)
		v, present := data[field]
		if !present || v == nil {
			continue
		}
		switch wantType {
		case "integer":
			switch t := v.(type) {
			case float64:
				data[field] = int(t)
			case string:
				var n int
				if _, err := fmt.Sscanf(strings.TrimSpace(t), "%d", &n); err == nil {
					data[field] = n
				} else {
					errs = append(errs, fmt.Sprintf("field %s: cannot coerce %q to integer", field, t))
					delete(data, field)
				}
			}
		case "number":
			if t, ok := v.(string); ok {
				var f float64
				if _, err := fmt.Sscanf(strings.TrimSpace(t), "%g", &f); err == nil {
					data[field] = f
				} else {
					errs = append(errs, fmt.Sprintf("field %s: cannot coerce %q to number", field, t))
					delete(data, field)
				}
			}
		case "string":
			switch t := v.(type) {
			case string:
			default:
				data[field] = fmt.Sprint(t)
			}
		}
	}
	return errs
}
