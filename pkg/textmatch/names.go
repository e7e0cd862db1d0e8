package textmatch

import "strings"

// NameMatchMethod identifies which cascade step matched a pair of names.
type NameMatchMethod string

const (
	MatchExact      NameMatchMethod = "exact"
	MatchSubstring  NameMatchMethod = "substring"
	MatchStructured NameMatchMethod = "structured"
	MatchTokens     NameMatchMethod = "token_jaccard"
	MatchNone       NameMatchMethod = "none"
)

// NameMatch is the result of the fuzzy name cascade.
type NameMatch struct {
	Matched    bool
	Confidence float64
	Method     NameMatchMethod
}

// CheckNameSimilarity runs the fuzzy name cascade: exact normalized,
// either-way substring (0.95), structured first/last comparison, then
// full-name token Jaccard >= 0.7.
func CheckNameSimilarity(a, b string) NameMatch {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return NameMatch{Method: MatchNone}
	}

	if na == nb {
		return NameMatch{Matched: true, Confidence: 1.0, Method: MatchExact}
	}

	if nameContains(na, nb) || nameContains(nb, na) {
		return NameMatch{Matched: true, Confidence: 0.95, Method: MatchSubstring}
	}

	if conf, ok := structuredMatch(na, nb); ok {
		return NameMatch{Matched: true, Confidence: conf, Method: MatchStructured}
	}

	if j := TokenJaccard(strings.Fields(na), strings.Fields(nb)); j >= 0.7 {
		return NameMatch{Matched: true, Confidence: j, Method: MatchTokens}
	}

	return NameMatch{Method: MatchNone}
}

// nameContains reports whether inner appears inside outer, either as a raw
// substring or as an ordered subset of outer's tokens. The token form covers
// middle-name insertions ("John Doe" inside "John A. Doe") that raw substring
// misses.
func nameContains(outer, inner string) bool {
	if strings.Contains(outer, inner) {
		return true
	}
	outerTokens := strings.Fields(outer)
	innerTokens := strings.Fields(inner)
	if len(innerTokens) == 0 || len(innerTokens) > len(outerTokens) {
		return false
	}
	i := 0
	for _, tok := range outerTokens {
		if tok == innerTokens[i] {
			i++
			if i == len(innerTokens) {
				return true
			}
		}
	}
	return false
}

// structuredMatch compares last names (equal or char-Jaccard >= 0.8) then
// first names (equal = 1.0, initial-of-other = 0.8, char-Jaccard >= 0.7).
func structuredMatch(na, nb string) (float64, bool) {
	tokensA := strings.Fields(na)
	tokensB := strings.Fields(nb)
	if len(tokensA) < 2 || len(tokensB) < 2 {
		return 0, false
	}

	lastA, lastB := tokensA[len(tokensA)-1], tokensB[len(tokensB)-1]
	lastConf := 0.0
	switch {
	case lastA == lastB:
		lastConf = 1.0
	default:
		if j := CharJaccard(lastA, lastB); j >= 0.8 {
			lastConf = j
		} else {
			return 0, false
		}
	}

	firstA, firstB := tokensA[0], tokensB[0]
	firstConf := 0.0
	switch {
	case firstA == firstB:
		firstConf = 1.0
	case isInitialOf(firstA, firstB) || isInitialOf(firstB, firstA):
		firstConf = 0.8
	default:
		if j := CharJaccard(firstA, firstB); j >= 0.7 {
			firstConf = j
		} else {
			return 0, false
		}
	}

	return (lastConf + firstConf) / 2, true
}

func isInitialOf(initial, full string) bool {
	return len(initial) == 1 && len(full) > 1 && initial[0] == full[0]
}
