package extraction

import (
	"sort"
	"strings"

	"github.com/incidentwire/incidentwire/pkg/textmatch"
)

// Default domain priorities for cluster scoring and merge ordering.
// Overridable via SelectorConfig.
var defaultDomainPriorities = map[string]float64{
	"immigration":      100,
	"criminal_justice": 50,
	"civil_rights":     25,
}

const defaultDomainPriority = 10
const selectorConfidenceMin = 0.3
const immigrationMemberMin = 0.5

// Field names scanned, in order, for a result's primary person name.
var primaryNameFields = []string{
	"offender_name", "person_name", "defendant_name", "victim_name",
	"suspect_name", "individual_name", "name",
}

// CandidateResult is one Stage 2 result offered to the selector.
type CandidateResult struct {
	ExtractedData map[string]any
	Confidence    float64
	DomainSlug    string
	CategorySlug  string
	SchemaName    string
}

// MergedResult is the selector's output.
type MergedResult struct {
	ExtractedData map[string]any
	Confidence    float64
	MergeInfo     MergeInfo
}

// SelectorConfig allows reshaping domain priorities.
type SelectorConfig struct {
	DomainPriorities map[string]float64
}

// Selector clusters Stage 2 results by subject entity and merges the
// primary cluster into a single result.
type Selector struct {
	priorities map[string]float64
}

// NewSelector builds a selector; nil config uses default priorities.
func NewSelector(cfg *SelectorConfig) *Selector {
	priorities := defaultDomainPriorities
	if cfg != nil && len(cfg.DomainPriorities) > 0 {
		priorities = cfg.DomainPriorities
	}
	return &Selector{priorities: priorities}
}

// Select merges Stage 2 results into one, or returns nil when nothing
// usable remains after filtering.
func (s *Selector) Select(results []CandidateResult) *MergedResult {
	var usable []CandidateResult
	for _, r := range results {
		r.Confidence = NormalizeConfidence(r.Confidence)
		if r.Confidence >= selectorConfidenceMin {
			usable = append(usable, r)
		}
	}
	if len(usable) == 0 {
		return nil
	}

	clusters := s.cluster(usable)
	primary := s.pickPrimary(clusters)
	return s.merge(primary)
}

type cluster struct {
	name    string
	members []CandidateResult
}

// cluster groups results by matching primary person names. Results without
// a name share one nameless cluster.
func (s *Selector) cluster(results []CandidateResult) []*cluster {
	var clusters []*cluster
	var nameless *cluster

	for _, r := range results {
		name := primaryName(r.ExtractedData)
		if name == "" {
			if nameless == nil {
				nameless = &cluster{}
				clusters = append(clusters, nameless)
			}
			nameless.members = append(nameless.members, r)
			continue
		}

		placed := false
		for _, c := range clusters {
			if c.name != "" && namesMatch(c.name, name) {
				c.members = append(c.members, r)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, &cluster{name: name, members: []CandidateResult{r}})
		}
	}
	return clusters
}

// pickPrimary scores clusters by (has-immigration-member, weighted sum) and
// returns the winner.
func (s *Selector) pickPrimary(clusters []*cluster) *cluster {
	var best *cluster
	bestImmigration := false
	bestScore := -1.0

	for _, c := range clusters {
		hasImmigration := false
		score := 0.0
		for _, m := range c.members {
			score += s.priority(m.DomainSlug) * m.Confidence
			if m.DomainSlug == "immigration" && m.Confidence >= immigrationMemberMin {
				hasImmigration = true
			}
		}
		switch {
		case best == nil:
		case hasImmigration && !bestImmigration:
		case hasImmigration == bestImmigration && score > bestScore:
		default:
			continue
		}
		best = c
		bestImmigration = hasImmigration
		bestScore = score
	}
	return best
}

// merge folds the cluster's members onto the highest-priority base. Base
// fields are never overwritten; supplements only fill nulls and empties.
func (s *Selector) merge(c *cluster) *MergedResult {
	members := make([]CandidateResult, len(c.members))
	copy(members, c.members)
	sort.SliceStable(members, func(i, j int) bool {
		pi, pj := s.priority(members[i].DomainSlug), s.priority(members[j].DomainSlug)
		if pi != pj {
			return pi > pj
		}
		return members[i].Confidence > members[j].Confidence
	})

	base := members[0]
	merged := make(map[string]any, len(base.ExtractedData))
	for k, v := range base.ExtractedData {
		merged[k] = v
	}

	info := MergeInfo{ClusterEntity: c.name}

	if len(members) == 1 {
		info.Merged = false
		info.Sources = []MergeSource{sourceEntry(base, RoleSole)}
		return &MergedResult{
			ExtractedData: merged,
			Confidence:    base.Confidence,
			MergeInfo:     info,
		}
	}

	info.Merged = true
	info.Sources = append(info.Sources, sourceEntry(base, RoleBase))
	info.SchemasMerged = append(info.SchemasMerged, base.SchemaName)

	for _, m := range members[1:] {
		entry := sourceEntry(m, RoleSupplement)
		for k, v := range m.ExtractedData {
			if isEmptyValue(merged[k]) && !isEmptyValue(v) {
				merged[k] = v
				entry.FieldsContributed = append(entry.FieldsContributed, k)
			}
		}
		sort.Strings(entry.FieldsContributed)
		info.Sources = append(info.Sources, entry)
		info.SchemasMerged = append(info.SchemasMerged, m.SchemaName)
	}

	confidence := base.Confidence
	for _, m := range members {
		if m.DomainSlug == "immigration" && m.Confidence > confidence {
			confidence = m.Confidence
		}
	}

	return &MergedResult{
		ExtractedData: merged,
		Confidence:    confidence,
		MergeInfo:     info,
	}
}

func sourceEntry(r CandidateResult, role string) MergeSource {
	return MergeSource{
		SchemaName:   r.SchemaName,
		DomainSlug:   r.DomainSlug,
		CategorySlug: r.CategorySlug,
		Confidence:   r.Confidence,
		Role:         role,
	}
}

func (s *Selector) priority(domainSlug string) float64 {
	if p, ok := s.priorities[domainSlug]; ok {
		return p
	}
	return defaultDomainPriority
}

// primaryName scans the ordered name fields for a non-empty value.
func primaryName(data map[string]any) string {
	for _, field := range primaryNameFields {
		if v, ok := data[field].(string); ok && strings.TrimSpace(v) != "" {
			return textmatch.Normalize(v)
		}
	}
	return ""
}

// namesMatch applies the cluster matching rules: equal, substring either
// way, or equal last name with equal first initial.
func namesMatch(a, b string) bool {
	if a == b {
		return true
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	tokensA, tokensB := strings.Fields(a), strings.Fields(b)
	if len(tokensA) < 2 || len(tokensB) < 2 {
		return false
	}
	lastA, lastB := tokensA[len(tokensA)-1], tokensB[len(tokensB)-1]
	return lastA == lastB && tokensA[0][0] == tokensB[0][0]
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	default:
		return false
	}
}
