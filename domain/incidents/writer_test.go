package incidents

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/incidentwire/incidentwire/domain/taxonomy"
)

func TestLegacyCategory(t *testing.T) {
	assert.Equal(t, CategoryCrime, legacyCategory(taxonomy.DomainImmigration, nil))
	assert.Equal(t, CategoryCrime, legacyCategory(taxonomy.DomainCriminalJustice, nil))
	assert.Equal(t, CategoryEnforcement, legacyCategory(taxonomy.DomainCivilRights, nil))
	assert.Equal(t, CategoryCrime, legacyCategory("unknown_domain", nil))

	override := &WriteOverrides{Category: CategoryEnforcement}
	assert.Equal(t, CategoryEnforcement, legacyCategory(taxonomy.DomainImmigration, override))
}

func TestResolveTaxonomy(t *testing.T) {
	w := &Writer{}

	t.Run("merge info source wins", func(t *testing.T) {
		mergeInfo := map[string]any{
			"sources": []any{
				map[string]any{"schema_name": "s1", "domain_slug": "civil_rights", "category_slug": "ice_raid"},
			},
		}
		extracted := map[string]any{
			"classification_hints": []any{
				map[string]any{"domain_slug": "immigration", "category_slug": "deportation"},
			},
		}
		domain, category := w.resolveTaxonomy(extracted, mergeInfo)
		assert.Equal(t, "civil_rights", domain)
		assert.Equal(t, "ice_raid", category)
	})

	t.Run("classification hint second", func(t *testing.T) {
		extracted := map[string]any{
			"classification_hints": []any{
				map[string]any{"domain_slug": "criminal-justice", "category_slug": "violent crime"},
			},
		}
		domain, category := w.resolveTaxonomy(extracted, map[string]any{})
		assert.Equal(t, "criminal_justice", domain)
		assert.Equal(t, "violent_crime", category)
	})

	t.Run("first extracted category third", func(t *testing.T) {
		extracted := map[string]any{
			"categories": []any{"deportation", "detention"},
		}
		domain, category := w.resolveTaxonomy(extracted, map[string]any{})
		assert.Equal(t, taxonomy.DomainImmigration, domain)
		assert.Equal(t, "deportation", category)
	})

	t.Run("immigration fallback", func(t *testing.T) {
		domain, category := w.resolveTaxonomy(map[string]any{}, map[string]any{})
		assert.Equal(t, taxonomy.DomainImmigration, domain)
		assert.Empty(t, category)
	})
}

func TestDeriveTags(t *testing.T) {
	extracted := map[string]any{
		"incident_types": []any{"assault", "arrest"},
		"categories":     []any{"violent_crime", "arrest"},
	}
	assert.Equal(t, []string{"assault", "arrest", "violent_crime"}, deriveTags(extracted))

	assert.Equal(t, []string{}, deriveTags(map[string]any{}))
}

func TestFilteredPolicyContext(t *testing.T) {
	extracted := map[string]any{
		"policy_context": map[string]any{
			"sanctuary_city":  true,
			"policy_name":     "287(g)",
			"nested":          map[string]any{"drop": "me"},
			"list":            []any{"drop"},
			"years_in_effect": 3.0,
		},
	}
	got := filteredPolicyContext(extracted)
	assert.Equal(t, map[string]any{
		"sanctuary_city":  true,
		"policy_name":     "287(g)",
		"years_in_effect": 3.0,
	}, got)

	assert.Empty(t, filteredPolicyContext(map[string]any{"policy_context": "not a map"}))
}

func TestMergeSourceSchemaNames(t *testing.T) {
	mergeInfo := map[string]any{
		"sources": []any{
			map[string]any{"schema_name": "immigration_crime", "role": "base"},
			map[string]any{"schema_name": "criminal_justice_violent", "role": "supplement"},
			map[string]any{"role": "orphan"},
		},
	}
	assert.Equal(t,
		[]string{"immigration_crime", "criminal_justice_violent"},
		mergeSourceSchemaNames(mergeInfo))

	assert.Nil(t, mergeSourceSchemaNames(map[string]any{}))
}

func TestParseDate(t *testing.T) {
	d, ok := parseDate("2025-03-14")
	assert.True(t, ok)
	assert.Equal(t, 2025, d.Year())
	assert.Equal(t, 14, d.Day())

	d, ok = parseDate("03/14/2025")
	assert.True(t, ok)
	assert.Equal(t, 3, int(d.Month()))

	_, ok = parseDate("last Tuesday")
	assert.False(t, ok)

	_, ok = parseDate("")
	assert.False(t, ok)
}
