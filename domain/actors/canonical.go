package actors

import (
	"strings"

	"github.com/incidentwire/incidentwire/pkg/textmatch"
)

// Agency name variants mapped to canonical forms.
var agencyCanonicalNames = map[string]string{
	"ice":                                     "U.S. Immigration and Customs Enforcement",
	"immigration and customs enforcement":     "U.S. Immigration and Customs Enforcement",
	"us immigration and customs enforcement":  "U.S. Immigration and Customs Enforcement",
	"u s immigration and customs enforcement": "U.S. Immigration and Customs Enforcement",
	"cbp":                             "U.S. Customs and Border Protection",
	"customs and border protection":   "U.S. Customs and Border Protection",
	"border patrol":                   "U.S. Border Patrol",
	"us border patrol":                "U.S. Border Patrol",
	"u s border patrol":               "U.S. Border Patrol",
	"fbi":                             "Federal Bureau of Investigation",
	"federal bureau of investigation": "Federal Bureau of Investigation",
	"dhs":                             "U.S. Department of Homeland Security",
	"department of homeland security": "U.S. Department of Homeland Security",
	"doj":                             "U.S. Department of Justice",
	"department of justice":           "U.S. Department of Justice",
	"uscis":                           "U.S. Citizenship and Immigration Services",
	"dea":                             "Drug Enforcement Administration",
	"atf":                             "Bureau of Alcohol, Tobacco, Firearms and Explosives",
	"usms":                            "U.S. Marshals Service",
	"us marshals":                     "U.S. Marshals Service",
}

// CanonicalizeAgency maps a raw agency mention to its canonical name.
// Unknown agencies are returned trimmed but otherwise untouched.
func CanonicalizeAgency(raw string) string {
	if canonical, ok := agencyCanonicalNames[textmatch.Normalize(raw)]; ok {
		return canonical
	}
	return strings.TrimSpace(raw)
}

// IsKnownAgency reports whether a raw mention maps to the canonical table.
func IsKnownAgency(raw string) bool {
	_, ok := agencyCanonicalNames[textmatch.Normalize(raw)]
	return ok
}

// NormalizeAlias produces the dedup key for an alias list entry.
func NormalizeAlias(alias string) string {
	return textmatch.Normalize(alias)
}

// AppendAlias adds an alias preserving order and deduplicating by
// normalized form.
func AppendAlias(aliases []string, alias string) []string {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return aliases
	}
	key := NormalizeAlias(alias)
	for _, existing := range aliases {
		if NormalizeAlias(existing) == key {
			return aliases
		}
	}
	return append(aliases, alias)
}
