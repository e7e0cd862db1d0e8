package approval

import "strings"

// Severity ranks by incident-type substring, highest first so the most
// severe label wins when several match.
var severityTable = []struct {
	substr string
	rank   int
}{
	{"homicide", 10},
	{"murder", 10},
	{"manslaughter", 9},
	{"rape", 9},
	{"sexual_assault", 9},
	{"sexual assault", 9},
	{"dui_fatality", 8},
	{"dui fatality", 8},
	{"kidnapping", 8},
	{"child_abuse", 8},
	{"child abuse", 8},
	{"assault", 7},
	{"robbery", 7},
	{"dui", 6},
	{"drunk", 6},
	{"weapons", 6},
	{"burglary", 5},
	{"drug", 4},
	{"theft", 4},
	{"fraud", 3},
}

const defaultSeverity = 3

// SeverityOf resolves an incident type label to its severity rank.
func SeverityOf(incidentType string) int {
	t := strings.ToLower(strings.TrimSpace(incidentType))
	if t == "" {
		return defaultSeverity
	}
	for _, entry := range severityTable {
		if strings.Contains(t, entry.substr) {
			return entry.rank
		}
	}
	return defaultSeverity
}
