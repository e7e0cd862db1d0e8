package actors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeAgency(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ICE", "U.S. Immigration and Customs Enforcement"},
		{"ice", "U.S. Immigration and Customs Enforcement"},
		{"Immigration and Customs Enforcement", "U.S. Immigration and Customs Enforcement"},
		{"U.S. Immigration and Customs Enforcement", "U.S. Immigration and Customs Enforcement"},
		{"Border Patrol", "U.S. Border Patrol"},
		{"FBI", "Federal Bureau of Investigation"},
		{"  Dallas Police Department  ", "Dallas Police Department"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalizeAgency(tt.in), "CanonicalizeAgency(%q)", tt.in)
	}
}

func TestIsKnownAgency(t *testing.T) {
	assert.True(t, IsKnownAgency("ICE"))
	assert.True(t, IsKnownAgency("department of justice"))
	assert.False(t, IsKnownAgency("Dallas Police Department"))
}

func TestAppendAliasDedup(t *testing.T) {
	aliases := []string{"Juan Perez"}
	aliases = AppendAlias(aliases, "JUAN PEREZ")
	assert.Equal(t, []string{"Juan Perez"}, aliases)

	aliases = AppendAlias(aliases, "Juan A. Perez")
	assert.Equal(t, []string{"Juan Perez", "Juan A. Perez"}, aliases)

	aliases = AppendAlias(aliases, "  ")
	assert.Len(t, aliases, 2)
}
