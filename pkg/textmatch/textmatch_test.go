package textmatch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"John A. Doe", "john a doe"},
		{"  Multiple   Spaces  ", "multiple spaces"},
		{"García-López", "garcía lópez"},
		{"", ""},
		{"...", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestTitleTokens(t *testing.T) {
	got := TitleTokens("Man in DC is held on new charges")
	// Words of length <= 2 are dropped.
	assert.Equal(t, []string{"man", "held", "new", "charges"}, got)
}

func TestTitleSimilarity(t *testing.T) {
	a := "Local man arrested after downtown robbery"
	b := "Man arrested after robbery downtown"
	// 5 shared tokens over a 6-token union.
	assert.InDelta(t, 5.0/6.0, TitleSimilarity(a, b), 0.001)

	assert.Equal(t, 1.0, TitleSimilarity(a, a))
	assert.Equal(t, 0.0, TitleSimilarity(a, "completely unrelated weather report"))
}

func TestTokenJaccardEmpty(t *testing.T) {
	assert.Equal(t, 0.0, TokenJaccard(nil, nil))
	assert.Equal(t, 0.0, TokenJaccard([]string{"a"}, nil))
}

func TestMinHashSketch(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 30)
	sketch := MinHashSketch(text)
	assert.NotEmpty(t, sketch)
	assert.LessOrEqual(t, len(sketch), 100)
	for i := 1; i < len(sketch); i++ {
		assert.Less(t, sketch[i-1], sketch[i])
	}

	// Identical content yields identical sketches.
	assert.Equal(t, sketch, MinHashSketch(text))

	// Too short for a 3-word shingle.
	assert.Nil(t, MinHashSketch("two words"))
}

func TestSketchSimilarity(t *testing.T) {
	a := MinHashSketch(strings.Repeat("alpha beta gamma delta epsilon zeta ", 40))
	assert.Equal(t, 1.0, SketchSimilarity(a, a))

	b := MinHashSketch(strings.Repeat("one two three four five six seven ", 40))
	assert.Less(t, SketchSimilarity(a, b), 0.1)

	assert.Equal(t, 0.0, SketchSimilarity(a, nil))
}

func TestCheckNameSimilarity(t *testing.T) {
	tests := []struct {
		name       string
		a, b       string
		wantMatch  bool
		wantConf   float64
		wantMethod NameMatchMethod
	}{
		{"reflexive", "John Doe", "John Doe", true, 1.0, MatchExact},
		{"case and punctuation", "JOHN DOE", "john doe.", true, 1.0, MatchExact},
		{"middle name substring", "John Doe", "John A. Doe", true, 0.95, MatchSubstring},
		{"raw substring", "Maria Garcia", "Maria Garcia Lopez", true, 0.95, MatchSubstring},
		{"first initial", "J Smith", "James Smith", true, 0.9, MatchStructured},
		{"no match", "John Doe", "Jane Roe", false, 0, MatchNone},
		{"empty", "", "John Doe", false, 0, MatchNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckNameSimilarity(tt.a, tt.b)
			assert.Equal(t, tt.wantMatch, got.Matched)
			assert.Equal(t, tt.wantMethod, got.Method)
			if tt.wantMatch {
				assert.InDelta(t, tt.wantConf, got.Confidence, 0.01)
			}
		})
	}
}

func TestCheckNameSimilaritySymmetric(t *testing.T) {
	pairs := [][2]string{
		{"John Doe", "John A. Doe"},
		{"J Smith", "James Smith"},
		{"Maria Garcia", "Maria Garcia Lopez"},
	}
	for _, p := range pairs {
		fwd := CheckNameSimilarity(p[0], p[1])
		rev := CheckNameSimilarity(p[1], p[0])
		assert.Equal(t, fwd.Matched, rev.Matched, "%q vs %q", p[0], p[1])
		assert.InDelta(t, fwd.Confidence, rev.Confidence, 0.001)
	}
}

func TestCharJaccard(t *testing.T) {
	assert.Equal(t, 1.0, CharJaccard("smith", "smith"))
	assert.Greater(t, CharJaccard("smith", "smyth"), 0.6)
	assert.Equal(t, 0.0, CharJaccard("", ""))
}
