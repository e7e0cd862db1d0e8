// Package textmatch provides the normalization, similarity, and fuzzy
// name-matching primitives used by duplicate detection and result merging.
package textmatch

import (
	"crypto/md5"
	"encoding/binary"
	"sort"
	"strings"
	"unicode"
)

// Normalize lowercases, strips punctuation, and collapses whitespace.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeWS collapses whitespace and lowercases without touching
// punctuation. Used for span text comparison.
func NormalizeWS(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// TitleTokens tokenizes a title for Jaccard comparison, keeping only words
// longer than 2 characters.
func TitleTokens(title string) []string {
	var out []string
	for _, w := range strings.Fields(Normalize(title)) {
		if len(w) > 2 {
			out = append(out, w)
		}
	}
	return out
}

// TokenJaccard computes Jaccard similarity over two token sets.
func TokenJaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}
	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// CharJaccard computes Jaccard similarity over the character sets of two
// strings.
func CharJaccard(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	setA := make(map[rune]struct{})
	for _, r := range a {
		setA[r] = struct{}{}
	}
	setB := make(map[rune]struct{})
	for _, r := range b {
		setB[r] = struct{}{}
	}
	inter := 0
	for r := range setA {
		if _, ok := setB[r]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// TitleSimilarity is word-token Jaccard over normalized titles.
func TitleSimilarity(a, b string) float64 {
	return TokenJaccard(TitleTokens(a), TitleTokens(b))
}

const sketchSize = 100

// MinHashSketch builds a content sketch: 3-word shingles hashed with MD5
// truncated to 32 bits, keeping the 100 smallest hashes.
func MinHashSketch(text string) []uint32 {
	words := strings.Fields(Normalize(text))
	if len(words) < 3 {
		return nil
	}

	seen := make(map[uint32]struct{})
	for i := 0; i+3 <= len(words); i++ {
		shingle := strings.Join(words[i:i+3], " ")
		sum := md5.Sum([]byte(shingle))
		seen[binary.BigEndian.Uint32(sum[:4])] = struct{}{}
	}

	hashes := make([]uint32, 0, len(seen))
	for h := range seen {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	if len(hashes) > sketchSize {
		hashes = hashes[:sketchSize]
	}
	return hashes
}

// SketchSimilarity is Jaccard over two MinHash sketches.
func SketchSimilarity(a, b []uint32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[uint32]struct{}, len(a))
	for _, h := range a {
		setA[h] = struct{}{}
	}
	inter := 0
	for _, h := range b {
		if _, ok := setA[h]; ok {
			inter++
		}
	}
	union := len(setA) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
