// Package normalize provides the text canonicalization shared by the
// change detector, corpus analyzer, and anchor audit. All comparisons in
// the engine operate on folded text so that casing, Unicode form, and
// whitespace differences never affect scoring.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Fold canonicalizes s: NFC normalization, Unicode case folding, and
// whitespace collapsed to single spaces.
func Fold(s string) string {
	s = norm.NFC.String(s)
	s = folder.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// Tokens splits s into folded word tokens, dropping punctuation.
func Tokens(s string) []string {
	s = Fold(s)
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// TokenSet returns the distinct tokens of s.
func TokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range Tokens(s) {
		set[t] = struct{}{}
	}
	return set
}

// TokenOverlap scores how much of the tokens of a appear in b, in [0,1].
// Asymmetric: measures coverage of a's tokens, not Jaccard.
func TokenOverlap(a, b string) float64 {
	aTokens := Tokens(a)
	if len(aTokens) == 0 {
		return 0
	}
	bSet := TokenSet(b)
	hit := 0
	for _, t := range aTokens {
		if _, ok := bSet[t]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(aTokens))
}
