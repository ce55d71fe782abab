// Package textnorm folds polytonic Greek (and any other script) into a
// comparison form: decomposed, stripped of combining marks, case folded.
//
// Every matcher in the pipeline compares folded strings so that accent,
// breathing and final-sigma differences never decide a match.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold returns the comparison form of s.
func Fold(s string) string {
	if s == "" {
		return ""
	}
	// Transformers carry state, so a fresh chain is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return cases.Fold().String(stripped)
}

// Contains reports whether the folded form of s contains the folded form of sub.
// An empty sub never matches.
func Contains(s, sub string) bool {
	fs := Fold(sub)
	if fs == "" {
		return false
	}
	return strings.Contains(Fold(s), fs)
}

// Len returns the number of letters in the folded form of s.
func Len(s string) int {
	n := 0
	for _, r := range Fold(s) {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}
