/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package matcher decides whether a free-text answer is close enough to a
// reference answer.
//
// Both strings are folded into a canonical form (accents, case, quote marks,
// "&" versus "and", punctuation and whitespace shape are all ignored), then
// compared for equality or contiguous containment in either direction.
//
// Containment is deliberately loose so a surname alone matches a full name.
// It is also unbounded in length ratio: "bin" is accepted for "Microsoft
// Bing", and a reference that folds to the empty string is contained in every
// input. Callers that need stricter checks must reject such references up
// front rather than expect this package to.
//
// Decomposition is canonical (NFD), not compatibility (NFKD). Compatibility
// forms are not unfolded: fullwidth letters such as "Ｍｉｃｒｏｓｏｆｔ" fold
// to "", and the ligature in "ﬁsh" is dropped, leaving "sh". Such input does
// not match its ASCII spelling.
package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// quoteMarks are dropped outright, so "O'Brien" and "OBrien" fold together.
var quoteMarks = runes.Predicate(func(r rune) bool {
	switch r {
	case '\'', '`', '‘', '’', '‛', 'ʼ', '´', '′':
		return true
	}
	return false
})

// folder returns a fresh transformer chain. Chains keep internal state and
// must not be shared between goroutines.
func folder() transform.Transformer {
	return transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(quoteMarks),
		cases.Lower(language.Und),
	)
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// Normalize folds text into the alphabet [a-z0-9 ] with single spaces and no
// leading or trailing space. It never fails; input without any letters or
// digits folds to "".
func Normalize(text string) string {
	folded, _, err := transform.String(folder(), text)
	if err != nil {
		// Only reachable on malformed UTF-8; fall back to the raw text so the
		// alphanumeric filter below still applies.
		folded = strings.ToLower(text)
	}

	folded = strings.ReplaceAll(folded, "&", " and ")

	folded = strings.Map(func(r rune) rune {
		if isAlnum(r) {
			return r
		}
		return ' '
	}, folded)

	return strings.Join(strings.Fields(folded), " ")
}

// IsMatch reports whether userInput is an acceptable answer for
// correctAnswer. An input that folds to "" never matches, even against an
// equally empty reference.
func IsMatch(userInput, correctAnswer string) bool {
	u := Normalize(userInput)
	if u == "" {
		return false
	}

	c := Normalize(correctAnswer)
	if u == c {
		return true
	}

	return strings.Contains(c, u) || strings.Contains(u, c)
}
