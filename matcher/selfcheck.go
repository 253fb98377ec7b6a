/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

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

// Mismatch is a perturbed copy of a reference answer that IsMatch rejected.
type Mismatch struct {
	Answer  string
	Variant string
}

func (m Mismatch) String() string {
	return "variant " + quote(m.Variant) + " does not match answer " + quote(m.Answer)
}

func quote(s string) string {
	return `"` + s + `"`
}

// Check runs every answer against a set of formatting perturbations of
// itself and returns each pair IsMatch rejects. Answers that fold to "" are
// skipped, since nothing can match them.
func Check(answers []string) []Mismatch {
	var out []Mismatch

	for _, answer := range answers {
		if Normalize(answer) == "" {
			continue
		}

		for _, v := range variants(answer) {
			if !IsMatch(v, answer) {
				out = append(out, Mismatch{Answer: answer, Variant: v})
			}
		}
	}

	return out
}

func variants(answer string) []string {
	v := []string{
		answer,
		strings.ToUpper(answer),
		strings.ToLower(answer),
		cases.Title(language.Und).String(answer),
		"  " + strings.Join(strings.Fields(answer), "   ") + "  ",
		answer + "!",
		"(" + answer + ")",
		strings.Map(func(r rune) rune {
			if quoteMarks.Contains(r) {
				return -1
			}
			return r
		}, answer),
	}

	if strings.Contains(answer, "&") {
		v = append(v, strings.ReplaceAll(answer, "&", " and "))
	}
	if strings.Contains(strings.ToLower(answer), " and ") {
		v = append(v, strings.ReplaceAll(strings.ToLower(answer), " and ", " & "))
	}

	// A surname or first name alone must still be accepted.
	if fields := strings.Fields(answer); len(fields) > 1 {
		for _, part := range []string{fields[0], fields[len(fields)-1]} {
			if Normalize(part) != "" {
				v = append(v, part)
			}
		}
	}

	bare, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn))), answer)
	if err == nil && bare != answer {
		v = append(v, bare)
	}

	return v
}
