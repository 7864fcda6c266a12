// Package dedupe groups references that represent the same work and
// merges their metadata.
package dedupe

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes diacritics after NFKD decomposition so "Muller"
// and "Müller" normalize identically.
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeText lower-cases, strips diacritics and punctuation, and
// collapses whitespace.
func normalizeText(s string) string {
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || unicode.IsPunct(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// titleTokens returns the normalized token set of a title.
func titleTokens(title string) map[string]bool {
	tokens := make(map[string]bool)
	for _, t := range strings.Fields(normalizeText(title)) {
		tokens[t] = true
	}
	return tokens
}

// blockingKey returns the first four normalized title tokens joined, a
// cheap coarse key bounding pairwise comparisons to likely matches.
func blockingKey(title string) string {
	fields := strings.Fields(normalizeText(title))
	if len(fields) > 4 {
		fields = fields[:4]
	}
	return strings.Join(fields, " ")
}

// normalizeAuthor reduces an author name to "last firstinitial",
// order-independent of the input's "Last, First" or "First Last" form.
func normalizeAuthor(name string) string {
	commaForm := strings.Contains(name, ",")
	cleaned := normalizeText(name)
	if cleaned == "" {
		return ""
	}
	fields := strings.Fields(cleaned)
	if len(fields) == 1 {
		return fields[0]
	}

	last, first := fields[0], fields[1]
	if !commaForm {
		last = fields[len(fields)-1]
		first = fields[0]
	}
	return last + " " + string(first[0])
}

// authorTokens returns the set of normalized author keys.
func authorTokens(authors []string) map[string]bool {
	tokens := make(map[string]bool, len(authors))
	for _, a := range authors {
		if key := normalizeAuthor(a); key != "" {
			tokens[key] = true
		}
	}
	return tokens
}

// jaccard computes set overlap as |A∩B| / |A∪B|.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
