// Package textnorm provides the text cleaning applied to FAQ source text
// before embedding or storage, and the canonical form used as a cache key
// for user queries. All functions are pure and total — empty input yields
// empty output, never an error.
package textnorm

import (
	"regexp"
	"strings"
)

// softHyphen is the Unicode soft hyphen (U+00AD). PDF and spreadsheet
// exports routinely leave these inside words, which breaks embedding quality.
const softHyphen = "­"

var (
	// horizontalWS matches runs of spaces and tabs.
	horizontalWS = regexp.MustCompile(`[ \t]+`)
	// blankRuns matches three or more consecutive newlines.
	blankRuns = regexp.MustCompile(`\n{3,}`)
)

// Clean normalizes raw FAQ text: soft hyphens are removed, runs of
// horizontal whitespace collapse to a single space, runs of three or more
// newlines collapse to exactly two, and leading/trailing whitespace is
// trimmed.
func Clean(s string) string {
	s = strings.ReplaceAll(s, softHyphen, "")
	s = horizontalWS.ReplaceAllString(s, " ")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// CanonicalQuery folds a user query into the canonical form used for
// answer-cache keys and greeting detection: lowercased, with all whitespace
// runs collapsed to single spaces and the ends trimmed.
func CanonicalQuery(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
