// Package textnorm collapses whitespace and splits text into sentences.
package textnorm

import (
	"regexp"
	"strings"
)

var (
	// \s alone is ASCII-only; \p{Z} adds no-break and other Unicode spaces.
	spaceRun = regexp.MustCompile(`[\s\p{Z}]+`)
	// A sentence ends at . ! or ? followed by whitespace and an upper-case letter.
	boundary = regexp.MustCompile(`[.!?]([\s\p{Z}]+)[A-Z]`)
)

// Normalize collapses every whitespace run to a single space and trims the ends.
func Normalize(text string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(text, " "))
}

// Sentences splits text on sentence-ending punctuation. It is a heuristic:
// abbreviations such as "Fig. 3" or "e.g. The" will split too early.
func Sentences(text string) []string {
	var out []string
	start := 0
	for _, m := range boundary.FindAllStringSubmatchIndex(text, -1) {
		// m[2]:m[3] is the whitespace between the punctuation and the capital.
		if s := strings.TrimSpace(text[start:m[2]]); s != "" {
			out = append(out, s)
		}
		start = m[3]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
