package textutil

import (
	"regexp"
	"strings"
)

var (
	trailingSpaceRe = regexp.MustCompile(`[ \t]+\n`)
	manyNewlinesRe  = regexp.MustCompile(`\n{3,}`)
)

// Normalize cleans raw decoded file content: NUL bytes and carriage returns
// are dropped, whitespace hanging before a newline is stripped, runs of three
// or more newlines collapse to exactly two, and the result is trimmed.
// Total and idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	s := strings.ReplaceAll(raw, "\x00", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = trailingSpaceRe.ReplaceAllString(s, "\n")
	s = manyNewlinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
