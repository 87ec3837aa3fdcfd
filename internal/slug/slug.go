// Package slug derives URL-safe calculator slugs from titles.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	separators = regexp.MustCompile(`[^a-z0-9]+`)
	stripMarks = transform.Chain(norm.NFD, transform.RemoveFunc(isMark), norm.NFC)
)

// From lowercases s, folds accents, and joins the remaining alphanumeric
// runs with single hyphens. "Body Mass Índex" becomes "body-mass-index".
func From(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = separators.ReplaceAllString(folded, "-")
	return strings.Trim(folded, "-")
}

// OrToken is From with a fallback for titles that keep no Latin
// alphanumerics, such as CJK text. The fallback is a short token derived
// from the trimmed title, so the same title always yields the same slug.
// Blank input stays blank.
func OrToken(s string) string {
	if out := From(s); out != "" {
		return out
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return "calculator-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(s)).String()[:8]
}

func isMark(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}
