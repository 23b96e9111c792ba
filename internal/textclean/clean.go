// Package textclean normalizes fetched article text down to a constrained
// ASCII character set and applies heuristic quality checks before anything
// is persisted.
package textclean

import (
	"errors"
	"html"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Quality-gate errors double as user-facing messages, so they are full
// sentences rather than conventional lowercase error strings.
var (
	// ErrTooShort rejects content under MinContentLength after cleaning.
	ErrTooShort = errors.New("Content could not be properly extracted or is too short after cleaning.")
	// ErrGarbled rejects content that is mostly non-alphanumeric noise.
	ErrGarbled = errors.New("The extracted content appears to be mostly special characters or is garbled.")
)

// MinContentLength is the minimum cleaned-content length accepted by the
// submission flow.
const MinContentLength = 100

// maxSpecialRatio is the highest tolerated fraction of characters that are
// neither alphanumeric nor whitespace.
const maxSpecialRatio = 0.5

var (
	disallowed = regexp.MustCompile(`[^A-Za-z0-9\s.,!?\-:;'"()&]`)
	spaceRuns  = regexp.MustCompile(`\s+`)
	special    = regexp.MustCompile(`[^A-Za-z0-9\s]`)
)

// Clean sanitizes text to plain English-leaning ASCII: HTML entities are
// unescaped, accents decomposed and dropped, anything outside letters,
// digits and a fixed punctuation set replaced with spaces, and whitespace
// runs collapsed. Clean is idempotent.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	text = html.UnescapeString(text)
	text = toASCII(text)
	text = disallowed.ReplaceAllString(text, " ")
	text = spaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// toASCII decomposes the string (NFKD) so accented letters split into a base
// letter plus combining marks, then drops the marks and any remaining
// non-ASCII runes.
func toASCII(s string) string {
	decomposed := norm.NFKD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if r > unicode.MaxASCII {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CheckQuality applies the spam/garbage heuristics to already-cleaned
// content: a minimum length and a cap on the fraction of special
// characters.
func CheckQuality(content string) error {
	if len(content) < MinContentLength {
		return ErrTooShort
	}
	specialCount := len(special.FindAllString(content, -1))
	if float64(specialCount)/float64(len(content)) > maxSpecialRatio {
		return ErrGarbled
	}
	return nil
}
