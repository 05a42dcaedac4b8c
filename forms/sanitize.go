package forms

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?)*\.[A-Za-z]{2,}$`)

var folder = cases.Fold()

// Clean trims s and removes control characters. Newlines and tabs survive
// inside the text.
func Clean(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
}

// Truncate cleans s and cuts it to max runes (when max > 0). The result is
// still plain text; clients send this and the endpoint escapes it.
func Truncate(s string, max int) string {
	s = Clean(s)
	if max > 0 && utf8.RuneCountInString(s) > max {
		s = string([]rune(s)[:max])
	}
	return s
}

// Sanitize truncates s like Truncate and then escapes HTML metacharacters.
// Truncation happens before escaping so an entity is never cut in half.
// Apply it exactly once, where text is stored.
func Sanitize(s string, max int) string {
	return html.EscapeString(Truncate(s, max))
}

// ValidEmail reports whether s looks like an address: one @, a dotted
// domain with a TLD of two or more letters, and no more than MaxEmailLen bytes.
func ValidEmail(s string) bool {
	if len(s) > MaxEmailLen || strings.Contains(s, "..") {
		return false
	}
	return emailPattern.MatchString(s)
}

// NormalizeEmail trims and case-folds an address so the same mailbox always
// maps to the same row.
func NormalizeEmail(s string) string {
	return folder.String(strings.TrimSpace(s))
}
