// Code-matching helpers for profile-text verification.
//
// Verification codes are typed by humans into arbitrary free-text profile
// fields, so matching must survive case differences and any punctuation the
// platform or the user inserts ("BB-77FF" must match "bb77ff" embedded
// anywhere). Both sides are normalized before the substring check.
package roblox

import (
	"strings"
	"unicode"
)

// NormalizeText lowercases s and strips every non-alphanumeric rune,
// including underscores and all punctuation or whitespace.
func NormalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ContainsCode reports whether the normalized code occurs inside the
// normalized haystack. An empty haystack or code never matches.
func ContainsCode(haystack, code string) bool {
	h := NormalizeText(haystack)
	c := NormalizeText(code)
	if h == "" || c == "" {
		return false
	}
	return strings.Contains(h, c)
}
