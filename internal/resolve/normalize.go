package resolve

import (
	"strings"
	"unicode"
)

// Normalization names the step that produced a match.
type Normalization string

const (
	NormExact       Normalization = "exact"
	NormCollapsed   Normalization = "collapsed"
	NormLeadingZero Normalization = "leading_zeros"
)

// collapse trims, upper-cases and drops punctuation and spaces, so "8-907", "8 907" and "8.907" meet.
func collapse(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// stripZeros removes the leading zero run of a numeric code. It returns "" when
// the value is not numeric or has no leading zeros.
func stripZeros(s string) string {
	if !isNumeric(s) {
		return ""
	}
	t := strings.TrimLeft(s, "0")
	if t == s || t == "" {
		return ""
	}
	return t
}
