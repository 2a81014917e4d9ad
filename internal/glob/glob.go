// Package glob compiles redis-style key patterns, where '*' matches any run
// of characters and '?' matches exactly one, into anchored regular
// expressions.
package glob

import (
	"regexp"
	"strings"
)

// Compile converts the pattern into an anchored regular expression.
func Compile(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// Match reports whether s matches the pattern. A pattern that fails to
// compile matches nothing.
func Match(pattern, s string) bool {
	re, err := Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}
