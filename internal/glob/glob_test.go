package glob

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern string
		input   string
		want    bool
	}{
		{"*", "anything", true},
		{"user:*", "user:42", true},
		{"user:*", "session:42", false},
		{"user:?", "user:1", true},
		{"user:?", "user:12", false},
		{"exact", "exact", true},
		{"exact", "exact-not", false},
		{"a.b", "a.b", true},
		{"a.b", "axb", false},
		{"*.set", "key.set", true},
		{"", "", true},
		{"", "x", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Match(tc.pattern, tc.input), "pattern %q against %q", tc.pattern, tc.input)
	}
}

func TestCompileQuotesRegexMeta(t *testing.T) {
	re, err := Compile("price[1]*")
	assert.NoError(t, err)
	assert.True(t, re.MatchString("price[1]:usd"))
	assert.False(t, re.MatchString("price1:usd"))
}
