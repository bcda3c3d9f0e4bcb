package shaper

import (
	"regexp"
	"strings"
)

var (
	// Characters that disqualify a tag key from being emitted
	problemCharsRegex = regexp.MustCompile(`[=+/&<>;'"?%#$@,. \t\r\n]`)
	// Namespaced keys like "addr:street". Anchored at the start only, so
	// "a:b:c" and "a:b extra" also count as namespaced.
	namespacedRegex = regexp.MustCompile(`^[a-z_]+:[a-z_]+`)
)

// HasProblemChars reports whether key contains a character that causes
// the tag to be dropped
func HasProblemChars(key string) bool {
	return problemCharsRegex.MatchString(key)
}

// IsNamespaced reports whether key starts with a lowercase "ns:name" prefix
func IsNamespaced(key string) bool {
	return namespacedRegex.MatchString(key)
}

// ClassifyKey splits a raw tag key into key and type. ok is false when the
// key contains problem characters and the tag must be dropped.
func ClassifyKey(raw, defaultType string) (key, typ string, ok bool) {
	if HasProblemChars(raw) {
		return "", "", false
	}
	if IsNamespaced(raw) {
		typ, key, _ = strings.Cut(raw, ":")
		return key, typ, true
	}
	return raw, defaultType, true
}

// Correct replaces every space-separated token of value found in
// corrections and joins the tokens back with single spaces
func Correct(value string, corrections map[string]string) string {
	tokens := strings.Split(value, " ")
	for i, tok := range tokens {
		if repl, ok := corrections[tok]; ok {
			tokens[i] = repl
		}
	}
	return strings.Join(tokens, " ")
}
