package profile

import (
	"regexp"
	"strings"
)

// DefaultSlug is used when a name slugifies to nothing.
const DefaultSlug = "user"

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	disallowedChar = regexp.MustCompile(`[^a-z0-9\-_]`)
)

// Slugify lowercases s, turns whitespace runs into a single hyphen and drops
// everything outside [a-z0-9-_]. An empty result becomes DefaultSlug.
func Slugify(s string) string {
	if slug := SlugifyOrEmpty(s); slug != "" {
		return slug
	}
	return DefaultSlug
}

// SlugifyOrEmpty is Slugify without the fallback.
func SlugifyOrEmpty(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = whitespaceRun.ReplaceAllString(s, "-")
	return disallowedChar.ReplaceAllString(s, "")
}
