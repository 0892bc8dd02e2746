package utils

import (
	"regexp"
	"strings"
)

var (
	nonSlugChars  = regexp.MustCompile(`[^a-z0-9]+`)
	nonAlphaChars = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// Slugify lowercases s, collapses runs of non-alphanumerics to "-" and trims dashes.
func Slugify(s string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(slug, "-")
}

// SafeFilename replaces every non-alphanumeric character with "_".
func SafeFilename(s string) string {
	return nonAlphaChars.ReplaceAllString(s, "_")
}
