package util

import "strings"

// TrimSpace: removes surrounding whitespace. (strings.TrimSpace wrapper)
func TrimSpace(s string) string {
	return strings.TrimSpace(s)
}

// Normalize: lowercases a string and trims surrounding whitespace.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Slugify: converts a name into a URL-safe slug (spaces -> "-", punctuation
// removed).
func Slugify(name string) string {
	name = Normalize(name)
	name = strings.ReplaceAll(name, " ", "-")
	name = strings.ReplaceAll(name, "'", "")
	name = strings.ReplaceAll(name, ".", "")
	name = strings.ReplaceAll(name, "!", "")
	name = strings.ReplaceAll(name, "&", "and")
	return name
}
