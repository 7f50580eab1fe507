package core

import "strings"

// CleanString strips surrounding whitespace; pass true to also lowercase,
// which normalizes usernames and emails before lookups.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) == 0 || !lower[0] {
		return s
	}
	return strings.ToLower(s)
}
