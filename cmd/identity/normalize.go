package identity

import "strings"

// NormalizeLogin is the case-insensitive form used for uniqueness and lookup.
func NormalizeLogin(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
