package models

import "strings"

// KeySeparator joins identity, zone and period segments in backend keys.
// Identities and zone names are restricted to slug characters, so ':' can
// never occur in a legitimate segment.
const KeySeparator = ":"

// SanitizeKeySegment escapes the separator in backend key segments to prevent
// collision attacks where an identifier containing ':' could alias an
// adjacent bucket or quota counter.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, KeySeparator, "_")
}
