package utils

import "unicode/utf8"

// Truncate shortens s to at most maxLen runes, appending "..." when cut.
// Log previews of chat content are frequently non-ASCII, so the cut never
// splits a multi-byte rune.
func Truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}

	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}
