package logutil

import "unicode/utf8"

// TruncateForLog shortens s to at most maxLen runes, marking the cut with "...".
// Used for upstream bodies and user text that may be arbitrarily long.
func TruncateForLog(s string, maxLen int) string {
	if maxLen <= 0 {
		return "..."
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen]) + "..."
}
