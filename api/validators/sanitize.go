package validators

import "strings"

// SanitizeString trims input, collapses inner whitespace runs and caps the
// result at maxLen runes. Customer names and addresses are multi-byte, so the
// cap never splits a character.
func SanitizeString(input string, maxLen int) string {
	collapsed := strings.Join(strings.Fields(input), " ")
	if maxLen <= 0 {
		return collapsed
	}
	runes := []rune(collapsed)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return collapsed
}
