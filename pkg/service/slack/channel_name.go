package slack

import (
	"strings"
	"unicode"
)

// NormalizeChannelName normalizes a string the way Slack stores channel names
// Slack allows: lowercase letters, numbers, hyphens, underscores, and Unicode characters
// Slack prohibits: uppercase (Latin), spaces, slashes, periods, commas, and special symbols
func NormalizeChannelName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "#")
	name = strings.ReplaceAll(name, " ", "-")

	var result strings.Builder
	result.Grow(len(name))

	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		} else if r >= 'A' && r <= 'Z' {
			result.WriteRune(unicode.ToLower(r))
		} else if r > 127 {
			if !isProhibitedSymbol(r) {
				result.WriteRune(r)
			}
		}
	}

	return result.String()
}

// isProhibitedSymbol checks if a Unicode character is prohibited in Slack channel names
func isProhibitedSymbol(r rune) bool {
	prohibitedRunes := []rune{
		'。', '、', '!', '?', '/', '\\', '.', ',', '!', '?',
		'@', '#', '$', '%', '^', '&', '*', '(', ')', '[', ']',
		'{', '}', '<', '>', '|', '~', '`', '\'', '"', ';', ':',
		'+', '=',
	}

	for _, prohibited := range prohibitedRunes {
		if r == prohibited {
			return true
		}
	}
	return false
}

// IsChannelID reports whether ref looks like a conversation ID (e.g. C024BE91L)
// rather than a channel name
func IsChannelID(ref string) bool {
	if len(ref) < 9 || strings.HasPrefix(ref, "#") {
		return false
	}
	switch ref[0] {
	case 'C', 'G':
	default:
		return false
	}
	for _, r := range ref {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
