package utils

import "strings"

// Token estimates use the usual 1 token ~= 4 characters heuristic.

// TruncatedMarker is appended to text cut by TruncateToTokenLimit.
const TruncatedMarker = "\n\n[... truncated ...]"

// CountTokens estimates the number of tokens in text.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// TruncateToTokenLimit cuts text to roughly limit tokens, preferring the last
// line break before the cut, and marks the cut with TruncatedMarker.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	charLimit := limit * 4
	if charLimit >= len(runes) {
		return text
	}
	keep := charLimit - len([]rune(TruncatedMarker))
	if keep <= 0 {
		return string(runes[:charLimit])
	}
	cut := string(runes[:keep])
	if i := strings.LastIndexByte(cut, '\n'); i > len(cut)/2 {
		cut = cut[:i]
	}
	return cut + TruncatedMarker
}
