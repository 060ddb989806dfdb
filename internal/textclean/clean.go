package textclean

import (
	"strings"

	"golang.org/x/text/width"
)

// Character ranges retained by Clean, matching the scripts the OCR models
// are configured for (Japanese source, Latin target).
const (
	hiraganaLo = 'ぁ'
	hiraganaHi = 'ん'
	katakanaLo = 'ァ'
	katakanaHi = 'ン'
	cjkLo      = '一'
	cjkHi      = '龥'
)

// Clean normalizes raw OCR text for translation. It folds full-width
// ASCII forms to their narrow equivalents, drops every rune that is not
// alphanumeric, whitespace, or in the retained Japanese script ranges,
// and trims leading/trailing whitespace. Internal whitespace is kept
// as-is. Clean never fails; input with no retained runes yields "".
func Clean(raw string) string {
	if raw == "" {
		return ""
	}

	// OCR of Japanese pages frequently emits full-width romaji and
	// digits; fold them to narrow forms before filtering.
	folded := width.Fold.String(raw)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if keepRune(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func keepRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		return true
	case r == ' ', r == '\t', r == '\n', r == '\r', r == '　':
		return true
	case r >= hiraganaLo && r <= hiraganaHi:
		return true
	case r >= katakanaLo && r <= katakanaHi:
		return true
	case r >= cjkLo && r <= cjkHi:
		return true
	}
	return false
}
