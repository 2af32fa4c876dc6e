package chunking

import (
	"strings"
	"unicode/utf8"
)

// Measure maps a string to its size in the configured chunking unit.
type Measure func(string) int

func MeasureRunes(s string) int {
	return utf8.RuneCountInString(s)
}

func MeasureWords(s string) int {
	return len(strings.Fields(s))
}

// MeasureByName resolves a configured measure name; unknown names fall back
// to rune counting.
func MeasureByName(name string) Measure {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "words":
		return MeasureWords
	default:
		return MeasureRunes
	}
}
