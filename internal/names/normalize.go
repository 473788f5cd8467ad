// Package names canonicalizes candidate names across scripts.
package names

import (
	"strings"
	"unicode"
)

// middleDot separates given and family names in transliterated names (e.g. 阿卜杜拉·艾买提).
const middleDot = '·'

func isIdeograph(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || r == middleDot
}

// Normalize trims the name and, when more than half of its letters are CJK
// ideographs, removes every space (OCR tends to split logographic names).
// Latin-script names keep their spacing.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return name
	}
	var ideo, letters int
	for _, r := range name {
		switch {
		case isIdeograph(r):
			ideo++
			letters++
		case unicode.IsLetter(r):
			letters++
		}
	}
	if letters == 0 || ideo*2 <= letters {
		return name
	}
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '　' {
			return -1
		}
		return r
	}, name)
}

// NormalizePtr applies Normalize to a non-nil name.
func NormalizePtr(name *string) *string {
	if name == nil {
		return nil
	}
	n := Normalize(*name)
	return &n
}
