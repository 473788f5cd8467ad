package ocr

import (
	"regexp"
	"strings"
)

var (
	reBoxNoise   = regexp.MustCompile(`^\s*[_\-=|]{3,}\s*$`)
	reMultiSpace = regexp.MustCompile(`[ \t\f\r]+`)
)

// CleanFragment collapses inner whitespace in one recognized fragment and drops
// ruler-like noise lines. Returns "" for fragments with no content.
func CleanFragment(s string) string {
	if reBoxNoise.MatchString(s) {
		return ""
	}
	return strings.TrimSpace(reMultiSpace.ReplaceAllString(s, " "))
}

func splitLangs(s string) []string {
	var out []string
	for _, l := range strings.FieldsFunc(s, func(r rune) bool { return r == '+' || r == ',' }) {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
