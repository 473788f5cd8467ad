package dedup

import (
	"strings"
	"unicode"
)

// NormalizePhone strips spaces and hyphens and a leading country-code prefix
// ("+86", "0086", or a bare "86" ahead of an 11-digit number).
func NormalizePhone(phone, countryCode string) string {
	p := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return -1
		}
		return r
	}, phone)
	if countryCode == "" {
		return p
	}
	switch {
	case strings.HasPrefix(p, "+"+countryCode):
		p = strings.TrimPrefix(p, "+"+countryCode)
	case strings.HasPrefix(p, "00"+countryCode):
		p = strings.TrimPrefix(p, "00"+countryCode)
	case strings.HasPrefix(p, countryCode) && len(p)-len(countryCode) == 11:
		p = strings.TrimPrefix(p, countryCode)
	}
	return p
}

func samePhone(a, b, countryCode string) bool {
	na, nb := NormalizePhone(a, countryCode), NormalizePhone(b, countryCode)
	return na != "" && na == nb
}

func sameEmail(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
