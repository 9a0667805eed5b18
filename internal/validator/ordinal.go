package validator

import (
	"strconv"
	"strings"
)

var romanValues = map[byte]int{
	'I': 1, 'V': 5, 'X': 10, 'L': 50, 'C': 100, 'D': 500, 'M': 1000,
}

// parseRoman converts a Roman numeral to its value, or (0, false) when s
// is not a well-formed numeral.
func parseRoman(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	total := 0
	for i := 0; i < len(s); i++ {
		v, ok := romanValues[s[i]]
		if !ok {
			return 0, false
		}
		if i+1 < len(s) {
			next, ok := romanValues[s[i+1]]
			if !ok {
				return 0, false
			}
			if v < next {
				total -= v
				continue
			}
		}
		total += v
	}
	if total <= 0 {
		return 0, false
	}
	return total, true
}

// Ordinal extracts a distinguishing ordinal suffix from an entity's
// surface text: a trailing Roman numeral ("Louis XIV") or a trailing
// number with optional English ordinal suffix ("Ramesses 2", "Henry 8th").
// Returns (0, false) when the text carries no ordinal.
func Ordinal(text string) (int, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) < 2 {
		// A lone numeral is a name, not a suffix.
		return 0, false
	}
	last := strings.Trim(fields[len(fields)-1], ".,;:")

	// Regnal numerals are written in capitals; requiring that avoids
	// reading ordinary words as numerals.
	if last == strings.ToUpper(last) {
		if n, ok := parseRoman(last); ok {
			return n, true
		}
	}

	digits := strings.ToLower(last)
	for _, suffix := range []string{"st", "nd", "rd", "th"} {
		if strings.HasSuffix(digits, suffix) {
			digits = strings.TrimSuffix(digits, suffix)
			break
		}
	}
	if n, err := strconv.Atoi(digits); err == nil && n > 0 {
		return n, true
	}
	return 0, false
}
