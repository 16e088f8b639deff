package helpers

import (
	"errors"
	"strconv"
	"strings"
)

// SplitNonEmptyLines splits text on newlines, trims every line and drops the empty ones
func SplitNonEmptyLines(text string) []string {
	var parts []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			parts = append(parts, line)
		}
	}
	return parts
}

// ParseNumber parses a scraped numeric string such as "1,250,000" or "٣٥٠٫٥"
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(toASCIIDigits(s))
	s = strings.NewReplacer(",", "", "،", "", " ", "", " ", "").Replace(s)
	if s == "" {
		return 0, errors.New("empty number")
	}
	return strconv.ParseFloat(s, 64)
}

// toASCIIDigits maps Arabic-Indic digits and the Arabic decimal separator to ASCII
func toASCIIDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '٠' && r <= '٩':
			b.WriteRune('0' + (r - '٠'))
		case r == '٫':
			b.WriteRune('.')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
