// Package parser normalizes the locale-formatted numeric text the source
// site renders (es-AR convention: "." thousands separator, "," decimal
// separator, optional "%" suffix or sign).
package parser

import (
	"strconv"
	"strings"
)

// Normalize converts raw widget text into a number. Blank input yields
// nil. Input whose cleaned form does not parse is returned as the trimmed
// original text: the policy is lenient on purpose, since some dashboard
// fields carry a legitimately textual status instead of a number.
func Normalize(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	cleaned := CleanNumeric(trimmed)
	cleaned = strings.ReplaceAll(cleaned, "%", "")
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	if strings.Contains(cleaned, ".") {
		value, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return trimmed
		}
		return value
	}

	value, err := strconv.Atoi(cleaned)
	if err != nil {
		return trimmed
	}
	return value
}

// CleanNumeric strips every character that cannot appear in a localized
// number: anything but digits, ".", ",", "-" and "%".
func CleanNumeric(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == ',' || r == '-' || r == '%':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CollapseSpaces reduces runs of whitespace to single spaces and trims the
// result. Used on label text before matching against field predicates.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
