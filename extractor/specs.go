package extractor

import (
	"regexp"
	"strings"
)

// DashboardFields returns the field set of the current dashboard
// revision. Predicates test the more specific keyword first (IGMAG must
// never satisfy INMAG, weekly head counts must not shadow daily ones), so
// order within a label check matters more than order in this slice.
func DashboardFields() []FieldSpec {
	return []FieldSpec{
		{
			Key:     "camiones",
			Match:   func(label string) bool { return has(label, "CAMION") },
			Pattern: labelPattern(`CAMIONES`),
		},
		{
			Key: "cabezas",
			Match: func(label string) bool {
				return has(label, "CABEZAS") && !has(label, "SEMANA")
			},
			Pattern: labelPattern(`CABEZAS`),
		},
		{
			Key: "cab_semana",
			Match: func(label string) bool {
				return has(label, "SEMANA") && has(label, "CAB")
			},
			Pattern: labelPattern(`CAB\.?\s*SEMANA`),
		},
		{
			Key:     "op",
			Match:   func(label string) bool { return has(label, "OPERACION") },
			Pattern: labelPattern(`OPERACIONES`),
		},
		{
			Key: "inmag",
			Match: func(label string) bool {
				return has(label, "INMAG") && !has(label, "IGMAG")
			},
			Pattern: labelPattern(`INMAG`),
		},
		{
			Key:     "igmag",
			Match:   func(label string) bool { return has(label, "IGMAG") },
			Pattern: labelPattern(`IGMAG`),
		},
		{
			Key:     "indice_arrend",
			Match:   func(label string) bool { return has(label, "ARREND") },
			Pattern: labelPattern(`ARRENDAMIENTO`),
		},
		{
			Key:     "dte_a_mag",
			Match:   func(label string) bool { return has(label, "DTE") },
			Pattern: labelPattern(`DTE\s*A?\s*MAG`),
		},
	}
}

func has(label, token string) bool {
	return strings.Contains(strings.ToUpper(label), token)
}

// labelPattern anchors a free-text search on the field's label keyword
// followed, within a short window, by a localized number.
func labelPattern(keyword string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + keyword + `[^\d-]{0,40}(-?\d[\d.,]*%?)`)
}
