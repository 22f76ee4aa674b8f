// Package extractor locates labeled numeric widgets in the dashboard HTML
// using a prioritized cascade of strategies. Each strategy is more
// permissive and lower-confidence than the previous one; a field resolved
// by an earlier strategy is never overwritten by a later one.
package extractor

import (
	"errors"
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoData is returned when zero fields resolved after every strategy.
var ErrNoData = errors.New("extractor: no fields resolved")

// FieldSpec is the static configuration for one canonical dashboard field.
type FieldSpec struct {
	// Key is the canonical output name for the field.
	Key string
	// Match reports whether a label, as rendered by the site, belongs to
	// this field. Matching is case-insensitive with explicit negative
	// conditions for near-duplicate labels.
	Match func(label string) bool
	// Pattern is the free-text fallback: the field's label token followed
	// by a numeric capture group.
	Pattern *regexp.Regexp
}

// Field is the extraction result for one FieldSpec. MatchedBy is empty
// while the field is unresolved.
type Field struct {
	Key       string
	RawText   string
	Value     any
	MatchedBy string
}

type strategy interface {
	name() string
	// resolve scans the whole document for the still-unresolved specs and
	// returns one candidate per spec at most.
	resolve(doc *goquery.Document, pending []FieldSpec) []Field
}

// Extract runs the strategy cascade over doc. The returned map always
// carries one entry per spec; unresolved entries keep a zero MatchedBy and
// nil Value. When nothing resolved at all the map is still returned,
// alongside ErrNoData.
func Extract(doc *goquery.Document, specs []FieldSpec) (map[string]Field, error) {
	fields := make(map[string]Field, len(specs))
	for _, spec := range specs {
		fields[spec.Key] = Field{Key: spec.Key}
	}

	for _, st := range []strategy{widgetStrategy{}, linkStrategy{}} {
		pending := unresolved(specs, fields)
		if len(pending) == 0 {
			break
		}
		apply(st, doc, pending, fields)
	}

	// The free-text fallback only runs when the structural strategies left
	// the majority of the fields unresolved.
	if resolvedCount(fields)*2 < len(specs) {
		if pending := unresolved(specs, fields); len(pending) > 0 {
			apply(regexStrategy{}, doc, pending, fields)
		}
	}

	if resolvedCount(fields) == 0 {
		return fields, ErrNoData
	}
	return fields, nil
}

func apply(st strategy, doc *goquery.Document, pending []FieldSpec, fields map[string]Field) {
	for _, candidate := range st.resolve(doc, pending) {
		existing, ok := fields[candidate.Key]
		if !ok || existing.MatchedBy != "" {
			continue
		}
		fields[candidate.Key] = candidate
	}
}

func unresolved(specs []FieldSpec, fields map[string]Field) []FieldSpec {
	var out []FieldSpec
	for _, spec := range specs {
		if fields[spec.Key].MatchedBy == "" {
			out = append(out, spec)
		}
	}
	return out
}

func resolvedCount(fields map[string]Field) int {
	n := 0
	for _, f := range fields {
		if f.MatchedBy != "" {
			n++
		}
	}
	return n
}
