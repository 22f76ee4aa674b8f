package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/agrodatos/mag-scraper/parser"
)

// Selectors for the structured counter widgets of the current site
// revision. The cascade exists precisely because these drift: when the
// container disappears the lower-confidence strategies take over.
const (
	widgetContainer = "div.counters"
	widgetItem      = "div.counter-item"
	widgetValue     = ".counter-value"
	widgetLabel     = ".counter-label"

	// inertLink marks the placeholder anchors the site wraps loose
	// value/label pairs in.
	inertLink = `a[href="#"]`
)

// widgetStrategy pairs explicitly tagged value/label sub-elements inside
// the known counter container. Highest confidence: no guessing involved.
type widgetStrategy struct{}

func (widgetStrategy) name() string { return "widget" }

func (s widgetStrategy) resolve(doc *goquery.Document, pending []FieldSpec) []Field {
	var out []Field
	doc.Find(widgetContainer).Each(func(_ int, container *goquery.Selection) {
		container.Find(widgetItem).Each(func(_ int, item *goquery.Selection) {
			value := parser.CollapseSpaces(item.Find(widgetValue).First().Text())
			label := parser.CollapseSpaces(item.Find(widgetLabel).First().Text())
			if label == "" {
				return
			}
			if field, ok := matchLabel(pending, label, value, s.name()); ok {
				out = append(out, field)
			}
		})
	})
	return out
}

// linkStrategy scans every inert placeholder anchor, treating the first
// non-empty text line as the value and the second as the label. Fallback
// for drifted markup that kept the text content.
type linkStrategy struct{}

func (linkStrategy) name() string { return "link" }

func (s linkStrategy) resolve(doc *goquery.Document, pending []FieldSpec) []Field {
	var out []Field
	doc.Find(inertLink).Each(func(_ int, sel *goquery.Selection) {
		lines := textLines(sel.Text())
		if len(lines) < 2 {
			return
		}
		if field, ok := matchLabel(pending, lines[1], lines[0], s.name()); ok {
			out = append(out, field)
		}
	})
	return out
}

// regexStrategy runs the full page's visible text through each pending
// field's pattern. Last resort for entirely unrecognized markup.
type regexStrategy struct{}

func (regexStrategy) name() string { return "regex" }

func (s regexStrategy) resolve(doc *goquery.Document, pending []FieldSpec) []Field {
	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}

	var out []Field
	for _, spec := range pending {
		if spec.Pattern == nil {
			continue
		}
		m := spec.Pattern.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		raw := strings.TrimSpace(m[1])
		out = append(out, Field{
			Key:       spec.Key,
			RawText:   raw,
			Value:     parser.Normalize(raw),
			MatchedBy: s.name(),
		})
	}
	return out
}

// matchLabel finds the first pending spec whose predicate accepts label
// and builds the candidate field for it.
func matchLabel(pending []FieldSpec, label, value, strategyName string) (Field, bool) {
	for _, spec := range pending {
		if !spec.Match(label) {
			continue
		}
		return Field{
			Key:       spec.Key,
			RawText:   value,
			Value:     parser.Normalize(value),
			MatchedBy: strategyName,
		}, true
	}
	return Field{}, false
}

func textLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = parser.CollapseSpaces(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
