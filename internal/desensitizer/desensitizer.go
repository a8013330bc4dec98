// Package desensitizer replaces sensitive numeric literals in free-form
// technical documents with placeholders and restores them afterwards.
//
// Every digit run is classified as structural (section and heading numbers,
// table/figure/appendix labels, list markers, composite codes, dates,
// addresses, URLs) or sensitive. Sensitive values are swapped for
// sequential placeholders of the form ￥N￥ and recorded in a Mapping, which
// is the only way back to the original text:
//
//	d := desensitizer.New()
//	out := d.Desensitize(doc)
//	_ = d.Mapping().Save("doc_map.json")
//
//	m, _ := desensitizer.LoadMapping("doc_map.json")
//	orig := desensitizer.Restore(out, m)
package desensitizer

import (
	"sort"
	"strings"
)

// Desensitizer is one desensitization session. Every document passed to the
// same Desensitizer shares its Mapping, so a value seen in an earlier
// document keeps its placeholder. Not safe for concurrent use.
type Desensitizer struct {
	mapping *Mapping
}

// New starts a session with an empty Mapping.
func New() *Desensitizer {
	return &Desensitizer{mapping: NewMapping()}
}

// Mapping returns the session's Mapping.
func (d *Desensitizer) Mapping() *Mapping { return d.mapping }

// Desensitize replaces every sensitive number in doc with its placeholder.
// Spans are substituted from the end of the document backwards so earlier
// offsets stay valid.
func (d *Desensitizer) Desensitize(doc string) string {
	spans := ExtractNumbers(doc)
	if len(spans) == 0 {
		return doc
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start > spans[j].Start })

	result := doc
	for _, s := range spans {
		result = result[:s.Start] + d.mapping.Add(s.Text) + result[s.End:]
	}
	return result
}

// Desensitize runs a single-document session.
func Desensitize(doc string) (string, *Mapping) {
	d := New()
	return d.Desensitize(doc), d.Mapping()
}

// Restore replaces every placeholder of m found in doc with its original
// value. Placeholders are fixed-shape and none is a prefix of another, so a
// single left-to-right pass is order independent.
func Restore(doc string, m *Mapping) string {
	if m == nil || m.Len() == 0 || doc == "" {
		return doc
	}
	pairs := make([]string, 0, 2*m.Len())
	for _, e := range m.entries {
		if e.Placeholder == "" {
			continue
		}
		pairs = append(pairs, e.Placeholder, e.Original)
	}
	return strings.NewReplacer(pairs...).Replace(doc)
}

// CountPlaceholders reports how many placeholders of m occur in doc.
func CountPlaceholders(doc string, m *Mapping) int {
	if m == nil {
		return 0
	}
	n := 0
	for _, e := range m.entries {
		if e.Placeholder != "" {
			n += strings.Count(doc, e.Placeholder)
		}
	}
	return n
}
