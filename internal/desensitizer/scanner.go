package desensitizer

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Span is one numeric literal found in a document: Text equals
// doc[Start:End]. Offsets are byte offsets.
type Span struct {
	Text  string
	Start int
	End   int
}

func (s Span) len() int { return s.End - s.Start }

var (
	decimalRe = regexp.MustCompile(`\p{Nd}+\.\p{Nd}+`)
	digitsRe  = regexp.MustCompile(`\p{Nd}+`)

	// labelTailRe matches a 表/图/附录 label that ends right where a span
	// begins, e.g. "表", "图 ", "附录A.", "表A.".
	labelTailRe = regexp.MustCompile(`(?:[附录]{1,2}|表|图)` + space + `*(?:[A-Z]\.?)?(?:\p{Nd}+[.-])*$`)
	labelHeadRe = regexp.MustCompile(`^(?:[.-]\p{Nd}+)*`)

	dottedTailRe = regexp.MustCompile(`(?:\p{Nd}+\.)+$`)
	dottedHeadRe = regexp.MustCompile(`^(?:\.\p{Nd}+)+`)
)

// referenceVerbs may sit directly before a label: "见表1", "如图2", "详见附录A.1".
var referenceVerbs = []string{"见", "如", "据"}

// ExtractNumbers returns the sensitive numeric spans of doc in document
// order. Spans never overlap; spans touching a protected region and spans
// classified as structural are excluded. Repeated values are returned once
// per occurrence.
func ExtractNumbers(doc string) []Span {
	if doc == "" {
		return nil
	}
	regions := ProtectedRegions(doc)

	var out []Span
	for _, s := range candidates(doc) {
		if protected(regions, s) {
			continue
		}
		line := lineAround(doc, s.Start)
		if IsSectionNumber(s.Text, line) || nearListMarker(doc, s) ||
			nearLabel(doc, s) || inDottedSection(doc, s, line) || IsTableSeparator(line) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// candidates collects decimal then integer matches, orders them by start
// and resolves overlaps greedily: a later candidate that overlaps the last
// kept one replaces it only if it is strictly longer.
func candidates(doc string) []Span {
	var all []Span
	for _, re := range []*regexp.Regexp{decimalRe, digitsRe} {
		for _, loc := range re.FindAllStringIndex(doc, -1) {
			all = append(all, Span{Text: doc[loc[0]:loc[1]], Start: loc[0], End: loc[1]})
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Start < all[j].Start })

	var kept []Span
	for _, s := range all {
		if len(kept) == 0 {
			kept = append(kept, s)
			continue
		}
		last := &kept[len(kept)-1]
		switch {
		case s.Start >= last.End:
			kept = append(kept, s)
		case s.len() > last.len():
			*last = s
		}
	}
	return kept
}

func protected(regions []Region, s Span) bool {
	for _, r := range regions {
		if r.Overlaps(s.Start, s.End) {
			return true
		}
	}
	return false
}

// lineAround returns the line containing offset pos, without its newline.
func lineAround(doc string, pos int) string {
	start := strings.LastIndexByte(doc[:pos], '\n') + 1
	end := strings.IndexByte(doc[pos:], '\n')
	if end < 0 {
		return doc[start:]
	}
	return doc[start : pos+end]
}

// nearListMarker tests the span widened by the single character on either
// side, catching "(1)" and "1）" where the brackets sit outside the span.
func nearListMarker(doc string, s Span) bool {
	var before, after string
	if s.Start > 0 {
		_, n := utf8.DecodeLastRuneInString(doc[:s.Start])
		before = doc[s.Start-n : s.Start]
	}
	if s.End < len(doc) {
		_, n := utf8.DecodeRuneInString(doc[s.End:])
		after = doc[s.End : s.End+n]
	}
	if before != "" && after != "" && IsListMarker(before+s.Text+after) {
		return true
	}
	if after != "" && IsListMarker(s.Text+after) {
		return true
	}
	return before != "" && IsListMarker(before+s.Text)
}

// nearLabel widens the span over an adjacent table, figure or appendix
// label on the same line ("表1", "附录A.1") and classifies the result.
// The label must open a phrase, so "代表500" and "报表3200" are not labels.
func nearLabel(doc string, s Span) bool {
	lineStart := strings.LastIndexByte(doc[:s.Start], '\n') + 1
	loc := labelTailRe.FindStringIndex(doc[lineStart:s.Start])
	if loc == nil || !opensLabel(doc[lineStart:lineStart+loc[0]]) {
		return false
	}
	tail := doc[lineStart+loc[0] : s.Start]
	rest := doc[s.End:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	label := tail + s.Text + labelHeadRe.FindString(rest)
	return appendixRe.MatchString(label) || tableRe.MatchString(label) || figureRe.MatchString(label)
}

// opensLabel reports whether a label may start right after prefix. A label
// opens the line or follows a separator or reference verb.
func opensLabel(prefix string) bool {
	if prefix == "" {
		return true
	}
	for _, v := range referenceVerbs {
		if strings.HasSuffix(prefix, v) {
			return true
		}
	}
	r, _ := utf8.DecodeLastRuneInString(prefix)
	return isSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
}

// inDottedSection covers the trailing groups of a heading number such as
// "2.3.1", which the decimal pass splits into "2.3" and "1".
func inDottedSection(doc string, s Span, line string) bool {
	lineStart := strings.LastIndexByte(doc[:s.Start], '\n') + 1
	lineEnd := lineStart + len(line)
	left := dottedTailRe.FindString(doc[lineStart:s.Start])
	right := dottedHeadRe.FindString(doc[s.End:lineEnd])
	if left == "" && right == "" {
		return false
	}
	return IsSectionNumber(left+s.Text+right, line)
}
