package desensitizer

import (
	"regexp"
	"unicode/utf8"
)

// Region is a half-open byte interval [Start, End) of a document that
// numeric scanning must not split or replace.
type Region struct {
	Start int
	End   int
	Kind  string
}

// Overlaps reports whether [start, end) intersects r.
func (r Region) Overlaps(start, end int) bool {
	return start < r.End && end > r.Start
}

// regionPattern is one protected-region detector. Patterns with a whole
// form must have both edges on a Unicode word boundary.
type regionPattern struct {
	kind  string
	re    *regexp.Regexp
	whole *regexp.Regexp
}

func pattern(kind, expr string) regionPattern {
	return regionPattern{kind: kind, re: regexp.MustCompile(expr)}
}

func boundedPattern(kind, expr string) regionPattern {
	p := pattern(kind, expr)
	p.whole = regexp.MustCompile(`^(?:` + expr + `)$`)
	return p
}

var regionPatterns = []regionPattern{
	pattern("url", `https?://[^\t\n\v\f\r\x{1c}-\x{1f}\x{85}\p{Z}<>"]+`),
	boundedPattern("email", `[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}`),
	pattern("ipv6-keyword", `[iI][pP]v6`),
	boundedPattern("ipv6", `(?:[0-9a-fA-F]{1,4}:)+[0-9a-fA-F]{1,4}`),
	boundedPattern("ipv4", `(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)`),
	boundedPattern("date", `\p{Nd}{4}[-/]\p{Nd}{1,2}[-/]\p{Nd}{1,2}`),
	boundedPattern("date", `\p{Nd}{1,2}/\p{Nd}{1,2}/\p{Nd}{4}`),
	pattern("device", `[\x{4e00}-\x{9fa5}]+-[A-Za-z0-9]+-[A-Za-z0-9]+`),
	pattern("label-code", `(?:表|图)`+space+`*[A-Za-z0-9]+(?:-[A-Za-z0-9]+)+`),
}

// composite code prefix: alnum(-alnum)+, greedy, anchored.
var compositeRe = regexp.MustCompile(`^[A-Za-z0-9]+(?:-[A-Za-z0-9]+)+`)

// ProtectedRegions returns every protected region of doc in detection order.
// Regions may overlap each other.
func ProtectedRegions(doc string) []Region {
	var out []Region
	for _, p := range regionPatterns {
		out = append(out, p.find(doc)...)
	}
	return append(out, compositeCodes(doc)...)
}

// find returns the non-overlapping matches of p in doc. A bounded match that
// fails the boundary test is first shortened, then retried from the next
// character, so "x1.2.3.4.5" still yields the address "2.3.4.5".
func (p regionPattern) find(doc string) []Region {
	var out []Region
	for pos := 0; pos < len(doc); {
		loc := p.re.FindStringIndex(doc[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if p.whole != nil {
			if end = p.boundedEnd(doc, start, end); end < 0 {
				_, n := utf8.DecodeRuneInString(doc[start:])
				pos = start + n
				continue
			}
		}
		out = append(out, Region{Start: start, End: end, Kind: p.kind})
		if end == start {
			end++
		}
		pos = end
	}
	return out
}

// boundedEnd returns the longest end <= end at which doc[start:e] is still a
// whole match with both edges on word boundaries; -1 if there is none.
func (p regionPattern) boundedEnd(doc string, start, end int) int {
	if !boundaryAt(doc, start) {
		return -1
	}
	for e := end; e > start; e-- {
		if boundaryAt(doc, e) && p.whole.MatchString(doc[start:e]) {
			return e
		}
	}
	return -1
}

// boundaryAt checks offset i against Unicode word characters, so the "10"
// in "时间10:30" does not start on a boundary.
func boundaryAt(doc string, i int) bool {
	before, after := false, false
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(doc[:i])
		before = isWord(r)
	}
	if i < len(doc) {
		r, _ := utf8.DecodeRuneInString(doc[i:])
		after = isWord(r)
	}
	return before != after
}

// compositeCodes finds alnum(-alnum)+ codes such as "43-DZ-1" or "A1-B2-3"
// that are neither preceded nor followed by a hyphen. When the greedy match
// runs into a trailing hyphen it is shortened to the longest prefix that
// still forms a code and is not followed by one.
func compositeCodes(doc string) []Region {
	var out []Region
	for i := 0; i < len(doc); {
		if !isASCIIAlnum(doc[i]) || (i > 0 && doc[i-1] == '-') {
			i++
			continue
		}
		loc := compositeRe.FindStringIndex(doc[i:])
		end := -1
		if loc != nil {
			end = i + loc[1]
			if end < len(doc) && doc[end] == '-' {
				end = shrinkComposite(doc, i, end)
			}
		}
		if end < 0 {
			// Later starts inside the same alnum run see the same suffix.
			for i++; i < len(doc) && isASCIIAlnum(doc[i]); i++ {
			}
			continue
		}
		out = append(out, Region{Start: i, End: end, Kind: "composite"})
		i = end
	}
	return out
}

// shrinkComposite returns the largest e < end such that doc[start:e] ends in
// an alnum, contains a hyphen, and doc[e] is not a hyphen; -1 if none.
func shrinkComposite(doc string, start, end int) int {
	for e := end - 1; e > start; e-- {
		if doc[e] == '-' || !isASCIIAlnum(doc[e-1]) {
			continue
		}
		for j := start; j < e; j++ {
			if doc[j] == '-' {
				return e
			}
		}
		return -1
	}
	return -1
}

func isASCIIAlnum(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}
