package desensitizer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// space mirrors the Unicode whitespace class used by the matching rules.
// Go's \s is ASCII-only; documents routinely contain U+3000 and NBSP.
const space = `[\t\n\v\f\r\x{1c}-\x{1f}\x{85}\p{Z}]`

var (
	dottedRe   = regexp.MustCompile(`^\p{Nd}+(?:\.\p{Nd}+)+$`)
	integerRe  = regexp.MustCompile(`^\p{Nd}+$`)
	headingRe  = regexp.MustCompile(`^#{1,6}` + space + `+`)
	appendixRe = regexp.MustCompile(`^[附录]{1,2}` + space + `*[A-Z]\.?\p{Nd}*(?:\.\p{Nd}+)*$`)
	tableRe    = regexp.MustCompile(`^表` + space + `*(?:[A-Z]\.?\p{Nd}+(?:\.\p{Nd}+)*|\p{Nd}+(?:-\p{Nd}+)*)$`)
	figureRe   = regexp.MustCompile(`^图` + space + `*(?:[A-Z]\.?\p{Nd}+(?:\.\p{Nd}+)*|\p{Nd}+(?:-\p{Nd}+)*)$`)
	refRe      = regexp.MustCompile(`^\[\p{Nd}+\]` + space + `*.*\(#.*\)$`)
	listRe     = regexp.MustCompile(`^[(（]\p{Nd}+[)）]$|^\p{Nd}+[)）]$`)
	chainRe    = regexp.MustCompile(`^\p{Nd}+(?:-\p{Nd}+)+$`)
	tableSepRe = regexp.MustCompile(`^` + space + `*\|[-|:\t\n\v\f\r\x{1c}-\x{1f}\x{85}\p{Z}]+\|[-|:\t\n\v\f\r\x{1c}-\x{1f}\x{85}\p{Z}]*$`)
)

// rule is one structural-number predicate. text and line are already trimmed.
type rule struct {
	name  string
	match func(text, line string) bool
}

// rules is evaluated in order; the first match classifies the span as
// structural.
var rules = []rule{
	{"section", func(text, line string) bool {
		return dottedRe.MatchString(text) && (afterHeading(text, line) || leadingToken(text, line))
	}},
	{"leading-integer", func(text, line string) bool {
		return integerRe.MatchString(text) &&
			(afterHeading(text, line) || (leadingToken(text, line) && !strings.HasPrefix(line, "|")))
	}},
	{"appendix", func(text, _ string) bool { return appendixRe.MatchString(text) }},
	{"table", func(text, _ string) bool { return tableRe.MatchString(text) }},
	{"figure", func(text, _ string) bool { return figureRe.MatchString(text) }},
	{"reference", func(text, _ string) bool { return refRe.MatchString(text) }},
	{"list-marker", func(text, _ string) bool { return listRe.MatchString(text) }},
	{"hyphen-chain", func(text, _ string) bool { return chainRe.MatchString(text) }},
	{"emphasis-heading", emphasisHeading},
}

// IsSectionNumber reports whether text, found on the given line, is a
// structural number (heading, label, list marker, composite code) that must
// be kept verbatim. The decision depends only on shape and position, never
// on the numeric value.
func IsSectionNumber(text, line string) bool {
	text = strings.TrimSpace(text)
	line = strings.TrimSpace(line)
	for _, r := range rules {
		if r.match(text, line) {
			return true
		}
	}
	return false
}

// IsListMarker reports whether s has the shape of a list marker such as
// "(1)", "（1）", "1)" or "1）".
func IsListMarker(s string) bool {
	return listRe.MatchString(strings.TrimSpace(s))
}

// IsTableSeparator reports whether line is a Markdown table separator row.
func IsTableSeparator(line string) bool {
	return tableSepRe.MatchString(line)
}

// afterHeading: "# 1.1 ...", "### 3 ..." with 1-6 markers.
func afterHeading(text, line string) bool {
	loc := headingRe.FindStringIndex(line)
	if loc == nil {
		return false
	}
	return strings.HasPrefix(line[loc[1]:], text)
}

// leadingToken: text opens the line and is followed by whitespace.
func leadingToken(text, line string) bool {
	if !strings.HasPrefix(line, text) {
		return false
	}
	r, n := utf8.DecodeRuneInString(line[len(text):])
	return n > 0 && isSpace(r)
}

func emphasisHeading(text, line string) bool {
	if len(line) < 6+len(text) || !strings.HasPrefix(line, "***") || !strings.HasSuffix(line, "***") {
		return false
	}
	return strings.Contains(line[3:len(line)-3], text)
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

// isWord matches the Unicode notion of a word character, which treats CJK
// ideographs as letters. Go's \b does not.
func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
