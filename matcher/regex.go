package matcher

import "regexp"

// regexEngine matches using Go's RE2 regexp engine. It covers every flag
// combination except extended whitespace mode, octal escapes, and ASCII-only
// character classes, which route to the PCRE engine instead.
type regexEngine struct {
	re *regexp.Regexp
}

func (e *regexEngine) isMatch(b []byte) bool {
	return e.re.Match(b)
}

func (e *regexEngine) find(b []byte) (Range, bool) {
	loc := e.re.FindIndex(b)
	if loc == nil {
		return Range{}, false
	}
	return Range{Start: uint32(loc[0]), End: uint32(loc[1])}, true
}
