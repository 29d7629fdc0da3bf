// Package matcher compiles text patterns into reusable matching primitives.
//
// A Matcher is built once via Builder and is immutable afterwards: it is safe
// to share one Matcher across any number of concurrent searches.
package matcher

// Range is a half-open byte interval [Start, End) within the buffer that was
// passed to the matching operation.
type Range struct {
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
}

// engine is the internal matching primitive a Matcher delegates to.
// Implementations: regexEngine (RE2), pcreEngine, literalEngine.
type engine interface {
	isMatch(b []byte) bool
	// find returns the leftmost match in b, with offsets relative to b.
	find(b []byte) (Range, bool)
}

// Matcher is a compiled pattern. Use Builder to construct one.
type Matcher struct {
	eng engine

	// Compile-time line handling the searcher consults when splitting input.
	lineTerm *byte
	crlf     bool
}

// LineTerminator returns the line terminator byte declared at build time, if
// any. Searchers use it to keep their line splitting consistent with the
// pattern's compiled semantics.
func (m *Matcher) LineTerminator() (byte, bool) {
	if m.lineTerm == nil {
		return 0, false
	}
	return *m.lineTerm, true
}

// CRLF reports whether the matcher was built in CRLF mode. Searchers then
// treat a carriage return immediately before the line terminator as part of
// the terminator rather than line content.
func (m *Matcher) CRLF() bool { return m.crlf }

// IsMatch reports whether the pattern matches anywhere in b.
func (m *Matcher) IsMatch(b []byte) bool {
	return m.eng.isMatch(b)
}

// Find returns the leftmost match in b, or false if there is none.
func (m *Matcher) Find(b []byte) (Range, bool) {
	return m.eng.find(b)
}

// FindAll returns all matches in b in ascending, non-overlapping order.
//
// It repeatedly finds the leftmost match in the remaining suffix, advancing by
// at least one byte when a match is zero-width so that patterns like `^` or
// `\b` cannot loop forever. The searcher's collecting sink relies on this
// exact loop to recover intra-line spans, so the edge-case behavior here is
// load-bearing.
func (m *Matcher) FindAll(b []byte) []Range {
	var out []Range
	start := 0
	for start < len(b) {
		r, ok := m.eng.find(b[start:])
		if !ok {
			break
		}
		out = append(out, Range{Start: uint32(start) + r.Start, End: uint32(start) + r.End})
		adv := int(r.End)
		if r.Start == r.End {
			// Zero-width match: step past it or we would report it again.
			adv = int(r.End) + 1
		}
		if adv < 1 {
			adv = 1
		}
		start += adv
	}
	return out
}

// Close releases engine resources that are not managed by the garbage
// collector (the PCRE engine holds compiled pattern memory). It is safe to
// call on any Matcher and safe to call more than once.
func (m *Matcher) Close() {
	if c, ok := m.eng.(interface{ close() }); ok {
		c.close()
	}
}
