package matcher

import "bytes"

// literalEngine matches one or more fixed strings with plain byte search,
// bypassing the regex engines. It is only selected for case-sensitive
// matching: case folding can change byte lengths (U+0130 folds to one byte,
// U+023A to three), so insensitive literals go through the regex path, which
// folds without disturbing offsets.
type literalEngine struct {
	lits [][]byte
}

func newLiteralEngine(patterns []string) *literalEngine {
	lits := make([][]byte, len(patterns))
	for i, p := range patterns {
		lits[i] = []byte(p)
	}
	return &literalEngine{lits: lits}
}

func (e *literalEngine) isMatch(b []byte) bool {
	for _, lit := range e.lits {
		if bytes.Contains(b, lit) {
			return true
		}
	}
	return false
}

// find returns the leftmost-longest occurrence across all literals, matching
// the alternation semantics the regex engines would give.
func (e *literalEngine) find(b []byte) (Range, bool) {
	best := -1
	bestEnd := 0
	for _, lit := range e.lits {
		idx := bytes.Index(b, lit)
		if idx < 0 {
			continue
		}
		end := idx + len(lit)
		if best < 0 || idx < best || (idx == best && end > bestEnd) {
			best = idx
			bestEnd = end
		}
	}
	if best < 0 {
		return Range{}, false
	}
	return Range{Start: uint32(best), End: uint32(bestEnd)}, true
}
