// Package searcher drives a compiled matcher across byte sources line by
// line, reporting matches, context lines and a final summary through a
// caller-supplied Sink.
package searcher

import (
	"bytes"
	"errors"

	"github.com/dl/grepkit/matcher"
)

// BinaryDetection selects how the searcher reacts to NUL bytes in the input.
type BinaryDetection int

const (
	// BinaryNone performs no binary detection.
	BinaryNone BinaryDetection = iota
	// BinaryQuit ends the scan at the first NUL byte, recording its offset.
	// This is a normal completion, not an error.
	BinaryQuit
	// BinaryConvert treats NUL bytes as line terminators, recovering text
	// after embedded binary markers.
	BinaryConvert
)

// ErrScanInProgress is returned when a scan is started on a Searcher whose
// previous scan has not finished. One Searcher runs one scan at a time.
var ErrScanInProgress = errors.New("searcher: scan already in progress")

// ErrHeapLimit is returned when buffering the input would exceed the
// configured heap limit, e.g. a single line longer than the limit on a
// stream source. The limit is a hard cap, never a silent truncation.
var ErrHeapLimit = errors.New("searcher: heap limit exceeded")

type config struct {
	lineTerm       byte
	invert         bool
	lineNumber     bool
	multiLine      bool
	before         int
	after          int
	passthru       bool
	heapLimit      *int
	binary         BinaryDetection
	bomSniffing    bool
	stopOnNonmatch bool
	maxMatches     *uint64
}

// SearcherBuilder accumulates scan-time options. Setters return the builder
// for chaining; Build always succeeds.
type SearcherBuilder struct {
	cfg config
}

// NewSearcherBuilder returns a builder with default configuration: newline
// terminator, line numbers on, BOM sniffing on, no binary detection.
func NewSearcherBuilder() *SearcherBuilder {
	return &SearcherBuilder{cfg: config{
		lineTerm:    '\n',
		lineNumber:  true,
		bomSniffing: true,
	}}
}

// LineTerminator sets the byte that ends a line. Default '\n'.
func (b *SearcherBuilder) LineTerminator(t byte) *SearcherBuilder { b.cfg.lineTerm = t; return b }

// InvertMatch reports non-matching lines instead of matching ones.
func (b *SearcherBuilder) InvertMatch(yes bool) *SearcherBuilder { b.cfg.invert = yes; return b }

// LineNumber enables 1-based line numbers on reported events. Default on.
func (b *SearcherBuilder) LineNumber(yes bool) *SearcherBuilder { b.cfg.lineNumber = yes; return b }

// MultiLine matches against the whole buffer instead of line by line, so
// matches may span line terminators. The entire input is loaded in memory.
func (b *SearcherBuilder) MultiLine(yes bool) *SearcherBuilder { b.cfg.multiLine = yes; return b }

// BeforeContext reports up to n non-matching lines preceding each match.
func (b *SearcherBuilder) BeforeContext(n int) *SearcherBuilder { b.cfg.before = n; return b }

// AfterContext reports up to n non-matching lines following each match.
func (b *SearcherBuilder) AfterContext(n int) *SearcherBuilder { b.cfg.after = n; return b }

// Passthru reports every non-matching line as Other context and disables
// before/after windowing.
func (b *SearcherBuilder) Passthru(yes bool) *SearcherBuilder { b.cfg.passthru = yes; return b }

// HeapLimit caps buffered bytes. nil means unlimited; a pointer to zero
// disables heap use entirely, which restricts the searcher to memory-mapped
// path sources and direct slices.
func (b *SearcherBuilder) HeapLimit(limit *int) *SearcherBuilder { b.cfg.heapLimit = limit; return b }

// BinaryDetection sets how NUL bytes are handled.
func (b *SearcherBuilder) BinaryDetection(d BinaryDetection) *SearcherBuilder {
	b.cfg.binary = d
	return b
}

// BOMSniffing detects a leading byte-order mark and applies the implied
// decoding instead of treating the mark as content. Default on.
func (b *SearcherBuilder) BOMSniffing(yes bool) *SearcherBuilder { b.cfg.bomSniffing = yes; return b }

// StopOnNonmatch ends the scan at the first non-matching line after at least
// one match, outside any context window. Useful on sorted input.
func (b *SearcherBuilder) StopOnNonmatch(yes bool) *SearcherBuilder {
	b.cfg.stopOnNonmatch = yes
	return b
}

// MaxMatches caps the number of reported match lines. nil means no cap.
func (b *SearcherBuilder) MaxMatches(limit *uint64) *SearcherBuilder {
	b.cfg.maxMatches = limit
	return b
}

// Build produces a Searcher with the accumulated configuration.
func (b *SearcherBuilder) Build() *Searcher {
	cfg := b.cfg
	// Passthru reports every line anyway; context windows would only
	// complicate the accounting.
	if cfg.passthru {
		cfg.before = 0
		cfg.after = 0
	}
	return &Searcher{cfg: cfg}
}

// Searcher executes scans. It is reusable across scans but holds scan-local
// buffers, so only one scan may run on an instance at a time; concurrent
// scans need one Searcher each (they may share a Matcher freely).
type Searcher struct {
	cfg      config
	scanning bool
}

// NewSearcher returns a Searcher with default configuration.
func NewSearcher() *Searcher {
	return NewSearcherBuilder().Build()
}

// begin guards against overlapping scans on one instance. This catches
// accidental reuse; it is not a synchronization primitive.
func (s *Searcher) begin() error {
	if s.scanning {
		return ErrScanInProgress
	}
	s.scanning = true
	return nil
}

func (s *Searcher) end() { s.scanning = false }

// savedLine is a before-context candidate held in the look-behind ring.
type savedLine struct {
	data    []byte
	lineNum uint32
	offset  int64
}

// scanState is the per-scan mutable state driving sink events: byte and line
// accounting, the before-context ring, the after-context countdown, and the
// match limit.
type scanState struct {
	cfg  *config
	sink Sink

	offset     int64
	lineNum    uint32
	ring       []savedLine
	afterLeft  int
	matched    bool
	matchCount uint64
	limitHit   bool
	binOff     *int64
}

// step processes one line whose match status is already decided. It returns
// false when the scan should end: sink-requested stop, stop-on-nonmatch, or
// the match limit with no trailing context left to emit.
func (st *scanState) step(content []byte, size int, isMatch bool) (bool, error) {
	lineStart := st.offset
	st.lineNum++
	cont := true

	if isMatch {
		for _, sl := range st.ring {
			c, err := st.emitContext(sl.data, sl.offset, sl.lineNum, ContextBefore)
			if err != nil {
				return false, err
			}
			if !c {
				cont = false
				break
			}
		}
		st.ring = st.ring[:0]
		if cont {
			c, err := st.emitMatch(content, lineStart, st.lineNum)
			if err != nil {
				return false, err
			}
			cont = c
		}
		st.matched = true
		st.matchCount++
		st.afterLeft = st.cfg.after
		if st.cfg.maxMatches != nil && st.matchCount >= *st.cfg.maxMatches {
			st.limitHit = true
		}
	} else {
		switch {
		case st.cfg.passthru:
			c, err := st.emitContext(content, lineStart, st.lineNum, ContextOther)
			if err != nil {
				return false, err
			}
			cont = c
		case st.afterLeft > 0:
			c, err := st.emitContext(content, lineStart, st.lineNum, ContextAfter)
			if err != nil {
				return false, err
			}
			cont = c
			st.afterLeft--
		case st.cfg.stopOnNonmatch && st.matched:
			// The non-matching line itself is not consumed: byte_count ends
			// at its start.
			return false, nil
		case st.cfg.before > 0:
			st.push(content, lineStart, st.lineNum)
		}
	}

	st.offset += int64(size)
	if !cont {
		return false, nil
	}
	if st.limitHit && st.afterLeft == 0 {
		return false, nil
	}
	return true, nil
}

// push saves a copy of a line into the bounded look-behind ring.
func (st *scanState) push(content []byte, offset int64, lineNum uint32) {
	if len(st.ring) >= st.cfg.before {
		copy(st.ring, st.ring[1:])
		st.ring = st.ring[:len(st.ring)-1]
	}
	st.ring = append(st.ring, savedLine{
		data:    append([]byte(nil), content...),
		lineNum: lineNum,
		offset:  offset,
	})
}

func (st *scanState) emitMatch(content []byte, offset int64, lineNum uint32) (bool, error) {
	ev := SinkMatch{
		AbsoluteByteOffset: offset,
		Line:               string(content),
		Bytes:              content,
	}
	if st.cfg.lineNumber {
		n := lineNum
		ev.LineNumber = &n
	}
	return st.sink.Matched(&ev)
}

func (st *scanState) emitContext(content []byte, offset int64, lineNum uint32, kind ContextKind) (bool, error) {
	ev := SinkContext{
		AbsoluteByteOffset: offset,
		Line:               string(content),
		Bytes:              content,
		Kind:               kind,
	}
	if st.cfg.lineNumber {
		n := lineNum
		ev.LineNumber = &n
	}
	return st.sink.Context(&ev)
}

func (st *scanState) finish() error {
	return st.sink.Finished(&SinkFinish{
		ByteCount:        st.offset,
		BinaryByteOffset: st.binOff,
	})
}

// scanLines is the streaming line-mode scan: one forward pass, one IsMatch
// call per line, context bookkeeping in scanState.
func (s *Searcher) scanLines(m *matcher.Matcher, src lineSource, sink Sink) error {
	st := &scanState{cfg: &s.cfg, sink: sink}
	crlf := m.CRLF()

	for {
		rec, ok, err := src.next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		if rec.nulTerm && st.binOff == nil {
			off := st.offset + int64(len(rec.data))
			st.binOff = &off
		}
		if s.cfg.binary == BinaryQuit {
			if i := bytes.IndexByte(rec.data, 0); i >= 0 {
				off := st.offset + int64(i)
				st.binOff = &off
				break
			}
		}

		content := rec.data
		if crlf && rec.hadTerm && !rec.nulTerm && len(content) > 0 && content[len(content)-1] == '\r' {
			content = content[:len(content)-1]
		}

		isMatch := m.IsMatch(content) != s.cfg.invert
		cont, err := st.step(content, rec.size, isMatch)
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return st.finish()
}

// lineEntry is one line of a fully materialized buffer.
type lineEntry struct {
	start   int
	content []byte
	size    int
}

// lineSpan is a run of lines [first, last] covered by one multi-line match.
type lineSpan struct {
	first, last int
}

// scanMulti matches the whole buffer at once; matches may cross line
// terminators and are reported as the line-aligned span containing them.
func (s *Searcher) scanMulti(m *matcher.Matcher, buf []byte, sink Sink) error {
	var binOff *int64
	switch s.cfg.binary {
	case BinaryQuit:
		if i := bytes.IndexByte(buf, 0); i >= 0 {
			off := int64(i)
			binOff = &off
			// Drop everything from the start of the line containing the NUL.
			cut := 0
			if j := bytes.LastIndexByte(buf[:i], s.cfg.lineTerm); j >= 0 {
				cut = j + 1
			}
			buf = buf[:cut]
		}
	case BinaryConvert:
		if i := bytes.IndexByte(buf, 0); i >= 0 {
			off := int64(i)
			binOff = &off
			buf = bytes.ReplaceAll(buf, []byte{0}, []byte{s.cfg.lineTerm})
		}
	}

	lines := splitBuffer(buf, s.cfg.lineTerm, m.CRLF())
	spans := s.matchSpans(m, buf, lines)

	st := &scanState{cfg: &s.cfg, sink: sink, binOff: binOff}
	spanIdx := 0
	for i := 0; i < len(lines); {
		if spanIdx < len(spans) && spans[spanIdx].first == i {
			sp := spans[spanIdx]
			spanIdx++
			cont := true
			for _, sl := range st.ring {
				c, err := st.emitContext(sl.data, sl.offset, sl.lineNum, ContextBefore)
				if err != nil {
					return err
				}
				if !c {
					cont = false
					break
				}
			}
			st.ring = st.ring[:0]
			if cont {
				last := lines[sp.last]
				content := buf[lines[sp.first].start : last.start+len(last.content)]
				c, err := st.emitMatch(content, int64(lines[sp.first].start), uint32(sp.first+1))
				if err != nil {
					return err
				}
				cont = c
			}
			st.matched = true
			st.matchCount++
			st.afterLeft = s.cfg.after
			if s.cfg.maxMatches != nil && st.matchCount >= *s.cfg.maxMatches {
				st.limitHit = true
			}
			for j := sp.first; j <= sp.last; j++ {
				st.offset += int64(lines[j].size)
			}
			st.lineNum = uint32(sp.last + 1)
			i = sp.last + 1
			if !cont {
				return st.finish()
			}
			if st.limitHit && st.afterLeft == 0 {
				return st.finish()
			}
			continue
		}

		cont, err := st.step(lines[i].content, lines[i].size, false)
		if err != nil {
			return err
		}
		i++
		if !cont {
			break
		}
	}
	return st.finish()
}

// splitBuffer builds the line table for a materialized buffer. A trailing
// terminator does not open an empty final line.
func splitBuffer(buf []byte, term byte, crlf bool) []lineEntry {
	var lines []lineEntry
	start := 0
	for start < len(buf) {
		rest := buf[start:]
		idx := bytes.IndexByte(rest, term)
		var content []byte
		var size int
		if idx >= 0 {
			content = rest[:idx]
			size = idx + 1
			if crlf && len(content) > 0 && content[len(content)-1] == '\r' {
				content = content[:len(content)-1]
			}
		} else {
			content = rest
			size = len(rest)
		}
		lines = append(lines, lineEntry{start: start, content: content, size: size})
		if idx < 0 {
			break
		}
		start += size
	}
	return lines
}

// matchSpans maps whole-buffer matches onto runs of line indices, merging
// runs that share lines, then applies inversion if configured.
func (s *Searcher) matchSpans(m *matcher.Matcher, buf []byte, lines []lineEntry) []lineSpan {
	ranges := m.FindAll(buf)

	var spans []lineSpan
	li := 0
	lineOf := func(pos int) int {
		// Ranges arrive ascending, so the cursor only moves forward.
		for li < len(lines)-1 && pos >= lines[li].start+lines[li].size {
			li++
		}
		return li
	}
	for _, r := range ranges {
		first := lineOf(int(r.Start))
		end := int(r.End)
		if end > int(r.Start) {
			end--
		}
		last := lineOf(end)
		if n := len(spans); n > 0 && first <= spans[n-1].last {
			if last > spans[n-1].last {
				spans[n-1].last = last
			}
			continue
		}
		spans = append(spans, lineSpan{first: first, last: last})
	}

	if !s.cfg.invert {
		return spans
	}

	// Inverted multi-line scan: every line not covered by a span matches,
	// each as its own single-line span.
	covered := make([]bool, len(lines))
	for _, sp := range spans {
		for i := sp.first; i <= sp.last; i++ {
			covered[i] = true
		}
	}
	var inv []lineSpan
	for i := range lines {
		if !covered[i] {
			inv = append(inv, lineSpan{first: i, last: i})
		}
	}
	return inv
}
