package searcher

import (
	"github.com/dl/grepkit/matcher"
)

// ContextKind says why a context line was reported.
type ContextKind string

const (
	// ContextBefore is a line preceding a match.
	ContextBefore ContextKind = "Before"
	// ContextAfter is a line following a match.
	ContextAfter ContextKind = "After"
	// ContextOther covers lines reported outside a context window, e.g. in
	// passthru mode.
	ContextOther ContextKind = "Other"
)

// SinkMatch is a matching line reported by a Searcher.
//
// Bytes aliases the searcher's scan buffer and is only valid for the duration
// of the callback; sinks that retain events must copy it. Line is an
// independent string copy.
type SinkMatch struct {
	// LineNumber is the 1-based line number, present when line numbering is
	// enabled on the searcher.
	LineNumber *uint32 `json:"line_number"`
	// AbsoluteByteOffset is the offset of the start of this line within the
	// scanned input.
	AbsoluteByteOffset int64 `json:"absolute_byte_offset"`
	// Line is the matched line content.
	Line string `json:"line"`
	// Bytes is the raw matched line.
	Bytes []byte `json:"bytes"`
	// Matches holds the intra-line match spans. The searcher itself only
	// establishes that the line matches; sinks that need exact spans derive
	// them (see CollectSink).
	Matches []matcher.Range `json:"matches"`
}

// SinkContext is a non-matching line reported because of its position
// relative to a match, or because of passthru mode. Bytes has the same
// lifetime rules as SinkMatch.Bytes.
type SinkContext struct {
	LineNumber         *uint32     `json:"line_number"`
	AbsoluteByteOffset int64       `json:"absolute_byte_offset"`
	Line               string      `json:"line"`
	Bytes              []byte      `json:"bytes"`
	Kind               ContextKind `json:"kind"`
}

// SinkFinish summarizes a completed scan.
type SinkFinish struct {
	// ByteCount is the total number of bytes scanned.
	ByteCount int64 `json:"byte_count"`
	// BinaryByteOffset is the offset where binary content was first detected,
	// when binary detection is enabled and triggered.
	BinaryByteOffset *int64 `json:"binary_byte_offset"`
}

// SearchResult is the aggregate a CollectSink accumulates over one scan.
type SearchResult struct {
	Matches []SinkMatch   `json:"matches"`
	Context []SinkContext `json:"context"`
	Finish  SinkFinish    `json:"finish"`
}

// Sink receives events from a Searcher in chronological order: any number of
// Matched/Context calls followed by exactly one Finished call on successful
// completion. Returning false from Matched or Context stops the scan before
// the next line; the stop is treated as normal completion and Finished is
// still delivered.
type Sink interface {
	Matched(mat *SinkMatch) (bool, error)
	Context(ctx *SinkContext) (bool, error)
	Finished(fin *SinkFinish) error
}

// CollectSink accumulates every event of a scan into a SearchResult. It holds
// the same Matcher the scan runs with and re-derives the exact intra-line
// match spans for each matched line, since the scan loop itself only decides
// that a line matches.
//
// The accumulated result is only meaningful after a scan that returned nil;
// on an operational error the partial aggregate should be discarded.
type CollectSink struct {
	m      *matcher.Matcher
	result SearchResult
}

// NewCollectSink returns a CollectSink deriving spans with m.
func NewCollectSink(m *matcher.Matcher) *CollectSink {
	return &CollectSink{m: m}
}

func (s *CollectSink) Matched(mat *SinkMatch) (bool, error) {
	ev := *mat
	ev.Bytes = append([]byte(nil), mat.Bytes...)
	// Second pass, bounded to this line: recover where the matches are.
	// Inverted scans report lines without any span, which FindAll yields
	// naturally.
	ev.Matches = s.m.FindAll(ev.Bytes)
	s.result.Matches = append(s.result.Matches, ev)
	return true, nil
}

func (s *CollectSink) Context(ctx *SinkContext) (bool, error) {
	ev := *ctx
	ev.Bytes = append([]byte(nil), ctx.Bytes...)
	s.result.Context = append(s.result.Context, ev)
	return true, nil
}

func (s *CollectSink) Finished(fin *SinkFinish) error {
	s.result.Finish = *fin
	return nil
}

// Result returns the accumulated aggregate.
func (s *CollectSink) Result() SearchResult { return s.result }

// CountSink counts matched lines without retaining them. It satisfies the
// same contract as CollectSink and demonstrates that consumers need not hold
// results in memory.
type CountSink struct {
	// Max stops the scan once this many matches have been counted. Zero
	// means no limit.
	Max uint64

	count  uint64
	finish SinkFinish
}

func (s *CountSink) Matched(*SinkMatch) (bool, error) {
	s.count++
	if s.Max > 0 && s.count >= s.Max {
		return false, nil
	}
	return true, nil
}

func (s *CountSink) Context(*SinkContext) (bool, error) { return true, nil }

func (s *CountSink) Finished(fin *SinkFinish) error {
	s.finish = *fin
	return nil
}

// Count returns the number of matched lines seen.
func (s *CountSink) Count() uint64 { return s.count }

// Finish returns the scan summary.
func (s *CountSink) Finish() SinkFinish { return s.finish }
