// Package grepkit bundles the matcher and searcher packages behind simple
// entry points for one-off searches. Callers that reuse a pattern across many
// scans should build a matcher.Matcher once and drive searcher.Searcher
// directly.
package grepkit

import (
	"github.com/dl/grepkit/matcher"
	"github.com/dl/grepkit/searcher"
)

// Search scans haystack with pattern under default options and returns the
// collected result. Text inputs are their raw bytes; no transformation is
// applied.
func Search(pattern string, haystack []byte) (searcher.SearchResult, error) {
	m, err := matcher.NewBuilder().Build(pattern)
	if err != nil {
		return searcher.SearchResult{}, err
	}
	defer m.Close()
	sink := searcher.NewCollectSink(m)
	if err := searcher.NewSearcher().SearchSlice(m, haystack, sink); err != nil {
		return searcher.SearchResult{}, err
	}
	return sink.Result(), nil
}

// SearchFile scans the file at path with pattern under default options.
func SearchFile(pattern, path string) (searcher.SearchResult, error) {
	m, err := matcher.NewBuilder().Build(pattern)
	if err != nil {
		return searcher.SearchResult{}, err
	}
	defer m.Close()
	sink := searcher.NewCollectSink(m)
	if err := searcher.NewSearcher().SearchPath(m, path, sink); err != nil {
		return searcher.SearchResult{}, err
	}
	return sink.Result(), nil
}

// IsMatch reports whether pattern matches anywhere in text.
func IsMatch(pattern string, text []byte) (bool, error) {
	m, err := matcher.NewBuilder().Build(pattern)
	if err != nil {
		return false, err
	}
	defer m.Close()
	return m.IsMatch(text), nil
}

// Find returns the first match of pattern in text.
func Find(pattern string, text []byte) (matcher.Range, bool, error) {
	m, err := matcher.NewBuilder().Build(pattern)
	if err != nil {
		return matcher.Range{}, false, err
	}
	defer m.Close()
	r, ok := m.Find(text)
	return r, ok, nil
}

// FindAll returns every match of pattern in text in ascending order.
func FindAll(pattern string, text []byte) ([]matcher.Range, error) {
	m, err := matcher.NewBuilder().Build(pattern)
	if err != nil {
		return nil, err
	}
	defer m.Close()
	return m.FindAll(text), nil
}
