package searcher

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestSearchPath(t *testing.T) {
	m := buildMatcher(t, "needle")
	content := "hay\nneedle\nhay\n"
	path := writeFile(t, content)

	s := NewSearcher()
	want := &recordSink{}
	if err := s.SearchSlice(m, []byte(content), want); err != nil {
		t.Fatalf("SearchSlice() error: %v", err)
	}

	limits := map[string]*int{
		"unlimited heap": nil,
		"mmap":           intp(0),
		"buffered":       intp(1 << 20),
		"streamed":       intp(8),
	}
	for name, hl := range limits {
		t.Run(name, func(t *testing.T) {
			s := NewSearcherBuilder().HeapLimit(hl).Build()
			got := &recordSink{}
			if err := s.SearchPath(m, path, got); err != nil {
				t.Fatalf("SearchPath() error: %v", err)
			}
			if !reflect.DeepEqual(got.events, want.events) {
				t.Errorf("events = %+v, want %+v", got.events, want.events)
			}
			if got.finish != want.finish {
				t.Errorf("finish = %+v, want %+v", got.finish, want.finish)
			}
		})
	}
}

func intp(v int) *int { return &v }

func TestSearchPath_Empty(t *testing.T) {
	m := buildMatcher(t, "a")
	path := writeFile(t, "")

	sink := &recordSink{}
	if err := NewSearcher().SearchPath(m, path, sink); err != nil {
		t.Fatalf("SearchPath() error: %v", err)
	}
	if len(sink.events) != 0 {
		t.Errorf("got %d events, want 0", len(sink.events))
	}
	if !sink.done || sink.finish.ByteCount != 0 {
		t.Errorf("finish = %+v, want delivered with byte count 0", sink.finish)
	}
}

func TestSearchPath_Missing(t *testing.T) {
	m := buildMatcher(t, "a")
	path := filepath.Join(t.TempDir(), "does-not-exist")

	sink := &recordSink{}
	err := NewSearcher().SearchPath(m, path, sink)
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if sink.done {
		t.Error("Finished was delivered despite the open error")
	}
}

// A stream longer than the heap limit is fine as long as no single line
// exceeds it.
func TestSearchReader_LongStreamShortLines(t *testing.T) {
	m := buildMatcher(t, "match")
	var sb strings.Builder
	for i := 0; i < 1000; i++ {
		if i%100 == 7 {
			sb.WriteString("a match here\n")
		} else {
			sb.WriteString("filler line\n")
		}
	}

	limit := 64
	s := NewSearcherBuilder().HeapLimit(&limit).Build()
	sink := &CountSink{}
	if err := s.SearchReader(m, strings.NewReader(sb.String()), sink); err != nil {
		t.Fatalf("SearchReader() error: %v", err)
	}
	if got := sink.Count(); got != 10 {
		t.Errorf("Count() = %d, want 10", got)
	}
	if got := sink.Finish().ByteCount; got != int64(sb.Len()) {
		t.Errorf("ByteCount = %d, want %d", got, sb.Len())
	}
}

func TestSearchPath_BinaryQuit(t *testing.T) {
	m := buildMatcher(t, "text")
	path := writeFile(t, "text\nmore\x00binary\n")

	s := NewSearcherBuilder().BinaryDetection(BinaryQuit).Build()
	sink := &recordSink{}
	if err := s.SearchPath(m, path, sink); err != nil {
		t.Fatalf("SearchPath() error: %v", err)
	}
	want := []event{{"Match", "text", 1, 0}}
	if !reflect.DeepEqual(sink.events, want) {
		t.Errorf("events = %+v, want %+v", sink.events, want)
	}
	if sink.finish.BinaryByteOffset == nil || *sink.finish.BinaryByteOffset != 9 {
		t.Errorf("binary offset = %v, want 9", fmtOff(sink.finish.BinaryByteOffset))
	}
}
