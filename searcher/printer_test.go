package searcher

import (
	"bytes"
	"testing"
)

func TestPrinterSink(t *testing.T) {
	m := buildMatcher(t, "b")
	s := NewSearcherBuilder().BeforeContext(1).Build()

	var out bytes.Buffer
	sink := NewPrinterSink(&out, m, NoStyles(), false)
	if err := s.SearchSlice(m, []byte("a\nb\nc\n"), sink); err != nil {
		t.Fatalf("SearchSlice() error: %v", err)
	}

	want := "1-a\n2:b\n"
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestPrinterSink_NoLineNumbers(t *testing.T) {
	m := buildMatcher(t, "b")
	s := NewSearcherBuilder().LineNumber(false).Build()

	var out bytes.Buffer
	sink := NewPrinterSink(&out, m, NoStyles(), false)
	if err := s.SearchSlice(m, []byte("a\nb\n"), sink); err != nil {
		t.Fatalf("SearchSlice() error: %v", err)
	}

	if got := out.String(); got != "b\n" {
		t.Errorf("output = %q, want %q", got, "b\n")
	}
}
