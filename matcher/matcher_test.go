package matcher

import (
	"errors"
	"testing"
)

func mustBuild(t *testing.T, b *Builder, pattern string) *Matcher {
	t.Helper()
	m, err := b.Build(pattern)
	if err != nil {
		t.Fatalf("Build(%q) error: %v", pattern, err)
	}
	return m
}

func TestMatcher_IsMatch(t *testing.T) {
	tests := []struct {
		name    string
		build   func() *Builder
		pattern string
		input   string
		want    bool
	}{
		{
			name:    "simple match",
			build:   NewBuilder,
			pattern: "hello",
			input:   "say hello world",
			want:    true,
		},
		{
			name:    "no match",
			build:   NewBuilder,
			pattern: "xyz",
			input:   "hello world",
			want:    false,
		},
		{
			name:    "case sensitive by default",
			build:   NewBuilder,
			pattern: "ABC",
			input:   "abc",
			want:    false,
		},
		{
			name:    "case insensitive",
			build:   func() *Builder { return NewBuilder().CaseInsensitive(true) },
			pattern: "ABC",
			input:   "abc",
			want:    true,
		},
		{
			name:    "smart case lowercase pattern",
			build:   func() *Builder { return NewBuilder().CaseSmart(true) },
			pattern: "abc",
			input:   "ABC",
			want:    true,
		},
		{
			name:    "smart case uppercase pattern stays sensitive",
			build:   func() *Builder { return NewBuilder().CaseSmart(true) },
			pattern: "Abc",
			input:   "abc",
			want:    false,
		},
		{
			name:    "smart case skips escapes",
			build:   func() *Builder { return NewBuilder().CaseSmart(true) },
			pattern: `\Sbc`,
			input:   "XBC",
			want:    true,
		},
		{
			name:    "whole line match",
			build:   func() *Builder { return NewBuilder().WholeLine(true) },
			pattern: "foo",
			input:   "foo",
			want:    true,
		},
		{
			name:    "whole line rejects partial",
			build:   func() *Builder { return NewBuilder().WholeLine(true) },
			pattern: "foo",
			input:   "foo bar",
			want:    false,
		},
		{
			name:    "word boundary match",
			build:   func() *Builder { return NewBuilder().Word(true) },
			pattern: "foo",
			input:   "a foo b",
			want:    true,
		},
		{
			name:    "word boundary rejects embedded",
			build:   func() *Builder { return NewBuilder().Word(true) },
			pattern: "foo",
			input:   "foobar",
			want:    false,
		},
		{
			name:    "fixed strings treat metacharacters literally",
			build:   func() *Builder { return NewBuilder().FixedStrings(true) },
			pattern: "a.b",
			input:   "axb",
			want:    false,
		},
		{
			name:    "fixed strings literal hit",
			build:   func() *Builder { return NewBuilder().FixedStrings(true) },
			pattern: "a.b",
			input:   "a.b",
			want:    true,
		},
		{
			name:    "dot matches newline",
			build:   func() *Builder { return NewBuilder().DotMatchesNewLine(true) },
			pattern: "a.b",
			input:   "a\nb",
			want:    true,
		},
		{
			name:    "multi line anchors",
			build:   func() *Builder { return NewBuilder().MultiLine(true) },
			pattern: "^b$",
			input:   "a\nb\nc",
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mustBuild(t, tt.build(), tt.pattern)
			defer m.Close()
			if got := m.IsMatch([]byte(tt.input)); got != tt.want {
				t.Errorf("IsMatch(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestMatcher_Find(t *testing.T) {
	m := mustBuild(t, NewBuilder(), `\d+`)
	defer m.Close()

	r, ok := m.Find([]byte("abc123def"))
	if !ok {
		t.Fatal("Find() found nothing")
	}
	if r.Start != 3 || r.End != 6 {
		t.Errorf("Find() = [%d,%d), want [3,6)", r.Start, r.End)
	}

	if _, ok := m.Find([]byte("abcdef")); ok {
		t.Error("Find() found a match in input without digits")
	}
}

func TestMatcher_FindAll(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		input   string
		want    []Range
	}{
		{
			name:    "multiple matches",
			pattern: "ab",
			input:   "xabcabd",
			want:    []Range{{1, 3}, {4, 6}},
		},
		{
			name:    "no matches",
			pattern: "zz",
			input:   "xabcabd",
			want:    nil,
		},
		{
			name:    "adjacent matches",
			pattern: "aa",
			input:   "aaaa",
			want:    []Range{{0, 2}, {2, 4}},
		},
		{
			name:    "zero width advances",
			pattern: "x*",
			input:   "abc",
			want:    []Range{{0, 0}, {1, 1}, {2, 2}},
		},
		{
			name:    "zero width line anchor",
			pattern: "(?m)$",
			input:   "a\nb",
			want:    []Range{{1, 1}, {3, 3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mustBuild(t, NewBuilder(), tt.pattern)
			defer m.Close()
			got := m.FindAll([]byte(tt.input))
			if len(got) != len(tt.want) {
				t.Fatalf("FindAll() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("FindAll()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// FindAll ranges must be ascending, non-overlapping and in bounds, and agree
// with IsMatch on non-empty inputs.
func TestMatcher_FindAllProperties(t *testing.T) {
	patterns := []string{"a", "a+", "x*", `\b`, "ab|b", "(?m)^"}
	inputs := []string{"a", "ab", "aabab", "xyz", "a\nb\nab"}

	for _, pat := range patterns {
		m := mustBuild(t, NewBuilder(), pat)
		for _, in := range inputs {
			b := []byte(in)
			ranges := m.FindAll(b)
			if got, want := len(ranges) > 0, m.IsMatch(b); got != want {
				t.Errorf("pattern %q input %q: FindAll nonempty = %v, IsMatch = %v", pat, in, got, want)
			}
			prev := Range{}
			for i, r := range ranges {
				if r.Start > r.End || int(r.End) > len(b) {
					t.Errorf("pattern %q input %q: range %v out of bounds", pat, in, r)
				}
				if i > 0 && r.Start < prev.End {
					t.Errorf("pattern %q input %q: range %v overlaps %v", pat, in, r, prev)
				}
				if i > 0 && r == prev {
					t.Errorf("pattern %q input %q: duplicate range %v", pat, in, r)
				}
				prev = r
			}
		}
		m.Close()
	}
}

func TestBuilder_BuildMany(t *testing.T) {
	m, err := NewBuilder().BuildMany([]string{"foo", `\d+`})
	if err != nil {
		t.Fatalf("BuildMany() error: %v", err)
	}
	defer m.Close()

	for in, want := range map[string]bool{
		"a foo b": true,
		"a 12 b":  true,
		"a bar b": false,
	} {
		if got := m.IsMatch([]byte(in)); got != want {
			t.Errorf("IsMatch(%q) = %v, want %v", in, got, want)
		}
	}
}

// Each pattern of an alternation is anchored independently under WholeLine.
func TestBuilder_BuildManyWholeLine(t *testing.T) {
	m, err := NewBuilder().WholeLine(true).BuildMany([]string{"foo", "bar"})
	if err != nil {
		t.Fatalf("BuildMany() error: %v", err)
	}
	defer m.Close()

	if !m.IsMatch([]byte("bar")) {
		t.Error("whole-line alternation should match exact line")
	}
	if m.IsMatch([]byte("bar baz")) {
		t.Error("whole-line alternation matched a partial line")
	}
}

func TestBuilder_BuildLiterals(t *testing.T) {
	m, err := NewBuilder().BuildLiterals([]string{"a.b", "c+d"})
	if err != nil {
		t.Fatalf("BuildLiterals() error: %v", err)
	}
	defer m.Close()

	if m.IsMatch([]byte("axb")) {
		t.Error("literal matcher treated . as a metacharacter")
	}
	got := m.FindAll([]byte("a.b and c+d"))
	want := []Range{{0, 3}, {8, 11}}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("FindAll() = %v, want %v", got, want)
	}
}

func TestBuilder_BuildLiteralsCaseInsensitive(t *testing.T) {
	m, err := NewBuilder().CaseInsensitive(true).BuildLiterals([]string{"FOO"})
	if err != nil {
		t.Fatalf("BuildLiterals() error: %v", err)
	}
	defer m.Close()
	if !m.IsMatch([]byte("some foo here")) {
		t.Error("case-insensitive literal did not match lowercase input")
	}
}

func TestBuilder_CompileErrors(t *testing.T) {
	nl := byte('\n')
	z := byte('z')

	tests := []struct {
		name  string
		build func() (*Matcher, error)
	}{
		{
			name: "invalid syntax",
			build: func() (*Matcher, error) {
				return NewBuilder().Build("a(")
			},
		},
		{
			name: "banned byte in pattern",
			build: func() (*Matcher, error) {
				return NewBuilder().BanByte(&z).Build("xyz")
			},
		},
		{
			name: "line terminator in pattern",
			build: func() (*Matcher, error) {
				return NewBuilder().LineTerminator(&nl).Build("a\nb")
			},
		},
		{
			name: "nest limit exceeded",
			build: func() (*Matcher, error) {
				return NewBuilder().NestLimit(2).Build("((((a))))")
			},
		},
		{
			name: "size limit exceeded",
			build: func() (*Matcher, error) {
				return NewBuilder().SizeLimit(16).Build("a{100}b{100}")
			},
		},
		{
			name: "no patterns",
			build: func() (*Matcher, error) {
				return NewBuilder().BuildMany(nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := tt.build()
			if err == nil {
				t.Fatal("expected a compile error")
			}
			if m != nil {
				t.Error("got a matcher alongside an error")
			}
			var ce *CompileError
			if !errors.As(err, &ce) {
				t.Errorf("error %v is not a CompileError", err)
			}
		})
	}
}

func TestBuilder_BanByteAbsentBuilds(t *testing.T) {
	z := byte('z')
	m, err := NewBuilder().BanByte(&z).Build("abc")
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	m.Close()
}
