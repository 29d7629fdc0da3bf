package matcher

import (
	"bytes"
	"fmt"
	"regexp"
	"regexp/syntax"
	"strings"
	"unicode"
	"unicode/utf8"
)

// CompileError is returned when a pattern cannot be compiled: invalid syntax,
// a flag conflict, or a size/nesting limit exceeded. No partially built
// Matcher is ever returned alongside one.
type CompileError struct {
	Msg string
}

func (e *CompileError) Error() string { return e.Msg }

func compileErrorf(format string, args ...any) *CompileError {
	return &CompileError{Msg: fmt.Sprintf(format, args...)}
}

const defaultNestLimit = 250

// bytesPerInst approximates the compiled size of one parsed regex node when
// checking SizeLimit. Go's regexp does not expose its program size, so the
// limit is enforced on the parse tree instead.
const bytesPerInst = 16

// Builder accumulates compile-time options and produces Matchers.
//
// Setters mutate the builder and return it for chaining. No validation
// happens until Build, except that BanByte and LineTerminator conflicts are
// by nature also only detectable at Build.
type Builder struct {
	caseInsensitive   bool
	caseSmart         bool
	multiLine         bool
	dotMatchesNewLine bool
	swapGreed         bool
	ignoreWhitespace  bool
	unicode           bool
	octal             bool
	sizeLimit         int
	dfaSizeLimit      int
	nestLimit         int
	lineTerm          *byte
	banByte           *byte
	crlf              bool
	word              bool
	fixedStrings      bool
	wholeLine         bool
}

// NewBuilder returns a builder with default configuration: case sensitive,
// Unicode enabled, no limits beyond a nesting depth of 250.
func NewBuilder() *Builder {
	return &Builder{unicode: true, nestLimit: defaultNestLimit}
}

// CaseInsensitive sets the case insensitive (i) flag.
func (b *Builder) CaseInsensitive(yes bool) *Builder { b.caseInsensitive = yes; return b }

// CaseSmart enables smart case: matching becomes case insensitive when the
// pattern contains at least one literal letter and none of its literal
// letters are uppercase.
func (b *Builder) CaseSmart(yes bool) *Builder { b.caseSmart = yes; return b }

// MultiLine sets the multi-line (m) flag: ^ and $ match at line boundaries.
func (b *Builder) MultiLine(yes bool) *Builder { b.multiLine = yes; return b }

// DotMatchesNewLine sets the any-character (s) flag.
func (b *Builder) DotMatchesNewLine(yes bool) *Builder { b.dotMatchesNewLine = yes; return b }

// SwapGreed sets the greedy-swap (U) flag: a* is lazy and a*? is greedy.
func (b *Builder) SwapGreed(yes bool) *Builder { b.swapGreed = yes; return b }

// IgnoreWhitespace sets the extended (x) flag: whitespace and comments in the
// pattern are ignored.
func (b *Builder) IgnoreWhitespace(yes bool) *Builder { b.ignoreWhitespace = yes; return b }

// Unicode sets the Unicode (u) flag. When disabled, classes like \w and \d
// match ASCII only.
func (b *Builder) Unicode(yes bool) *Builder { b.unicode = yes; return b }

// Octal enables octal escape syntax in patterns.
func (b *Builder) Octal(yes bool) *Builder { b.octal = yes; return b }

// SizeLimit caps the approximate size of the compiled pattern in bytes.
// Zero means no limit.
func (b *Builder) SizeLimit(bytes int) *Builder { b.sizeLimit = bytes; return b }

// DFASizeLimit is accepted for builder-surface parity but currently has no
// effect: the RE2 engine manages its own match-time cache and the PCRE port
// exposes no cache budget. SizeLimit is the enforced compile-size cap.
func (b *Builder) DFASizeLimit(bytes int) *Builder { b.dfaSizeLimit = bytes; return b }

// NestLimit caps the nesting depth of the parsed pattern.
func (b *Builder) NestLimit(limit int) *Builder { b.nestLimit = limit; return b }

// LineTerminator declares the searcher's line terminator byte. Building fails
// if the pattern contains this byte, since a match could then never be
// confined to one line.
func (b *Builder) LineTerminator(t *byte) *Builder { b.lineTerm = t; return b }

// BanByte forbids a byte from occurring anywhere in the pattern. Building
// fails if the byte is present.
func (b *Builder) BanByte(bb *byte) *Builder { b.banByte = bb; return b }

// CRLF enables CRLF-aware line handling: $ matches at the end of line content
// even when lines end with \r\n.
func (b *Builder) CRLF(yes bool) *Builder { b.crlf = yes; return b }

// Word requires matches to be delimited by word boundaries.
func (b *Builder) Word(yes bool) *Builder { b.word = yes; return b }

// FixedStrings treats patterns as literal text rather than regex syntax.
func (b *Builder) FixedStrings(yes bool) *Builder { b.fixedStrings = yes; return b }

// WholeLine anchors each pattern to an entire line, as if surrounded by
// (?m:^) and (?m:$).
func (b *Builder) WholeLine(yes bool) *Builder { b.wholeLine = yes; return b }

// Build compiles a single pattern.
func (b *Builder) Build(pattern string) (*Matcher, error) {
	return b.build([]string{pattern}, b.fixedStrings)
}

// BuildMany compiles several patterns combined as an alternation. Word and
// whole-line anchoring apply to each pattern independently.
func (b *Builder) BuildMany(patterns []string) (*Matcher, error) {
	return b.build(patterns, b.fixedStrings)
}

// BuildLiterals compiles literal strings, bypassing regex syntax entirely
// where possible.
func (b *Builder) BuildLiterals(literals []string) (*Matcher, error) {
	return b.build(literals, true)
}

func (b *Builder) build(patterns []string, literal bool) (*Matcher, error) {
	if len(patterns) == 0 {
		return nil, compileErrorf("no patterns provided")
	}
	for _, p := range patterns {
		if b.banByte != nil && bytes.IndexByte([]byte(p), *b.banByte) >= 0 {
			return nil, compileErrorf("pattern contains banned byte 0x%02x", *b.banByte)
		}
		if b.lineTerm != nil && bytes.IndexByte([]byte(p), *b.lineTerm) >= 0 {
			return nil, compileErrorf("pattern contains line terminator byte 0x%02x", *b.lineTerm)
		}
	}

	ci := b.caseInsensitive
	if !ci && b.caseSmart {
		ci = smartCaseInsensitive(patterns)
	}

	// Case-sensitive literal patterns with no anchoring requirements skip the
	// regex engines entirely. Word/whole-line and case-insensitive literals
	// fall through as quoted regexes, where Unicode case folding cannot skew
	// the reported byte offsets.
	if literal && !ci && !b.word && !b.wholeLine && !b.needsPCRE() {
		return &Matcher{eng: newLiteralEngine(patterns), lineTerm: b.lineTerm, crlf: b.crlf}, nil
	}

	exprs := make([]string, len(patterns))
	for i, p := range patterns {
		if literal {
			p = regexp.QuoteMeta(p)
		}
		switch {
		case b.wholeLine:
			p = `(?m:^)(?:` + p + `)(?m:$)`
		case b.word:
			p = `\b(?:` + p + `)\b`
		default:
			p = `(?:` + p + `)`
		}
		exprs[i] = p
	}
	joined := strings.Join(exprs, "|")

	if b.needsPCRE() {
		if err := b.checkLimitsLenient(joined); err != nil {
			return nil, err
		}
		eng, err := newPCREEngine(joined, pcreOptions{
			caseInsensitive:   ci,
			multiLine:         b.multiLine,
			dotMatchesNewLine: b.dotMatchesNewLine,
			swapGreed:         b.swapGreed,
			ignoreWhitespace:  b.ignoreWhitespace,
			unicode:           b.unicode,
		})
		if err != nil {
			return nil, compileErrorf("compile pattern: %v", err)
		}
		return &Matcher{eng: eng, lineTerm: b.lineTerm, crlf: b.crlf}, nil
	}

	expr := inlineFlags(ci, b.multiLine, b.dotMatchesNewLine, b.swapGreed) + joined
	if err := b.checkLimits(expr); err != nil {
		return nil, err
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, compileErrorf("compile pattern: %v", err)
	}
	return &Matcher{eng: &regexEngine{re: re}, lineTerm: b.lineTerm, crlf: b.crlf}, nil
}

// needsPCRE reports whether the configured flags are outside what the RE2
// engine can express.
func (b *Builder) needsPCRE() bool {
	return b.ignoreWhitespace || b.octal || !b.unicode
}

func inlineFlags(ci, multiLine, dotNL, swapGreed bool) string {
	var flags []byte
	if ci {
		flags = append(flags, 'i')
	}
	if multiLine {
		flags = append(flags, 'm')
	}
	if dotNL {
		flags = append(flags, 's')
	}
	if swapGreed {
		flags = append(flags, 'U')
	}
	if len(flags) == 0 {
		return ""
	}
	return "(?" + string(flags) + ")"
}

// checkLimits parses expr and enforces NestLimit and SizeLimit before the
// expression is handed to regexp.Compile.
func (b *Builder) checkLimits(expr string) error {
	re, err := syntax.Parse(expr, syntax.Perl)
	if err != nil {
		return compileErrorf("parse pattern: %v", err)
	}
	if depth := nestDepth(re); b.nestLimit > 0 && depth > b.nestLimit {
		return compileErrorf("pattern nesting depth %d exceeds limit %d", depth, b.nestLimit)
	}
	if b.sizeLimit > 0 {
		if size := nodeCount(re) * bytesPerInst; size > b.sizeLimit {
			return compileErrorf("compiled pattern size ~%d bytes exceeds limit %d", size, b.sizeLimit)
		}
	}
	return nil
}

// checkLimitsLenient enforces NestLimit and SizeLimit for the PCRE engine.
// When the expression uses syntax regexp/syntax cannot parse (lookarounds,
// backreferences, octal escapes), the limits are checked against the pattern
// text instead: group nesting by scanning parentheses, size by pattern
// length. Syntax validity itself is left to the PCRE compiler.
func (b *Builder) checkLimitsLenient(expr string) error {
	if re, err := syntax.Parse(expr, syntax.Perl); err == nil {
		if depth := nestDepth(re); b.nestLimit > 0 && depth > b.nestLimit {
			return compileErrorf("pattern nesting depth %d exceeds limit %d", depth, b.nestLimit)
		}
		if b.sizeLimit > 0 {
			if size := nodeCount(re) * bytesPerInst; size > b.sizeLimit {
				return compileErrorf("compiled pattern size ~%d bytes exceeds limit %d", size, b.sizeLimit)
			}
		}
		return nil
	}
	if depth := parenDepth(expr); b.nestLimit > 0 && depth > b.nestLimit {
		return compileErrorf("pattern nesting depth %d exceeds limit %d", depth, b.nestLimit)
	}
	if b.sizeLimit > 0 {
		if size := len(expr) * bytesPerInst; size > b.sizeLimit {
			return compileErrorf("compiled pattern size ~%d bytes exceeds limit %d", size, b.sizeLimit)
		}
	}
	return nil
}

// parenDepth reports the maximum group nesting depth of a pattern, skipping
// escaped parentheses and character classes.
func parenDepth(expr string) int {
	depth, max := 0, 0
	inClass := false
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '\\':
			i++
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '(':
			if !inClass {
				depth++
				if depth > max {
					max = depth
				}
			}
		case ')':
			if !inClass && depth > 0 {
				depth--
			}
		}
	}
	return max
}

func nestDepth(re *syntax.Regexp) int {
	max := 0
	for _, sub := range re.Sub {
		if d := nestDepth(sub); d > max {
			max = d
		}
	}
	return max + 1
}

func nodeCount(re *syntax.Regexp) int {
	n := 1
	for _, sub := range re.Sub {
		n += nodeCount(sub)
	}
	// Counted repetitions expand during compilation.
	if re.Op == syntax.OpRepeat && re.Max > 1 {
		n *= re.Max
	}
	return n
}

// smartCaseInsensitive reports whether matching should be case insensitive
// under smart-case rules: the patterns contain at least one literal letter
// and none of the literal letters are uppercase. Escape sequences are skipped
// so that \S or \W do not read as uppercase literals.
func smartCaseInsensitive(patterns []string) bool {
	sawLetter := false
	for _, p := range patterns {
		for i := 0; i < len(p); {
			r, size := utf8.DecodeRuneInString(p[i:])
			if r == '\\' {
				// Skip the escaped character.
				_, esc := utf8.DecodeRuneInString(p[i+size:])
				i += size + esc
				continue
			}
			if unicode.IsUpper(r) {
				return false
			}
			if unicode.IsLetter(r) {
				sawLetter = true
			}
			i += size
		}
	}
	return sawLetter
}
