package matcher

import "go.elara.ws/pcre"

// pcreOptions carries the flags translated into PCRE2 compile options.
type pcreOptions struct {
	caseInsensitive   bool
	multiLine         bool
	dotMatchesNewLine bool
	swapGreed         bool
	ignoreWhitespace  bool
	unicode           bool
}

// pcreEngine matches using the pure Go PCRE2 port. Selected when the flags
// need features RE2 lacks: extended whitespace mode, octal escapes, or
// ASCII-only classes (unicode disabled).
type pcreEngine struct {
	re *pcre.Regexp
}

func newPCREEngine(expr string, o pcreOptions) (*pcreEngine, error) {
	var opts pcre.CompileOption
	if o.caseInsensitive {
		opts |= pcre.Caseless
	}

	// The remaining flags go through PCRE2's in-pattern controls. (*UTF) and
	// (*UCP) must precede everything else in the pattern.
	var flags []byte
	if o.multiLine {
		flags = append(flags, 'm')
	}
	if o.dotMatchesNewLine {
		flags = append(flags, 's')
	}
	if o.swapGreed {
		flags = append(flags, 'U')
	}
	if o.ignoreWhitespace {
		flags = append(flags, 'x')
	}
	if len(flags) > 0 {
		expr = "(?" + string(flags) + ")" + expr
	}
	if o.unicode {
		expr = "(*UTF)(*UCP)" + expr
	}

	re, err := pcre.CompileOpts(expr, opts)
	if err != nil {
		return nil, err
	}
	return &pcreEngine{re: re}, nil
}

func (e *pcreEngine) isMatch(b []byte) bool {
	return e.re.Match(b)
}

func (e *pcreEngine) find(b []byte) (Range, bool) {
	loc := e.re.FindIndex(b)
	if loc == nil {
		return Range{}, false
	}
	return Range{Start: uint32(loc[0]), End: uint32(loc[1])}, true
}

func (e *pcreEngine) close() {
	if e.re != nil {
		e.re.Close()
	}
}
