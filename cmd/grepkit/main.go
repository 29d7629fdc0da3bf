// Command grepkit searches a single file or stdin for a pattern using the
// grepkit matcher and searcher. It deliberately stops short of a full search
// tool: no directory walking, no ignore files.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dl/grepkit/matcher"
	"github.com/dl/grepkit/searcher"
)

type options struct {
	ignoreCase bool
	smartCase  bool
	fixed      bool
	word       bool
	wholeLine  bool
	invert     bool
	before     int
	after      int
	context    int
	maxCount   uint64
	countOnly  bool
	quiet      bool
	noLineNum  bool
	crlf       bool
	multiLine  bool
	passthru   bool
	binary     string
	color      string
}

func main() {
	os.Exit(run())
}

func run() int {
	var opts options
	exit := 1

	cmd := &cobra.Command{
		Use:           "grepkit PATTERN [FILE]",
		Short:         "search a file or stdin for a pattern",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			var err error
			exit, err = search(args, opts)
			return err
		},
	}

	fl := cmd.Flags()
	fl.BoolVarP(&opts.ignoreCase, "ignore-case", "i", false, "case insensitive matching")
	fl.BoolVarP(&opts.smartCase, "smart-case", "S", false, "case insensitive unless the pattern has uppercase")
	fl.BoolVarP(&opts.fixed, "fixed-strings", "F", false, "treat the pattern as a literal string")
	fl.BoolVarP(&opts.word, "word-regexp", "w", false, "match on word boundaries only")
	fl.BoolVarP(&opts.wholeLine, "line-regexp", "x", false, "match whole lines only")
	fl.BoolVarP(&opts.invert, "invert-match", "v", false, "report non-matching lines")
	fl.IntVarP(&opts.before, "before-context", "B", 0, "lines of context before each match")
	fl.IntVarP(&opts.after, "after-context", "A", 0, "lines of context after each match")
	fl.IntVarP(&opts.context, "context", "C", 0, "lines of context around each match")
	fl.Uint64VarP(&opts.maxCount, "max-count", "m", 0, "stop after this many matching lines")
	fl.BoolVarP(&opts.countOnly, "count", "c", false, "print only the match count")
	fl.BoolVarP(&opts.quiet, "quiet", "q", false, "no output, exit status only")
	fl.BoolVarP(&opts.noLineNum, "no-line-number", "N", false, "suppress line numbers")
	fl.BoolVar(&opts.crlf, "crlf", false, "treat \\r\\n as a line terminator")
	fl.BoolVarP(&opts.multiLine, "multiline", "U", false, "allow matches to span lines")
	fl.BoolVar(&opts.passthru, "passthru", false, "print every line, matching or not")
	fl.StringVar(&opts.binary, "binary", "quit", "binary detection: none, quit, convert")
	fl.StringVar(&opts.color, "color", "auto", "when to use color: auto, always, never")

	if err := cmd.Execute(); err != nil {
		return 2
	}
	return exit
}

func search(args []string, opts options) (int, error) {
	logger := log.NewWithOptions(os.Stderr, log.Options{Level: log.WarnLevel})

	mb := matcher.NewBuilder().
		CaseInsensitive(opts.ignoreCase).
		CaseSmart(opts.smartCase).
		FixedStrings(opts.fixed).
		Word(opts.word).
		WholeLine(opts.wholeLine).
		CRLF(opts.crlf)
	if opts.multiLine {
		mb.MultiLine(true).DotMatchesNewLine(true)
	}
	m, err := mb.Build(args[0])
	if err != nil {
		logger.Error("invalid pattern", "err", err)
		return 2, err
	}
	defer m.Close()

	binary, err := binaryMode(opts.binary)
	if err != nil {
		logger.Error("invalid flag", "err", err)
		return 2, err
	}
	before, after := opts.before, opts.after
	if opts.context > 0 {
		before, after = opts.context, opts.context
	}
	sb := searcher.NewSearcherBuilder().
		InvertMatch(opts.invert).
		LineNumber(!opts.noLineNum).
		MultiLine(opts.multiLine).
		BeforeContext(before).
		AfterContext(after).
		Passthru(opts.passthru).
		BinaryDetection(binary)
	if opts.maxCount > 0 {
		limit := opts.maxCount
		sb.MaxMatches(&limit)
	}
	s := sb.Build()

	var sink searcher.Sink
	var count *searcher.CountSink
	switch {
	case opts.quiet:
		count = &searcher.CountSink{Max: 1}
		sink = count
	case opts.countOnly:
		count = &searcher.CountSink{}
		sink = count
	default:
		useColor := false
		switch opts.color {
		case "always":
			useColor = true
		case "never":
			useColor = false
		default:
			useColor = searcher.StdoutIsTerminal()
		}
		styles := searcher.NoStyles()
		if useColor {
			styles = searcher.NewStyles()
		}
		collect := searcher.NewPrinterSink(os.Stdout, m, styles, useColor)
		counting := &countingPrinter{printer: collect}
		count = &counting.count
		sink = counting
	}

	if len(args) == 2 {
		err = s.SearchPath(m, args[1], sink)
	} else {
		err = s.SearchReader(m, os.Stdin, sink)
	}
	if err != nil {
		logger.Error("search failed", "err", err)
		return 2, err
	}

	if opts.countOnly {
		fmt.Println(count.Count())
	}
	if count.Count() > 0 {
		return 0, nil
	}
	return 1, nil
}

func binaryMode(name string) (searcher.BinaryDetection, error) {
	switch name {
	case "none":
		return searcher.BinaryNone, nil
	case "quit":
		return searcher.BinaryQuit, nil
	case "convert":
		return searcher.BinaryConvert, nil
	}
	return searcher.BinaryNone, fmt.Errorf("unknown binary detection mode %q", name)
}

// countingPrinter prints matches while also tracking whether any were found,
// for the exit status.
type countingPrinter struct {
	printer *searcher.PrinterSink
	count   searcher.CountSink
}

func (c *countingPrinter) Matched(mat *searcher.SinkMatch) (bool, error) {
	if _, err := c.count.Matched(mat); err != nil {
		return false, err
	}
	return c.printer.Matched(mat)
}

func (c *countingPrinter) Context(ctx *searcher.SinkContext) (bool, error) {
	return c.printer.Context(ctx)
}

func (c *countingPrinter) Finished(fin *searcher.SinkFinish) error {
	if err := c.count.Finished(fin); err != nil {
		return err
	}
	return c.printer.Finished(fin)
}
