package searcher

import (
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sys/unix"

	"github.com/dl/grepkit/matcher"
)

// Styles holds the lipgloss styles used by PrinterSink.
type Styles struct {
	LineNum lipgloss.Style
	Match   lipgloss.Style
	Context lipgloss.Style
}

// NewStyles returns the default color styles: green line numbers, bold red
// match spans.
func NewStyles() Styles {
	return Styles{
		LineNum: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		Match:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		Context: lipgloss.NewStyle(),
	}
}

// NoStyles returns styles with no coloring.
func NoStyles() Styles {
	return Styles{
		LineNum: lipgloss.NewStyle(),
		Match:   lipgloss.NewStyle(),
		Context: lipgloss.NewStyle(),
	}
}

// PrinterSink renders events as grep-style output while the scan runs,
// retaining nothing. When given a Matcher it highlights the exact match
// spans within each line using the same span recovery as CollectSink.
type PrinterSink struct {
	w      io.Writer
	m      *matcher.Matcher
	styles Styles
	color  bool
}

// NewPrinterSink returns a sink writing to w. m may be nil to skip match
// highlighting.
func NewPrinterSink(w io.Writer, m *matcher.Matcher, styles Styles, color bool) *PrinterSink {
	return &PrinterSink{w: w, m: m, styles: styles, color: color}
}

func (p *PrinterSink) Matched(mat *SinkMatch) (bool, error) {
	var buf []byte
	buf = p.prefix(buf, mat.LineNumber, ':')
	if p.color && p.m != nil {
		buf = p.highlight(buf, mat.Bytes)
	} else {
		buf = append(buf, mat.Bytes...)
	}
	buf = append(buf, '\n')
	if _, err := p.w.Write(buf); err != nil {
		return false, err
	}
	return true, nil
}

func (p *PrinterSink) Context(ctx *SinkContext) (bool, error) {
	var buf []byte
	buf = p.prefix(buf, ctx.LineNumber, '-')
	buf = append(buf, p.styles.Context.Render(string(ctx.Bytes))...)
	buf = append(buf, '\n')
	if _, err := p.w.Write(buf); err != nil {
		return false, err
	}
	return true, nil
}

func (p *PrinterSink) Finished(*SinkFinish) error { return nil }

func (p *PrinterSink) prefix(buf []byte, lineNum *uint32, sep byte) []byte {
	if lineNum == nil {
		return buf
	}
	n := strconv.FormatUint(uint64(*lineNum), 10)
	buf = append(buf, p.styles.LineNum.Render(n)...)
	buf = append(buf, sep)
	return buf
}

// highlight styles each match span within the line.
func (p *PrinterSink) highlight(buf, line []byte) []byte {
	pos := 0
	for _, r := range p.m.FindAll(line) {
		buf = append(buf, line[pos:r.Start]...)
		buf = append(buf, p.styles.Match.Render(string(line[r.Start:r.End]))...)
		pos = int(r.End)
	}
	return append(buf, line[pos:]...)
}

// IsTerminal reports whether fd refers to a terminal.
func IsTerminal(fd uintptr) bool {
	_, err := unix.IoctlGetTermios(int(fd), unix.TCGETS)
	return err == nil
}

// StdoutIsTerminal reports whether stdout is a terminal.
func StdoutIsTerminal() bool {
	return IsTerminal(os.Stdout.Fd())
}
