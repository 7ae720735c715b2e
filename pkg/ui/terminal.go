package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset   = "\033[0m"
	ansiRed     = "\033[31m"
	ansiGreen   = "\033[32m"
	ansiYellow  = "\033[33m"
	ansiCyan    = "\033[36m"
	ansiMagenta = "\033[35m"
	ansiDim     = "\033[2m"
)

// Printer writes status lines, coloured only when the writer is a terminal
type Printer struct {
	out   io.Writer
	color bool
	quiet bool
}

// NewPrinter wraps out. quiet suppresses everything except errors.
func NewPrinter(out io.Writer, quiet bool) *Printer {
	return &Printer{out: out, color: IsTerminal(out), quiet: quiet}
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// DisableColor forces plain output
func (p *Printer) DisableColor() {
	p.color = false
}

// Colored reports whether output carries ANSI colours
func (p *Printer) Colored() bool {
	return p.color
}

func (p *Printer) paint(code, s string) string {
	if !p.color {
		return s
	}
	return code + s + ansiReset
}

// Info prints a label and value
func (p *Printer) Info(label, value string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "%s: %s\n", p.paint(ansiCyan, label), p.paint(ansiYellow, value))
}

// Success prints msg in green
func (p *Printer) Success(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, p.paint(ansiGreen, msg))
}

// Warning prints msg in yellow
func (p *Printer) Warning(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, p.paint(ansiYellow, msg))
}

// Error prints msg and err in red, even when quiet
func (p *Printer) Error(msg string, err error) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	fmt.Fprintln(p.out, p.paint(ansiRed, msg))
}

// Highlight prints a section heading
func (p *Printer) Highlight(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, p.paint(ansiMagenta, msg))
}

// Dim prints secondary detail
func (p *Printer) Dim(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, p.paint(ansiDim, msg))
}

// Raw writes s unchanged
func (p *Printer) Raw(s string) {
	if p.quiet {
		return
	}
	fmt.Fprint(p.out, s)
}
