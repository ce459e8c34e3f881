package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

var (
	bold    = color.New(color.Bold).SprintFunc()
	blue    = color.New(color.FgBlue).SprintFunc()
	green   = color.New(color.FgGreen).SprintFunc()
	yellow  = color.New(color.FgYellow).SprintFunc()
	red     = color.New(color.FgRed).SprintFunc()
	cyan    = color.New(color.FgCyan).SprintFunc()
	magenta = color.New(color.FgMagenta).SprintFunc()
	gray    = color.New(color.FgHiBlack).SprintFunc()
)

type Printer struct {
	out io.Writer
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

func (p *Printer) Println(a ...any) {
	fmt.Fprintln(p.out, a...)
}

func (p *Printer) Printf(format string, a ...any) {
	fmt.Fprintf(p.out, format, a...)
}

func (p *Printer) Title(s string) { p.Printf("\n%s\n\n", blue(s)) }

func (p *Printer) Success(s string) { p.Println(green("✔ " + s)) }

func (p *Printer) Warn(s string) { p.Println(yellow("⚠ " + s)) }

func (p *Printer) Error(err error) { p.Println(red("✖ " + err.Error())) }

// List prints a heading followed by bullet lines.
func (p *Printer) List(heading func(...any) string, title string, items ...string) {
	p.Println(heading(title))
	for _, it := range items {
		p.Printf("   • %s\n", it)
	}
	p.Println()
}

// Prompter reads answers line by line. It is only used on interactive terminals.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

func (p *Prompter) readLine() (string, bool) {
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimSpace(line), true
}

// Confirm asks a yes/no question. An empty answer picks def; ok is false on EOF.
func (p *Prompter) Confirm(question string, def bool) (bool, bool) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	for {
		fmt.Fprintf(p.out, "%s %s ", bold("? "+question), gray("("+hint+")"))
		line, ok := p.readLine()
		if !ok {
			return def, false
		}
		switch strings.ToLower(line) {
		case "":
			return def, true
		case "y", "yes":
			return true, true
		case "n", "no":
			return false, true
		}
	}
}

// Choose shows a numbered list and returns the picked entry. An empty
// answer picks the first entry.
func (p *Prompter) Choose(question string, options []string, label func(string) string) (string, bool) {
	if len(options) == 0 {
		return "", false
	}
	fmt.Fprintln(p.out, bold("? "+question))
	for i, o := range options {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, label(o))
	}
	for {
		fmt.Fprintf(p.out, "%s ", gray(fmt.Sprintf("[1-%d]", len(options))))
		line, ok := p.readLine()
		if !ok {
			return "", false
		}
		if line == "" {
			return options[0], true
		}
		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(options) {
			return options[n-1], true
		}
	}
}
