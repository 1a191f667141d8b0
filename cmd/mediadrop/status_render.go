package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = map[statusKind]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

const ansiReset = "\x1b[0m"

// statusWriter prints aligned "label: [KIND] detail" lines grouped under
// section headers. Color is used only when the destination is a terminal.
type statusWriter struct {
	out        io.Writer
	color      bool
	labelWidth int
	sections   int
}

func newStatusWriter(out io.Writer) *statusWriter {
	color := false
	if f, ok := out.(*os.File); ok && os.Getenv("NO_COLOR") == "" {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &statusWriter{out: out, color: color, labelWidth: 20}
}

func (w *statusWriter) paint(color, text string) string {
	if !w.color || color == "" {
		return text
	}
	return color + text + ansiReset
}

// Section starts a titled block, separated from the previous one by a blank line.
func (w *statusWriter) Section(title string) {
	if w.sections > 0 {
		fmt.Fprintln(w.out)
	}
	w.sections++
	header := "== " + strings.TrimSpace(title) + " =="
	blue := statusStyles[statusInfo].color
	fmt.Fprintln(w.out, w.paint(blue, header))
	fmt.Fprintln(w.out, w.paint(blue, strings.Repeat("-", len(header))))
}

func (w *statusWriter) Line(label string, kind statusKind, detail string) {
	style := statusStyles[kind]
	badge := "[" + style.label + "]"
	if detail != "" {
		badge += " " + detail
	}
	line := fmt.Sprintf("  %-*s %s", w.labelWidth, label+":", badge)
	fmt.Fprintln(w.out, w.paint(style.color, line))
}

// Text writes an unadorned line inside the current section.
func (w *statusWriter) Text(text string) {
	fmt.Fprintln(w.out, text)
}

// checkKind maps a preflight outcome to a status kind. Optional checks that
// fail are warnings rather than errors.
func checkKind(passed, optional bool) statusKind {
	switch {
	case passed:
		return statusOK
	case optional:
		return statusWarn
	default:
		return statusError
	}
}
