package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// Banner printed at start-up
const Banner = `
  ┌───────────────────────────────────────┐
  │  recipecards · recipe card downloader │
  └───────────────────────────────────────┘
`

const (
	ansiCyan    = "\033[36m"
	ansiYellow  = "\033[33m"
	ansiRed     = "\033[31m"
	ansiGreen   = "\033[32m"
	ansiMagenta = "\033[35m"
	ansiDim     = "\033[2m"
	ansiReset   = "\033[0m"
)

var (
	mu       sync.RWMutex
	out      io.Writer = os.Stdout
	colorOn            = isTerminal(os.Stdout)
)

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// SetOutput redirects console output. Colours are switched off unless the
// writer is a terminal.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	f, ok := w.(*os.File)
	colorOn = ok && isTerminal(f)
}

// DisableColor turns colour codes off regardless of the output.
func DisableColor() {
	mu.Lock()
	colorOn = false
	mu.Unlock()
}

func writer() (io.Writer, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return out, colorOn
}

func paint(code, text string) string {
	_, color := writer()
	if !color {
		return text
	}
	return code + text + ansiReset
}

// Color functions for terminal output
func Cyan(text string) string    { return paint(ansiCyan, text) }
func Yellow(text string) string  { return paint(ansiYellow, text) }
func Red(text string) string     { return paint(ansiRed, text) }
func Green(text string) string   { return paint(ansiGreen, text) }
func Magenta(text string) string { return paint(ansiMagenta, text) }
func Dim(text string) string     { return paint(ansiDim, text) }

// PrintBanner prints the start-up banner
func PrintBanner() {
	w, _ := writer()
	fmt.Fprint(w, Cyan(Banner))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	w, _ := writer()
	if len(args) > 0 {
		fmt.Fprintln(w, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(w, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	w, _ := writer()
	fmt.Fprintln(w, Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	w, _ := writer()
	fmt.Fprintf(w, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	w, _ := writer()
	if len(args) > 0 {
		fmt.Fprintln(w, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(w, Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	w, _ := writer()
	fmt.Fprintln(w, Magenta(msg))
}
