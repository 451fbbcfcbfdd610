// Package msg provides the colorized diagnostic output shared by the
// planner and the CLI: error/warn/info/fatal lines and file-state tracing.
package msg

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Verbose enables Trace output. Set from the CLI's -v/--verbose flag.
var Verbose bool

func Error(format string, a ...any) {
	fmt.Fprint(os.Stderr, color.HiRedString("error"))
	fmt.Fprint(os.Stderr, ": ")
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprint(os.Stderr, "\n")
}

func Warn(format string, a ...any) {
	fmt.Fprint(os.Stderr, color.YellowString("warn"))
	fmt.Fprint(os.Stderr, ": ")
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprint(os.Stderr, "\n")
}

func Fatal(format string, a ...any) {
	fmt.Fprint(os.Stderr, color.RedString("fatal"))
	fmt.Fprint(os.Stderr, ": ")
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprint(os.Stderr, "\n")
	os.Exit(1)
}

func Info(format string, a ...any) {
	fmt.Print(color.HiGreenString("info"))
	fmt.Print(": ")
	fmt.Printf(format, a...)
	fmt.Print("\n")
}

// Trace prints a line only when Verbose is set, used for file-state
// machine transitions (spec §4.5) which are too noisy for default output.
func Trace(format string, a ...any) {
	if !Verbose {
		return
	}
	fmt.Print(color.CyanString("trace"))
	fmt.Print(": ")
	fmt.Printf(format, a...)
	fmt.Print("\n")
}

// Origin formats a "path|line| ERROR: " prefix as required by spec §7.
func Origin(path string, line int, format string, a ...any) string {
	return fmt.Sprintf("%s|%d| ERROR: %s", path, line, fmt.Sprintf(format, a...))
}

type IndentWriter struct {
	Indent    string
	W         io.Writer
	didIndent bool
}

func (w *IndentWriter) Write(p []byte) (n int, err error) {
	for _, c := range p {
		if !w.didIndent {
			w.W.Write([]byte(w.Indent))
			w.didIndent = true
		}
		w.W.Write([]byte{c})
		if c == '\n' || c == '\r' {
			w.didIndent = false
		}
	}
	return len(p), nil
}
