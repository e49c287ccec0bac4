// Package log prints user-facing command output. Diagnostics go through
// zerolog instead.
package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/toolparam/toolparam/types"
)

type Logger struct {
	OutputStyle types.OutputStyle
	Spinner     *spinner.Spinner

	Out io.Writer
	Err io.Writer
}

func NewLogger(style types.OutputStyle) *Logger {
	return &Logger{
		OutputStyle: style,
		Spinner: spinner.New(
			spinner.CharSets[11], // Default ⣾ style spinner, can modify this at the call site
			100*time.Millisecond,
			spinner.WithHiddenCursor(true),
			spinner.WithWriter(os.Stderr)),
		Out: os.Stdout,
		Err: os.Stderr,
	}
}

func (l *Logger) human() bool {
	return l.OutputStyle == types.StyleHuman || l.OutputStyle == types.StyleHumanVerbose
}

func (l *Logger) Info(msg string, args ...any) {
	if l.human() {
		fmt.Fprintf(l.Out, msg+"\n", args...)
	}
	// Silent for machine modes
}

func (l *Logger) Verbose(msg string, args ...any) {
	if l.OutputStyle == types.StyleHumanVerbose {
		fmt.Fprintf(l.Out, msg+"\n", args...)
	}
}

func (l *Logger) Error(msg string, args ...any) {
	if l.human() {
		fmt.Fprintf(l.Err, "Error: "+msg+"\n", args...)
	}
}

func (l *Logger) Json(data any) {
	if l.OutputStyle == types.StyleMachineJSON {
		encoded, _ := json.MarshalIndent(data, "", "  ")
		fmt.Fprintln(l.Out, string(encoded))
	}
}

// StartSpinner starts the logger spinner. you can pass optionalCharset
// to override the default spinner. It is a variadic parameter but only
// the first argument will be used.
func (l *Logger) StartSpinner(text string, optionalCharset ...[]string) {
	if l.human() {
		l.Spinner.Suffix = " " + text
		if len(optionalCharset) > 0 {
			l.Spinner.UpdateCharSet(optionalCharset[0])
		}
		l.Spinner.Start()
	}
}

func (l *Logger) StopSpinner() {
	if l.human() {
		l.Spinner.Stop()
	}
}
