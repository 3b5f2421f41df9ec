package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// Printer writes CLI messages. Out receives regular output, Err receives
// error reports.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// Default writes to stdout and stderr.
var Default = &Printer{Out: os.Stdout, Err: os.Stderr}

// New returns a printer writing to out and errOut.
func New(out, errOut io.Writer) *Printer {
	return &Printer{Out: out, Err: errOut}
}

// Success prints a green message prefixed with a checkmark.
func (p *Printer) Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	green.Fprint(p.Out, msg)
}

// Info prints a plain message.
func (p *Printer) Info(format string, a ...any) {
	fmt.Fprintf(p.Out, format, a...)
}

// Warning prints a yellow message prefixed with a warning sign.
func (p *Printer) Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		msg = "⚠️  " + msg
	}
	yellow.Fprint(p.Out, msg)
}

// Step prints a cyan progress line.
func (p *Printer) Step(format string, a ...any) {
	cyan.Fprintf(p.Out, "→ %s", fmt.Sprintf(format, a...))
}

// Muted prints a dimmed message, used for dividers and secondary detail.
func (p *Printer) Muted(format string, a ...any) {
	faint.Fprintf(p.Out, format, a...)
}

// Error prints a titled error report with suggestions to Err and returns an
// error carrying only the title, so cobra does not print it twice.
func (p *Printer) Error(title, explanation string, suggestions []string) error {
	return p.ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with extra key/value details, printed in key order.
func (p *Printer) ErrorWithContext(title, explanation string, details map[string]string, suggestions []string) error {
	red.Fprintf(p.Err, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(p.Err, "%s\n", explanation)
	}

	if len(details) > 0 {
		keys := make([]string, 0, len(details))
		for k := range details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintln(p.Err)
		for _, k := range keys {
			fmt.Fprintf(p.Err, "  %s: %s\n", k, details[k])
		}
	}

	switch len(suggestions) {
	case 0:
	case 1:
		fmt.Fprintf(p.Err, "\n%s\n", suggestions[0])
	default:
		fmt.Fprintf(p.Err, "\nEither:\n")
		for i, s := range suggestions {
			fmt.Fprintf(p.Err, "  %d. %s\n", i+1, s)
		}
	}

	return fmt.Errorf("%s", title)
}

// Success prints through Default.
func Success(format string, a ...any) { Default.Success(format, a...) }

// Info prints through Default.
func Info(format string, a ...any) { Default.Info(format, a...) }

// Warning prints through Default.
func Warning(format string, a ...any) { Default.Warning(format, a...) }

// Step prints through Default.
func Step(format string, a ...any) { Default.Step(format, a...) }

// Error reports through Default.
func Error(title, explanation string, suggestions []string) error {
	return Default.Error(title, explanation, suggestions)
}

// ErrorWithContext reports through Default.
func ErrorWithContext(title, explanation string, details map[string]string, suggestions []string) error {
	return Default.ErrorWithContext(title, explanation, details, suggestions)
}
