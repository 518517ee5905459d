package ui

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		if !colorEnabled {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

var (
	out          io.Writer = os.Stdout
	errOut       io.Writer = os.Stderr
	quiet        bool
	colorEnabled = isTerminal(os.Stdout)
)

func isTerminal(f *os.File) bool {
	return os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(f.Fd()))
}

// SetQuiet suppresses everything except errors and results
func SetQuiet(q bool) {
	quiet = q
}

// SetOutput redirects output; colors are turned off for non-terminals
func SetOutput(stdout, stderr io.Writer) {
	out, errOut = stdout, stderr
	f, ok := stdout.(*os.File)
	colorEnabled = ok && isTerminal(f)
}

// PrintError prints an error message in red to stderr
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(errOut, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(errOut, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	if quiet {
		return
	}
	fmt.Fprintln(out, Green(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	if quiet {
		return
	}
	fmt.Fprintf(out, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if quiet {
		return
	}
	if len(args) > 0 {
		fmt.Fprintln(out, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(out, Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	if quiet {
		return
	}
	fmt.Fprintln(out, Magenta(msg))
}

// PrintResult always prints, even in quiet mode. It is meant for the one
// line a script consumes, such as the path of the chosen image.
func PrintResult(msg string) {
	fmt.Fprintln(out, msg)
}
