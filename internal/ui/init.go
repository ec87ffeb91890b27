// Package ui provides plain terminal output for the magsplit CLI.
package ui

import (
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	stdout  io.Writer = os.Stdout
	stderr  io.Writer = os.Stderr
	verbose bool
)

// InitUI applies the color and verbosity flags.
func InitUI(noColor, verboseOutput bool) {
	verbose = verboseOutput
	if noColor {
		color.NoColor = true
	}
}

// SetOutput redirects normal and error output.
func SetOutput(out, errOut io.Writer) {
	stdout = out
	stderr = errOut
}

// Verbose reports whether verbose output was requested.
func Verbose() bool { return verbose }
