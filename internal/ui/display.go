package ui

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
)

var (
	successMark = color.New(color.FgGreen).SprintFunc()
	errorMark   = color.New(color.FgRed).SprintFunc()
	warnMark    = color.New(color.FgYellow).SprintFunc()
	infoMark    = color.New(color.FgCyan).SprintFunc()
	bold        = color.New(color.Bold).SprintFunc()
)

// Success prints a success line.
func Success(format string, args ...interface{}) {
	fmt.Fprintf(stdout, "%s %s\n", successMark("✓"), fmt.Sprintf(format, args...))
}

// Error prints an error line to stderr.
func Error(format string, args ...interface{}) {
	fmt.Fprintf(stderr, "%s %s\n", errorMark("✗"), fmt.Sprintf(format, args...))
}

// Warning prints a warning line.
func Warning(format string, args ...interface{}) {
	fmt.Fprintf(stdout, "%s %s\n", warnMark("⚠"), fmt.Sprintf(format, args...))
}

// Info prints an informational line.
func Info(format string, args ...interface{}) {
	fmt.Fprintf(stdout, "%s %s\n", infoMark("ℹ"), fmt.Sprintf(format, args...))
}

// Step prints a progress step. Steps only show with --verbose.
func Step(format string, args ...interface{}) {
	if !verbose {
		return
	}
	fmt.Fprintf(stdout, "→ %s\n", fmt.Sprintf(format, args...))
}

// Section prints an underlined header.
func Section(title string) {
	fmt.Fprintf(stdout, "\n%s\n%s\n\n", bold(title), strings.Repeat("=", len(title)))
}

// KeyValue prints an indented key/value pair.
func KeyValue(key, value string) {
	fmt.Fprintf(stdout, "  %s: %s\n", key, value)
}

// Newline prints an empty line.
func Newline() {
	fmt.Fprintln(stdout)
}

// Table prints rows under headers in aligned columns.
func Table(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(headers, "\t"))
	separator := make([]string, len(headers))
	for i, h := range headers {
		separator[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(w, strings.Join(separator, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	_ = w.Flush()
}

// FormatDuration formats d as "1h 2m 3s", dropping leading zero units.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
