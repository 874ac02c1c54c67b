// Package cli prints the server's startup banner, following the donor
// REPL's color-coded console output (internal/repl/repl.go's
// promptColor/outputColor/infoColor split) scaled down to one function
// instead of a full interactive session.
package cli

import (
	"io"

	"github.com/fatih/color"
)

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	labelColor = color.New(color.FgYellow)
	valueColor = color.New(color.FgGreen)
)

// PrintBanner writes a colored startup summary to w — listen address, vector
// backend, relstore path — so an operator watching the process log can
// confirm how it was configured at a glance.
func PrintBanner(w io.Writer, addr, vectorBackend, relstorePath string) {
	_, _ = titleColor.Fprintln(w, "docindex server")
	printField(w, "listening", addr)
	printField(w, "vector backend", vectorBackend)
	printField(w, "relstore", relstorePath)
}

func printField(w io.Writer, label, value string) {
	_, _ = labelColor.Fprintf(w, "  %-15s", label+":")
	_, _ = valueColor.Fprintln(w, value)
}
