// Package output displays raw probe responses.
package output

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ANSI color codes.
const (
	colorReset = "\033[0m"
	colorCyan  = "\033[36m"
	colorDim   = "\033[2m"
)

// RawWriter prints the decoded response (header lines in wire order,
// then the body) when --show-response is set.
type RawWriter struct {
	w       io.Writer
	noColor bool
}

// NewRawWriter creates a raw response writer. noColor disables ANSI
// escape codes.
func NewRawWriter(w io.Writer, noColor bool) *RawWriter {
	return &RawWriter{w: w, noColor: noColor}
}

func (r *RawWriter) ShowResponse(headers []string, body []byte) {
	cyan, dim, reset := colorCyan, colorDim, colorReset
	if r.noColor {
		cyan, dim, reset = "", "", ""
	}
	for _, h := range headers {
		fmt.Fprintf(r.w, "%s%s%s\n", cyan, h, reset)
	}
	fmt.Fprintf(r.w, "%s----%s\n", dim, reset)
	r.w.Write(body)
	if len(body) > 0 && body[len(body)-1] != '\n' {
		fmt.Fprintln(r.w)
	}
}

// IsTerminal reports whether w is an interactive terminal. Color is
// auto-disabled when it is not.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
