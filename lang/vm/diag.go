package vm

import (
	"fmt"
	"io"
)

// DiagWriter is a tag-and-format diagnostic sink, in the spirit of the
// original interpreter's log.c: every caller goes through the same
// formatter, and a tag (e.g. "gc") identifies which subsystem a line came
// from. An empty tag writes the line as-is, which is what runtimeError
// uses since its messages already carry their own "error: " prefix.
type DiagWriter struct {
	w   io.Writer
	tag string
}

// NewDiagWriter returns a DiagWriter that writes to w, prefixing each line
// with "[tag] " unless tag is empty.
func NewDiagWriter(w io.Writer, tag string) *DiagWriter {
	return &DiagWriter{w: w, tag: tag}
}

// Printf formats one line and writes it to the underlying writer, adding
// the trailing newline the caller's format string leaves out.
func (d *DiagWriter) Printf(format string, args ...any) {
	if d.tag != "" {
		format = "[" + d.tag + "] " + format
	}
	fmt.Fprintf(d.w, format+"\n", args...)
}
