package internal

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/docker/cli/cli/streams"
)

// Writer provides methods for output operations that library code needs.
// This allows callers to control where and how output is written, rather than
// forcing library code to use global state like fmt.Print or log.Fatal.
type Writer interface {
	// Print writes a message to the output stream.
	Print(v ...interface{})

	// Printf writes a formatted message to the output stream.
	Printf(format string, v ...interface{})

	// Println writes a message with a newline to the output stream.
	Println(v ...interface{})

	// Warning writes a warning message to the error stream.
	Warning(v ...interface{})

	// Warningf writes a formatted warning message to the error stream.
	Warningf(format string, v ...interface{})

	// Table writes rows under headers as a bordered table.
	Table(headers []string, rows [][]string)

	// GetWriter returns the underlying io.Writer for direct writing.
	GetWriter() io.Writer

	// GetErrWriter returns the underlying io.Writer used for diagnostics.
	GetErrWriter() io.Writer
}

// StandardWriter implements Writer using standard output/error streams.
type StandardWriter struct {
	out      io.Writer
	err      io.Writer
	terminal bool
}

// NewStandardWriter creates a Writer that outputs to stdout and stderr.
func NewStandardWriter() *StandardWriter {
	out := streams.NewOut(os.Stdout)
	errOut := streams.NewOut(os.Stderr)

	return &StandardWriter{
		out:      out,
		err:      errOut,
		terminal: errOut.IsTerminal(),
	}
}

// NewCustomWriter creates a Writer with custom output streams.
// The out stream is used for normal output, while err is used for warnings and logs.
func NewCustomWriter(out, err io.Writer) *StandardWriter {
	return &StandardWriter{
		out: out,
		err: err,
	}
}

// IsTerminal reports whether the error stream, where logs go, is a terminal.
func (w *StandardWriter) IsTerminal() bool {
	return w.terminal
}

// Print writes a message to the output stream without adding a newline.
func (w *StandardWriter) Print(v ...interface{}) {
	fmt.Fprint(w.out, v...)
}

// Printf writes a formatted message to the output stream.
func (w *StandardWriter) Printf(format string, v ...interface{}) {
	fmt.Fprintf(w.out, format, v...)
}

// Println writes a message with a newline to the output stream.
func (w *StandardWriter) Println(v ...interface{}) {
	fmt.Fprintln(w.out, v...)
}

// Warning writes a warning message to the error stream with a "Warning: " prefix.
func (w *StandardWriter) Warning(v ...interface{}) {
	fmt.Fprint(w.err, "Warning: ")
	fmt.Fprintln(w.err, v...)
}

// Warningf writes a formatted warning message to the error stream with a "Warning: " prefix.
func (w *StandardWriter) Warningf(format string, v ...interface{}) {
	fmt.Fprintf(w.err, "Warning: "+format+"\n", v...)
}

// Table writes rows under headers to the output stream.
func (w *StandardWriter) Table(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)

	fmt.Fprintln(w.out, t.Render())
}

// GetWriter returns the underlying io.Writer for direct writing to the output stream.
func (w *StandardWriter) GetWriter() io.Writer {
	return w.out
}

// GetErrWriter returns the underlying io.Writer for the error stream.
func (w *StandardWriter) GetErrWriter() io.Writer {
	return w.err
}
