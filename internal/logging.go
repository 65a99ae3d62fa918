package internal

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

// NewLogger builds the structured logger shared by every package. Terminals
// get human-readable text; anything else gets one JSON object per line.
func NewLogger(w io.Writer, level string, terminal bool) (*log.Logger, error) {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	formatter := log.JSONFormatter
	if terminal {
		formatter = log.TextFormatter
	}

	return log.NewWithOptions(w, log.Options{
		Level:           parsed,
		Prefix:          "disposable",
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Formatter:       formatter,
	}), nil
}
