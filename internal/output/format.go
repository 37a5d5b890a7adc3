// Package output renders Grantline CLI results as text or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Format selects how command results are rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"

	// FormatAuto resolves to text on a terminal and JSON when piped.
	FormatAuto Format = "auto"
)

// ParseFormat parses a format name, falling back to auto for anything
// unrecognized.
func ParseFormat(s string) Format {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON
	case FormatText:
		return FormatText
	}
	return FormatAuto
}

// DetectFormat resolves auto against the writer. An explicit choice wins;
// otherwise a terminal gets text and everything else gets JSON, so piped
// output stays machine-readable.
func DetectFormat(w io.Writer, explicit Format) Format {
	if explicit != FormatAuto {
		return explicit
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec // G115: Fd fits in int on supported platforms
		return FormatText
	}
	return FormatJSON
}

// Formatter carries a resolved format and its destination writer.
type Formatter struct {
	format Format
	writer io.Writer
}

// NewFormatter creates a formatter for an already resolved format.
func NewFormatter(format Format, w io.Writer) *Formatter {
	return &Formatter{format: format, writer: w}
}

// Format returns the resolved output format.
func (f *Formatter) Format() Format { return f.format }

// Writer returns the destination writer.
func (f *Formatter) Writer() io.Writer { return f.writer }

// IsJSON reports whether results render as JSON.
func (f *Formatter) IsJSON() bool { return f.format == FormatJSON }

// Print renders a value in the resolved format. Text mode prints strings
// and Stringers directly and falls back to %v for everything else.
func (f *Formatter) Print(v any) error {
	if f.IsJSON() {
		enc := json.NewEncoder(f.writer)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	var err error
	switch val := v.(type) {
	case string:
		_, err = fmt.Fprintln(f.writer, val)
	case fmt.Stringer:
		_, err = fmt.Fprintln(f.writer, val.String())
	default:
		_, err = fmt.Fprintf(f.writer, "%v\n", val)
	}
	return err
}

// Printf writes formatted text regardless of the resolved format.
func (f *Formatter) Printf(format string, args ...any) error {
	_, err := fmt.Fprintf(f.writer, format, args...)
	return err
}

// Println writes a text line regardless of the resolved format.
func (f *Formatter) Println(args ...any) error {
	_, err := fmt.Fprintln(f.writer, args...)
	return err
}
