package output

import (
	"fmt"
	"io"
)

// Notice writes a highlighted informational line, for messages that must
// stand out from regular command output (shown on stderr by callers).
func Notice(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, "ℹ️  "+format+"\n", args...)
}

// Warning writes a highlighted warning line.
func Warning(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, "⚠️  "+format+"\n", args...)
}
