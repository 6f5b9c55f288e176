package pipeline

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dex-cli/internal/model"
)

// RunLog is the append-only, human-readable record of processed identities.
type RunLog struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// NewRunLog writes blocks to w.
func NewRunLog(w io.Writer) *RunLog {
	return &RunLog{w: w}
}

// OpenRunLog opens path for appending, creating it if needed.
func OpenRunLog(path string) (*RunLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: open run log %s", path)
	}
	return &RunLog{w: f, c: f}, nil
}

// Append writes one block for the outcome.
func (l *RunLog) Append(o model.Outcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := io.WriteString(l.w, FormatOutcome(o)+"\n"); err != nil {
		return eris.Wrap(err, "pipeline: append run log")
	}
	return nil
}

// Close closes the underlying file when the log owns one.
func (l *RunLog) Close() error {
	if l.c == nil {
		return nil
	}
	return l.c.Close()
}

// FormatOutcome renders an outcome block: a header with identity, name, and
// status, then one tab-indented line per degraded label. An identity whose
// name was never resolved gets a FAILURE header and its error.
func FormatOutcome(o model.Outcome) string {
	var b strings.Builder
	if o.Name == "" && o.Status == model.StatusFailure {
		fmt.Fprintf(&b, "FAILURE: (%04d)", o.DexNo)
		if o.Err != nil {
			fmt.Fprintf(&b, "\n\t%s", o.Err.Error())
		}
		return b.String()
	}

	fmt.Fprintf(&b, "READING: (%04d) %-12s\tSTART\t%s", o.DexNo, o.Name, o.Status)
	for _, label := range o.Degraded {
		fmt.Fprintf(&b, "\n\t\t%s", label)
	}
	return b.String()
}
