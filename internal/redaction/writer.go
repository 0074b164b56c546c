package redaction

import (
	"io"
	"sync"
)

// Writer scrubs everything written through it before forwarding to the
// destination. Plugin stdout and stderr are wrapped with it so secrets
// cannot leak into logs.
type Writer struct {
	mu       sync.Mutex
	dest     io.Writer
	scrubber *Scrubber
}

// NewWriter wraps dest. A nil scrubber passes writes through untouched.
func NewWriter(dest io.Writer, scrubber *Scrubber) *Writer {
	return &Writer{dest: dest, scrubber: scrubber}
}

// Write scrubs p and forwards it. The returned count reports the
// original input consumed, not the scrubbed size.
func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	data := p
	if w.scrubber != nil {
		data = []byte(w.scrubber.ScrubString(string(p)))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.dest.Write(data); err != nil {
		return 0, err
	}
	return len(p), nil
}
