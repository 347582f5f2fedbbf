package response

import (
	"fmt"
	"io"

	"github.com/Brownie44l1/statichttpd/internal/headers"
)

// Version is the protocol version sent on every status line
const Version = "HTTP/1.0"

// writerState tracks what's been written so far
type writerState int

const (
	stateStart writerState = iota
	stateStatusWritten
	stateHeadersWritten
	stateBodyWritten
)

// Writer writes a single HTTP response to an io.Writer
type Writer struct {
	w     io.Writer
	state writerState
}

// NewWriter creates a new response writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:     w,
		state: stateStart,
	}
}

// WriteStatusLine writes the HTTP status line
func (w *Writer) WriteStatusLine(code StatusCode) error {
	if w.state != stateStart {
		return fmt.Errorf("status line already written")
	}

	if _, err := fmt.Fprintf(w.w, "%s %d %s\r\n", Version, code, code.ReasonPhrase()); err != nil {
		return err
	}
	w.state = stateStatusWritten
	return nil
}

// WriteHeaders writes the header block including the blank line ending it
func (w *Writer) WriteHeaders(h *headers.Headers) error {
	if w.state != stateStatusWritten {
		return fmt.Errorf("must write status line before headers")
	}

	if _, err := h.WriteTo(w.w); err != nil {
		return err
	}
	if _, err := io.WriteString(w.w, "\r\n"); err != nil {
		return err
	}

	w.state = stateHeadersWritten
	return nil
}

// CopyBody streams the body from r
func (w *Writer) CopyBody(r io.Reader) (int64, error) {
	if w.state != stateHeadersWritten {
		return 0, fmt.Errorf("must write headers before body")
	}

	n, err := io.Copy(w.w, r)
	if err != nil {
		return n, err
	}

	w.state = stateBodyWritten
	return n, nil
}
