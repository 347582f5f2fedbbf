package request

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

const (
	DefaultChunkSize      = 24
	DefaultMaxHeaderBytes = 64 << 10
)

var headerTerminator = []byte("\r\n\r\n")

// ReadHeaderBlock reads r in chunkSize pieces until the blank line that ends
// the header block and returns the text before it.
// A peer that closes first yields ErrConnectionClosed, an expired deadline
// ErrReadTimeout. Nothing past the terminator is interpreted.
func ReadHeaderBlock(r io.Reader, chunkSize, maxHeaderBytes int) (string, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if maxHeaderBytes <= 0 {
		maxHeaderBytes = DefaultMaxHeaderBytes
	}

	chunk := getBuffer(chunkSize)
	defer putBuffer(chunk)

	buf := make([]byte, 0, chunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			// Only rescan the tail that could hold a new terminator
			start := max(0, len(buf)-len(headerTerminator)+1)
			buf = append(buf, chunk[:n]...)

			if idx := bytes.Index(buf[start:], headerTerminator); idx != -1 {
				return decode(buf[:start+idx])
			}
			if len(buf) > maxHeaderBytes {
				return "", ErrHeaderTooLarge
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", ErrConnectionClosed
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return "", fmt.Errorf("%w: %v", ErrReadTimeout, err)
			}
			return "", fmt.Errorf("read error: %w", err)
		}

		if n == 0 {
			return "", ErrConnectionClosed
		}
	}
}

func decode(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: invalid UTF-8", ErrMalformedRequestLine)
	}
	return string(b), nil
}
