package request

import (
	"fmt"
	"net/url"
	"strings"
)

const maxURILength = 8192

// Parse parses the request line out of a decoded header block:
// METHOD TARGET VERSION. Everything after the first line break is ignored.
func Parse(text string) (Request, error) {
	line := text
	if idx := strings.IndexAny(text, "\r\n"); idx != -1 {
		line = text[:idx]
	}

	parts := strings.Fields(line)
	if len(parts) != 3 {
		return Request{}, fmt.Errorf("%w: expected 3 fields, got %d", ErrMalformedRequestLine, len(parts))
	}

	method := Method(parts[0])
	if !method.valid() {
		return Request{}, fmt.Errorf("%w: %q", ErrUnsupportedMethod, parts[0])
	}

	if len(parts[1]) > maxURILength {
		return Request{}, fmt.Errorf("%w: URI too long", ErrMalformedRequestLine)
	}

	// Decode first so an escaped "?" also splits off the query
	target, err := url.PathUnescape(parts[1])
	if err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformedRequestLine, err)
	}
	if strings.ContainsRune(target, 0) {
		return Request{}, fmt.Errorf("%w: NUL in target", ErrMalformedRequestLine)
	}

	path, query, hasQuery := strings.Cut(target, "?")
	if !strings.HasPrefix(path, "/") {
		return Request{}, fmt.Errorf("%w: target must start with /", ErrMalformedRequestLine)
	}

	return Request{
		Method:   method,
		Path:     path,
		Version:  parts[2],
		Query:    query,
		HasQuery: hasQuery,
	}, nil
}
