package headers

import (
	"fmt"
	"io"
	"strings"
)

// Headers is an ordered set of response header fields.
// Keys are matched case-insensitively but written in the case they were set.
type Headers struct {
	keys   []string
	values map[string]string
}

func NewHeaders() *Headers {
	return &Headers{
		values: make(map[string]string),
	}
}

// Set replaces the value for a header, keeping its original position
func (h *Headers) Set(key, value string) {
	lk := strings.ToLower(key)
	if _, ok := h.values[lk]; !ok {
		h.keys = append(h.keys, key)
	}
	h.values[lk] = value
}

// WriteTo writes "Key: value\r\n" for every non-empty header, in order.
// It does not write the blank line that ends the header block.
func (h *Headers) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, k := range h.keys {
		v := h.values[strings.ToLower(k)]
		if v == "" {
			continue
		}
		if err := validateField(k, v); err != nil {
			return total, err
		}
		n, err := fmt.Fprintf(w, "%s: %s\r\n", k, v)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func validateField(key, value string) error {
	for i := 0; i < len(key); i++ {
		if !isValidHeaderChar(key[i]) {
			return fmt.Errorf("invalid character in header name: %c", key[i])
		}
	}
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("invalid header value for %s: contains line break", key)
	}
	return nil
}

func isValidHeaderChar(b byte) bool {
	return (b >= 'A' && b <= 'Z') ||
		(b >= 'a' && b <= 'z') ||
		(b >= '0' && b <= '9') ||
		b == '!' || b == '#' || b == '$' || b == '%' || b == '&' ||
		b == '\'' || b == '*' || b == '+' || b == '-' || b == '.' ||
		b == '^' || b == '_' || b == '`' || b == '|' || b == '~'
}
