package request

import "errors"

// Method is one of the request methods the server answers
type Method string

const (
	MethodGet  Method = "GET"
	MethodHead Method = "HEAD"
)

var (
	ErrMalformedRequestLine = errors.New("malformed request line")
	ErrUnsupportedMethod    = errors.New("unsupported method")
	ErrHeaderTooLarge       = errors.New("headers too large")
	ErrConnectionClosed     = errors.New("connection closed by peer")
	ErrReadTimeout          = errors.New("read timeout")
)

// Request is the parsed request line of a single connection.
// Path is percent-decoded and always starts with "/".
type Request struct {
	Method   Method
	Path     string
	Version  string
	Query    string
	HasQuery bool
}

func (m Method) valid() bool {
	return m == MethodGet || m == MethodHead
}

// IsHead reports whether the response must omit its body
func (r Request) IsHead() bool {
	return r.Method == MethodHead
}

// Target rebuilds the decoded request target including the query string
func (r Request) Target() string {
	if !r.HasQuery {
		return r.Path
	}
	return r.Path + "?" + r.Query
}

// IsBadRequest reports whether err came from a request the server
// refuses to serve, as opposed to a transport failure.
func IsBadRequest(err error) bool {
	return errors.Is(err, ErrMalformedRequestLine) ||
		errors.Is(err, ErrUnsupportedMethod) ||
		errors.Is(err, ErrHeaderTooLarge)
}
