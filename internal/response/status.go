package response

// StatusCode represents HTTP status codes
type StatusCode int

const (
	StatusOK               StatusCode = 200
	StatusBadRequest       StatusCode = 400
	StatusForbidden        StatusCode = 403
	StatusNotFound         StatusCode = 404
	StatusMethodNotAllowed StatusCode = 405
)

// statusText maps status codes to reason phrases
var statusText = map[StatusCode]string{
	StatusOK:               "OK",
	StatusBadRequest:       "Bad Request",
	StatusForbidden:        "Forbidden",
	StatusNotFound:         "Not Found",
	StatusMethodNotAllowed: "Method Not Allowed",
}

// ReasonPhrase returns the reason phrase for code, or "Unknown"
func (c StatusCode) ReasonPhrase() string {
	if text, ok := statusText[c]; ok {
		return text
	}
	return "Unknown"
}
