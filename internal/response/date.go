package response

import "time"

const rfc1123GMT = "Mon, 02 Jan 2006 15:04:05 GMT"

// FormatDate formats t as an RFC 1123 date in GMT, as used by the Date header.
func FormatDate(t time.Time) string {
	return t.UTC().Format(rfc1123GMT)
}
