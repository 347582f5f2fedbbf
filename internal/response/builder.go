package response

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Brownie44l1/statichttpd/internal/headers"
)

const (
	DefaultServerName  = "OTUServer"
	defaultContentType = "text/plain"
)

// Builder assembles complete responses: status line, the fixed header set
// and, for file responses, the body.
type Builder struct {
	ServerName string
	// Now is read once per response
	Now func() time.Time
}

func NewBuilder(serverName string) *Builder {
	if serverName == "" {
		serverName = DefaultServerName
	}
	return &Builder{
		ServerName: serverName,
		Now:        time.Now,
	}
}

// newHeaders returns the header set in wire order. Entries left empty are
// not written.
func (b *Builder) newHeaders() *headers.Headers {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}

	h := headers.NewHeaders()
	h.Set("Date", FormatDate(now()))
	h.Set("Server", b.ServerName)
	h.Set("Content-Length", "")
	h.Set("Content-Type", "")
	h.Set("Connection", "close")
	return h
}

// WriteStatus writes a body-less response carrying only code and the
// minimal headers.
func (b *Builder) WriteStatus(w io.Writer, code StatusCode) error {
	rw := NewWriter(w)
	if err := rw.WriteStatusLine(code); err != nil {
		return err
	}
	return rw.WriteHeaders(b.newHeaders())
}

// WriteFile writes a 200 response for the file at path. When head is set
// only the headers are sent. It returns the number of body bytes written.
func (b *Builder) WriteFile(w io.Writer, path string, head bool) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()

	h := b.newHeaders()
	h.Set("Content-Length", strconv.FormatInt(size, 10))
	h.Set("Content-Type", ContentType(path))

	rw := NewWriter(w)
	if err := rw.WriteStatusLine(StatusOK); err != nil {
		return 0, err
	}
	if err := rw.WriteHeaders(h); err != nil {
		return 0, err
	}
	if head {
		return 0, nil
	}

	// Never send more than Content-Length promised
	n, err := rw.CopyBody(io.LimitReader(f, size))
	if err != nil {
		return n, fmt.Errorf("send %s: %w", path, err)
	}
	if n != size {
		return n, fmt.Errorf("send %s: short read, %d of %d bytes", path, n, size)
	}
	return n, nil
}

// ContentType guesses the media type from the file suffix
func ContentType(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return defaultContentType
}
