package request

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleGET(t *testing.T) {
	req, err := Parse("GET /index.html HTTP/1.0\r\nHost: example.com")

	require.NoError(t, err)
	assert.Equal(t, MethodGet, req.Method)
	assert.Equal(t, "/index.html", req.Path)
	assert.Equal(t, "HTTP/1.0", req.Version)
	assert.False(t, req.HasQuery)
	assert.False(t, req.IsHead())
}

func TestParseHEAD(t *testing.T) {
	req, err := Parse("HEAD / HTTP/1.1")

	require.NoError(t, err)
	assert.Equal(t, MethodHead, req.Method)
	assert.True(t, req.IsHead())
	assert.Equal(t, "/", req.Path)
}

func TestParseQueryString(t *testing.T) {
	req, err := Parse("GET /search?q=test HTTP/1.0")

	require.NoError(t, err)
	assert.Equal(t, "/search", req.Path)
	assert.Equal(t, "q=test", req.Query)
	assert.True(t, req.HasQuery)
	assert.Equal(t, "/search?q=test", req.Target())

	// Only the first "?" splits
	req, err = Parse("GET /a?b?c HTTP/1.0")
	require.NoError(t, err)
	assert.Equal(t, "/a", req.Path)
	assert.Equal(t, "b?c", req.Query)

	// Empty query is still a query
	req, err = Parse("GET /a? HTTP/1.0")
	require.NoError(t, err)
	assert.Equal(t, "/a", req.Path)
	assert.True(t, req.HasQuery)
	assert.Equal(t, "", req.Query)
}

func TestParsePercentDecoding(t *testing.T) {
	req, err := Parse("GET /my%20file.txt HTTP/1.0")
	require.NoError(t, err)
	assert.Equal(t, "/my file.txt", req.Path)

	// Escaped traversal is decoded so the resolver sees it
	req, err = Parse("GET /..%2F..%2Fetc%2Fpasswd HTTP/1.0")
	require.NoError(t, err)
	assert.Equal(t, "/../../etc/passwd", req.Path)

	// Escaped "?" is decoded before splitting
	req, err = Parse("GET /a%3Fb HTTP/1.0")
	require.NoError(t, err)
	assert.Equal(t, "/a", req.Path)
	assert.Equal(t, "b", req.Query)
}

func TestParseWhitespace(t *testing.T) {
	// Runs of spaces and tabs separate fields
	req, err := Parse("GET  \t/x   HTTP/1.0  ")
	require.NoError(t, err)
	assert.Equal(t, "/x", req.Path)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr error
	}{
		{"missing version", "GET /path", ErrMalformedRequestLine},
		{"too many fields", "GET /a b HTTP/1.0", ErrMalformedRequestLine},
		{"empty", "", ErrMalformedRequestLine},
		{"POST", "POST / HTTP/1.0", ErrUnsupportedMethod},
		{"lowercase get", "get / HTTP/1.0", ErrUnsupportedMethod},
		{"DELETE", "DELETE /x HTTP/1.0", ErrUnsupportedMethod},
		{"bad escape", "GET /%zz HTTP/1.0", ErrMalformedRequestLine},
		{"relative target", "GET index.html HTTP/1.0", ErrMalformedRequestLine},
		{"NUL byte", "GET /a%00b HTTP/1.0", ErrMalformedRequestLine},
		{"URI too long", "GET /" + strings.Repeat("a", maxURILength) + " HTTP/1.0", ErrMalformedRequestLine},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.line)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsBadRequest(err))
		})
	}
}

func TestParseMethodCheckedBeforeTarget(t *testing.T) {
	_, err := Parse("POST %zz HTTP/1.0")
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}

func TestReadHeaderBlock(t *testing.T) {
	data := "GET / HTTP/1.0\r\nHost: example.com\r\n\r\nignored body"
	text, err := ReadHeaderBlock(strings.NewReader(data), 24, 0)

	require.NoError(t, err)
	assert.Equal(t, "GET / HTTP/1.0\r\nHost: example.com", text)
}

func TestReadHeaderBlockIncremental(t *testing.T) {
	// Terminator split across reads
	data := []byte("GET /index.html HTTP/1.0\r\n\r\n")
	for _, size := range []int{1, 2, 3, 5, 26, 27} {
		t.Run(fmt.Sprintf("chunk=%d", size), func(t *testing.T) {
			reader := &slowReader{data: data, chunkSize: size}
			text, err := ReadHeaderBlock(reader, size, 0)

			require.NoError(t, err)
			assert.Equal(t, "GET /index.html HTTP/1.0", text)
		})
	}
}

func TestReadHeaderBlockPeerClosed(t *testing.T) {
	// No terminator before EOF
	_, err := ReadHeaderBlock(strings.NewReader("GET / HTTP/1.0\r\n"), 8, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.False(t, IsBadRequest(err))

	// Nothing at all
	_, err = ReadHeaderBlock(strings.NewReader(""), 8, 0)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestReadHeaderBlockTerminatorWithEOF(t *testing.T) {
	// Data and EOF in the same Read still count
	reader := &eofReader{data: []byte("HEAD / HTTP/1.0\r\n\r\n")}
	text, err := ReadHeaderBlock(reader, 64, 0)

	require.NoError(t, err)
	assert.Equal(t, "HEAD / HTTP/1.0", text)
}

func TestReadHeaderBlockTimeout(t *testing.T) {
	reader := &errReader{err: os.ErrDeadlineExceeded}
	_, err := ReadHeaderBlock(reader, 24, 0)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReadTimeout)
}

func TestReadHeaderBlockReadError(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := ReadHeaderBlock(&errReader{err: boom}, 24, 0)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsBadRequest(err))
}

func TestReadHeaderBlockTooLarge(t *testing.T) {
	data := "GET /" + strings.Repeat("a", 200) + " HTTP/1.0\r\n\r\n"
	_, err := ReadHeaderBlock(strings.NewReader(data), 16, 64)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHeaderTooLarge)
	assert.True(t, IsBadRequest(err))
}

func TestReadHeaderBlockInvalidUTF8(t *testing.T) {
	data := "GET /\xff\xfe HTTP/1.0\r\n\r\n"
	_, err := ReadHeaderBlock(strings.NewReader(data), 24, 0)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRequestLine)
}

func TestBufferPoolSizes(t *testing.T) {
	buf := getBuffer(24)
	assert.Len(t, buf, 24)
	assert.Equal(t, smallBufferSize, cap(buf))
	putBuffer(buf)

	buf = getBuffer(5000)
	assert.Len(t, buf, 5000)
	assert.Equal(t, largeBufferSize, cap(buf))
	putBuffer(buf)

	buf = getBuffer(largeBufferSize + 1)
	assert.Len(t, buf, largeBufferSize+1)
	putBuffer(buf)
}

// slowReader simulates a network connection that provides data slowly
type slowReader struct {
	data      []byte
	chunkSize int
	offset    int
}

func (r *slowReader) Read(p []byte) (int, error) {
	if r.offset >= len(r.data) {
		return 0, io.EOF
	}

	n := r.chunkSize
	if n > len(p) {
		n = len(p)
	}
	if n > len(r.data)-r.offset {
		n = len(r.data) - r.offset
	}

	copy(p, r.data[r.offset:r.offset+n])
	r.offset += n
	return n, nil
}

// eofReader returns all its data together with io.EOF
type eofReader struct {
	data []byte
}

func (r *eofReader) Read(p []byte) (int, error) {
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, io.EOF
}

type errReader struct {
	err error
}

func (r *errReader) Read(p []byte) (int, error) {
	return 0, r.err
}
