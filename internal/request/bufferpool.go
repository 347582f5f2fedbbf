package request

import "sync"

const (
	smallBufferSize = 4096
	largeBufferSize = 32768
)

// bufferPool keeps read chunks so workers don't allocate one per connection
type bufferPool struct {
	small sync.Pool
	large sync.Pool
}

var chunkBuffers = &bufferPool{
	small: sync.Pool{
		New: func() interface{} {
			buf := make([]byte, smallBufferSize)
			return &buf
		},
	},
	large: sync.Pool{
		New: func() interface{} {
			buf := make([]byte, largeBufferSize)
			return &buf
		},
	},
}

// getBuffer returns a buffer of exactly size bytes
func getBuffer(size int) []byte {
	switch {
	case size <= smallBufferSize:
		buf := chunkBuffers.small.Get().(*[]byte)
		return (*buf)[:size]
	case size <= largeBufferSize:
		buf := chunkBuffers.large.Get().(*[]byte)
		return (*buf)[:size]
	default:
		// Non-standard size, let GC handle it
		return make([]byte, size)
	}
}

// putBuffer returns a buffer obtained from getBuffer
func putBuffer(buf []byte) {
	switch cap(buf) {
	case smallBufferSize:
		full := buf[:smallBufferSize]
		chunkBuffers.small.Put(&full)
	case largeBufferSize:
		full := buf[:largeBufferSize]
		chunkBuffers.large.Put(&full)
	}
}
