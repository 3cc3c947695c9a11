package middleware

import (
	"bytes"

	"github.com/gin-gonic/gin"
)

// RequestInfo holds information about the current request for logging purposes.
type RequestInfo struct {
	URL     string
	Method  string
	Headers map[string][]string
	Body    []byte
}

// ResponseWriterWrapper wraps gin.ResponseWriter to capture response data for
// logging. The client write always happens first; capture never delays it.
type ResponseWriterWrapper struct {
	gin.ResponseWriter
	body    *bytes.Buffer
	onChunk func([]byte)
}

// NewResponseWriterWrapper creates a new response writer wrapper.
func NewResponseWriterWrapper(w gin.ResponseWriter) *ResponseWriterWrapper {
	return &ResponseWriterWrapper{
		ResponseWriter: w,
		body:           &bytes.Buffer{},
	}
}

// SetChunkHook registers a callback invoked with every piece of data written
// to the client. The callback runs on the handler goroutine after the client
// write completes.
func (w *ResponseWriterWrapper) SetChunkHook(hook func([]byte)) {
	w.onChunk = hook
}

// Write forwards data to the client and records a copy for the log.
func (w *ResponseWriterWrapper) Write(data []byte) (int, error) {
	n, err := w.ResponseWriter.Write(data)
	w.body.Write(data[:n])
	if w.onChunk != nil && n > 0 {
		w.onChunk(data[:n])
	}
	return n, err
}

// WriteString forwards a string to the client and records a copy for the log.
func (w *ResponseWriterWrapper) WriteString(s string) (int, error) {
	n, err := w.ResponseWriter.WriteString(s)
	w.body.WriteString(s[:n])
	if w.onChunk != nil && n > 0 {
		w.onChunk([]byte(s[:n]))
	}
	return n, err
}

// Body returns the captured response bytes.
func (w *ResponseWriterWrapper) Body() []byte {
	return w.body.Bytes()
}
