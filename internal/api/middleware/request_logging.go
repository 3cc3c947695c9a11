// Package middleware provides HTTP middleware components for the gpt2giga
// proxy server. This file contains the request logging middleware that
// captures request and response data when enabled through configuration.
package middleware

import (
	"bytes"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gpt2giga/gpt2giga/internal/logging"
)

// RequestLoggingMiddleware creates a Gin middleware that logs HTTP requests
// and responses. It captures the inbound request, the translated backend
// request/response recorded by the client, and the bytes written back to the
// client. Streaming responses are logged chunk by chunk as they go out;
// everything else is logged once on completion. If logging is disabled the
// middleware has minimal overhead.
func RequestLoggingMiddleware(logger logging.RequestLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Early return if logging is disabled (zero overhead)
		if !logger.IsEnabled() {
			c.Next()
			return
		}

		requestInfo, err := captureRequestInfo(c)
		if err != nil {
			c.Next()
			return
		}

		wrapper := NewResponseWriterWrapper(c.Writer)
		c.Writer = wrapper

		// SSE responses are long-lived; their chunks go to the streaming
		// writer as they are flushed rather than buffering until the end.
		var streamLog logging.StreamingLogWriter
		wrapper.SetChunkHook(func(chunk []byte) {
			if !strings.HasPrefix(wrapper.Header().Get("Content-Type"), "text/event-stream") {
				return
			}
			if streamLog == nil {
				writer, errStream := logger.LogStreamingRequest(
					requestInfo.URL,
					requestInfo.Method,
					requestInfo.Headers,
					requestInfo.Body,
				)
				if errStream != nil {
					return
				}
				streamLog = writer
			}
			streamLog.WriteChunkAsync(chunk)
		})

		c.Next()

		if streamLog != nil {
			_ = streamLog.Close()
			return
		}

		apiRequest, _ := c.Get("API_REQUEST")
		apiResponse, _ := c.Get("API_RESPONSE")
		_ = logger.LogRequest(
			requestInfo.URL,
			requestInfo.Method,
			requestInfo.Headers,
			requestInfo.Body,
			wrapper.Status(),
			wrapper.Body(),
			toBytes(apiRequest),
			toBytes(apiResponse),
		)
	}
}

// captureRequestInfo extracts URL, method, headers, and body from the
// incoming request. The body is read and then restored so subsequent
// handlers can process it.
func captureRequestInfo(c *gin.Context) (*RequestInfo, error) {
	url := c.Request.URL.Path
	if c.Request.URL.RawQuery != "" {
		url += "?" + c.Request.URL.RawQuery
	}

	headers := make(map[string][]string)
	for key, values := range c.Request.Header {
		headers[key] = values
	}

	var body []byte
	if c.Request.Body != nil {
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return nil, err
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		body = bodyBytes
	}

	return &RequestInfo{
		URL:     url,
		Method:  c.Request.Method,
		Headers: headers,
		Body:    body,
	}, nil
}

func toBytes(value interface{}) []byte {
	if data, ok := value.([]byte); ok {
		return data
	}
	return nil
}
