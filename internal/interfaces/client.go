// Package interfaces defines the core interfaces and shared structures for the
// gpt2giga proxy server. These interfaces provide a common contract between the
// HTTP handlers and the backend client so the handlers can be exercised against
// fakes in tests.
package interfaces

import (
	"context"
)

// ErrorMessage wraps a backend failure together with the HTTP status code the
// proxy should surface to the client.
type ErrorMessage struct {
	// StatusCode is the HTTP status code to report to the client.
	StatusCode int

	// Error is the underlying error. Its text is written to the client as
	// the response body, so backend error payloads pass through unmodified.
	Error error
}

// Client defines the interface the GigaChat backend client must implement.
// It provides methods for sending translated chat requests and receiving
// either a complete response or a stream of response chunks.
type Client interface {
	// Provider returns the backend provider name.
	Provider() string

	// SendRawMessage sends an OpenAI-format JSON request to the backend and
	// returns the complete response translated back into OpenAI format.
	SendRawMessage(ctx context.Context, modelName string, rawJSON []byte) ([]byte, *ErrorMessage)

	// SendRawMessageStream sends an OpenAI-format JSON request and returns
	// translated response chunks over the first channel as they arrive.
	// Errors are reported over the second channel. Both channels are closed
	// when the stream ends.
	SendRawMessageStream(ctx context.Context, modelName string, rawJSON []byte) (<-chan []byte, <-chan *ErrorMessage)
}
