// Package handlers provides core API handler functionality for the gpt2giga
// proxy server. It includes the shared error shapes and the cancellable
// request context plumbing used by the endpoint handlers.
package handlers

import (
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/gpt2giga/gpt2giga/internal/config"
	"github.com/gpt2giga/gpt2giga/internal/interfaces"
	"golang.org/x/net/context"
)

// ErrorResponse represents a standard error response format for the API.
// It contains a single ErrorDetail field.
type ErrorResponse struct {
	// Error contains detailed information about the error that occurred.
	Error ErrorDetail `json:"error"`
}

// ErrorDetail provides specific information about an error that occurred.
// It includes a human-readable message, an error type, and an optional error code.
type ErrorDetail struct {
	// Message is a human-readable message providing more details about the error.
	Message string `json:"message"`

	// Type is the category of error that occurred (e.g., "invalid_request_error").
	Type string `json:"type"`

	// Code is a short code identifying the error, if applicable.
	Code string `json:"code,omitempty"`
}

// APIHandlerCancelFunc cancels an in-flight request context and records the
// final response payload for request logging.
type APIHandlerCancelFunc func(params ...interface{})

// BaseAPIHandler contains the state shared by all endpoint handlers:
// the backend client and the current configuration.
type BaseAPIHandler struct {
	// Client is the GigaChat backend client.
	Client interfaces.Client

	// cfg holds the current application configuration. Swapped atomically
	// on hot reload while request goroutines read it.
	cfg atomic.Pointer[config.Config]
}

// NewBaseAPIHandlers creates a new base API handler instance.
//
// Parameters:
//   - cli: The backend client
//   - cfg: The application configuration
//
// Returns:
//   - *BaseAPIHandler: A new base API handler instance
func NewBaseAPIHandlers(cli interfaces.Client, cfg *config.Config) *BaseAPIHandler {
	h := &BaseAPIHandler{Client: cli}
	h.cfg.Store(cfg)
	return h
}

// Config returns the current configuration snapshot.
func (h *BaseAPIHandler) Config() *config.Config {
	return h.cfg.Load()
}

// UpdateConfig swaps in a new configuration after a hot reload.
func (h *BaseAPIHandler) UpdateConfig(cfg *config.Config) {
	h.cfg.Store(cfg)
}

// GetContextWithCancel derives a cancellable context that carries the gin
// context for request logging. The returned cancel function optionally
// records the final response payload before cancelling.
func (h *BaseAPIHandler) GetContextWithCancel(c *gin.Context, ctx context.Context) (context.Context, APIHandlerCancelFunc) {
	newCtx, cancel := context.WithCancel(ctx)
	newCtx = context.WithValue(newCtx, "gin", c)
	return newCtx, func(params ...interface{}) {
		if h.Config().RequestLog && len(params) == 1 {
			switch data := params[0].(type) {
			case []byte:
				c.Set("API_RESPONSE", data)
			case error:
				c.Set("API_RESPONSE", []byte(data.Error()))
			case string:
				c.Set("API_RESPONSE", []byte(data))
			}
		}
		cancel()
	}
}
