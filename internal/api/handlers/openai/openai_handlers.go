// Package openai provides HTTP handlers for the OpenAI-compatible API surface
// of the gpt2giga proxy. It implements model listing and chat completion
// endpoints, supporting both streaming and non-streaming responses. The
// handlers hand each parsed request to the GigaChat client, which translates
// it to the backend format and converts replies back into OpenAI shape.
package openai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gpt2giga/gpt2giga/internal/api/handlers"
	"github.com/gpt2giga/gpt2giga/internal/registry"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// OpenAIAPIHandler contains the handlers for OpenAI API endpoints.
type OpenAIAPIHandler struct {
	*handlers.BaseAPIHandler
}

// NewOpenAIAPIHandler creates a new OpenAI API handlers instance.
//
// Parameters:
//   - apiHandlers: The base API handlers instance
//
// Returns:
//   - *OpenAIAPIHandler: A new OpenAI API handlers instance
func NewOpenAIAPIHandler(apiHandlers *handlers.BaseAPIHandler) *OpenAIAPIHandler {
	return &OpenAIAPIHandler{
		BaseAPIHandler: apiHandlers,
	}
}

// OpenAIModels handles the /v1/models endpoint.
// It returns the GigaChat model catalog and configured aliases in
// OpenAI-compatible format.
func (h *OpenAIAPIHandler) OpenAIModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   registry.GetAvailableModels(h.Config()),
	})
}

// ChatCompletions handles the /v1/chat/completions endpoint.
// It determines whether the request is for a streaming or non-streaming
// response and calls the appropriate handler.
//
// Parameters:
//   - c: The Gin context containing the HTTP request and response
func (h *OpenAIAPIHandler) ChatCompletions(c *gin.Context) {
	rawJSON, err := c.GetRawData()
	// If data retrieval fails, return a 400 Bad Request error.
	if err != nil {
		c.JSON(http.StatusBadRequest, handlers.ErrorResponse{
			Error: handlers.ErrorDetail{
				Message: fmt.Sprintf("Invalid request: %v", err),
				Type:    "invalid_request_error",
			},
		})
		return
	}

	// Check if the client requested a streaming response.
	streamResult := gjson.GetBytes(rawJSON, "stream")
	if streamResult.Type == gjson.True {
		h.handleStreamingResponse(c, rawJSON)
	} else {
		h.handleNonStreamingResponse(c, rawJSON)
	}
}

// handleNonStreamingResponse handles non-streaming chat completion requests.
// It sends the request to the backend and writes the translated response
// back to the client as a single JSON body.
//
// Parameters:
//   - c: The Gin context containing the HTTP request and response
//   - rawJSON: The raw JSON bytes of the OpenAI-compatible request
func (h *OpenAIAPIHandler) handleNonStreamingResponse(c *gin.Context, rawJSON []byte) {
	c.Header("Content-Type", "application/json")

	modelName := gjson.GetBytes(rawJSON, "model").String()
	cliCtx, cliCancel := h.GetContextWithCancel(c, context.Background())

	resp, errMsg := h.Client.SendRawMessage(cliCtx, modelName, rawJSON)
	if errMsg != nil {
		c.Status(errMsg.StatusCode)
		_, _ = c.Writer.Write([]byte(errMsg.Error.Error()))
		cliCancel(errMsg.Error)
		return
	}

	_, _ = c.Writer.Write(resp)
	cliCancel(resp)
}

// handleStreamingResponse handles streaming chat completion requests.
// It relays translated backend chunks to the client in real time using
// Server-Sent Events, preserving arrival order, and terminates the stream
// with a final [DONE] frame or an error frame.
//
// Parameters:
//   - c: The Gin context containing the HTTP request and response
//   - rawJSON: The raw JSON bytes of the OpenAI-compatible request
func (h *OpenAIAPIHandler) handleStreamingResponse(c *gin.Context, rawJSON []byte) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	// Get the http.Flusher interface to manually flush the response.
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, handlers.ErrorResponse{
			Error: handlers.ErrorDetail{
				Message: "Streaming not supported",
				Type:    "server_error",
			},
		})
		return
	}

	modelName := gjson.GetBytes(rawJSON, "model").String()
	cliCtx, cliCancel := h.GetContextWithCancel(c, context.Background())

	// Send the message and receive response chunks and errors via channels.
	respChan, errChan := h.Client.SendRawMessageStream(cliCtx, modelName, rawJSON)

	wroteChunk := false
	for {
		select {
		// Handle client disconnection.
		case <-c.Request.Context().Done():
			log.Debugf("client disconnected: %v", c.Request.Context().Err())
			cliCancel() // Cancel the backend request.
			return
		// Process incoming response chunks.
		case chunk, okStream := <-respChan:
			if !okStream {
				// Stream is closed; drain a pending error before
				// deciding how to terminate.
				select {
				case errMsg, okError := <-errChan:
					if okError && errMsg != nil {
						h.writeStreamError(c, flusher, wroteChunk, errMsg.StatusCode, errMsg.Error)
						cliCancel(errMsg.Error)
						return
					}
				default:
				}
				_, _ = fmt.Fprintf(c.Writer, "data: [DONE]\n\n")
				flusher.Flush()
				cliCancel()
				return
			}

			wroteChunk = true
			_, _ = fmt.Fprintf(c.Writer, "data: %s\n\n", string(chunk))
			flusher.Flush()
		// Handle errors from the backend.
		case errMsg, okError := <-errChan:
			if okError && errMsg != nil {
				h.writeStreamError(c, flusher, wroteChunk, errMsg.StatusCode, errMsg.Error)
				cliCancel(errMsg.Error)
				return
			}
		}
	}
}

// writeStreamError terminates a streaming response with an error. Before any
// chunk went out the error can still be a plain HTTP status; afterwards it is
// delivered as a final SSE error frame so the client never sees a truncated
// stream presented as success.
func (h *OpenAIAPIHandler) writeStreamError(c *gin.Context, flusher http.Flusher, wroteChunk bool, statusCode int, err error) {
	if !wroteChunk {
		c.Status(statusCode)
		_, _ = fmt.Fprint(c.Writer, err.Error())
		flusher.Flush()
		return
	}
	_, _ = fmt.Fprintf(c.Writer, "data: {\"error\":{\"message\":%q,\"type\":\"server_error\",\"code\":%d}}\n\n", err.Error(), statusCode)
	_, _ = fmt.Fprintf(c.Writer, "data: [DONE]\n\n")
	flusher.Flush()
}
