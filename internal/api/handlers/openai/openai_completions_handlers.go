package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gpt2giga/gpt2giga/internal/api/handlers"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Completions handles the legacy /v1/completions endpoint by bridging the
// prompt onto the chat completions path and converting the result back.
//
// Parameters:
//   - c: The Gin context containing the HTTP request and response
func (h *OpenAIAPIHandler) Completions(c *gin.Context) {
	rawJSON, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, handlers.ErrorResponse{
			Error: handlers.ErrorDetail{
				Message: fmt.Sprintf("Invalid request: %v", err),
				Type:    "invalid_request_error",
			},
		})
		return
	}

	chatJSON := convertCompletionsRequestToChatCompletions(rawJSON)
	modelName := gjson.GetBytes(chatJSON, "model").String()

	streamResult := gjson.GetBytes(rawJSON, "stream")
	if streamResult.Type == gjson.True {
		h.handleCompletionsStreamingResponse(c, modelName, chatJSON)
		return
	}

	c.Header("Content-Type", "application/json")
	cliCtx, cliCancel := h.GetContextWithCancel(c, context.Background())

	resp, errMsg := h.Client.SendRawMessage(cliCtx, modelName, chatJSON)
	if errMsg != nil {
		c.Status(errMsg.StatusCode)
		_, _ = c.Writer.Write([]byte(errMsg.Error.Error()))
		cliCancel(errMsg.Error)
		return
	}

	completionsResp := convertChatCompletionsResponseToCompletions(resp)
	_, _ = c.Writer.Write(completionsResp)
	cliCancel(completionsResp)
}

// handleCompletionsStreamingResponse streams a bridged completions request,
// converting each chat chunk back into the legacy completions chunk shape.
func (h *OpenAIAPIHandler) handleCompletionsStreamingResponse(c *gin.Context, modelName string, chatJSON []byte) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

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

	cliCtx, cliCancel := h.GetContextWithCancel(c, context.Background())
	respChan, errChan := h.Client.SendRawMessageStream(cliCtx, modelName, chatJSON)

	wroteChunk := false
	for {
		select {
		case <-c.Request.Context().Done():
			log.Debugf("client disconnected: %v", c.Request.Context().Err())
			cliCancel()
			return
		case chunk, okStream := <-respChan:
			if !okStream {
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

			completionsChunk := convertChatCompletionsStreamChunkToCompletions(chunk)
			if completionsChunk != nil {
				wroteChunk = true
				_, _ = fmt.Fprintf(c.Writer, "data: %s\n\n", string(completionsChunk))
				flusher.Flush()
			}
		case errMsg, okError := <-errChan:
			if okError && errMsg != nil {
				h.writeStreamError(c, flusher, wroteChunk, errMsg.StatusCode, errMsg.Error)
				cliCancel(errMsg.Error)
				return
			}
		}
	}
}

// convertCompletionsRequestToChatCompletions converts a legacy completions
// request into chat completions format so it can ride the existing
// translation path.
//
// Parameters:
//   - rawJSON: The raw JSON bytes of the completions request
//
// Returns:
//   - []byte: The converted chat completions request
func convertCompletionsRequestToChatCompletions(rawJSON []byte) []byte {
	root := gjson.ParseBytes(rawJSON)

	prompt := root.Get("prompt").String()

	out := `{"model":"","messages":[{"role":"user","content":""}]}`

	if model := root.Get("model"); model.Exists() {
		out, _ = sjson.Set(out, "model", model.String())
	}

	out, _ = sjson.Set(out, "messages.0.content", prompt)

	if maxTokens := root.Get("max_tokens"); maxTokens.Exists() {
		out, _ = sjson.Set(out, "max_tokens", maxTokens.Int())
	}

	if temperature := root.Get("temperature"); temperature.Exists() {
		out, _ = sjson.Set(out, "temperature", temperature.Float())
	}

	if topP := root.Get("top_p"); topP.Exists() {
		out, _ = sjson.Set(out, "top_p", topP.Float())
	}

	if stream := root.Get("stream"); stream.Exists() {
		out, _ = sjson.Set(out, "stream", stream.Bool())
	}

	return []byte(out)
}

// convertChatCompletionsResponseToCompletions converts a chat completions
// response back into the legacy completions shape.
//
// Parameters:
//   - rawJSON: The raw JSON bytes of the chat completions response
//
// Returns:
//   - []byte: The converted completions response
func convertChatCompletionsResponseToCompletions(rawJSON []byte) []byte {
	root := gjson.ParseBytes(rawJSON)

	out := `{"id":"","object":"text_completion","created":0,"model":"","choices":[]}`

	if id := root.Get("id"); id.Exists() {
		out, _ = sjson.Set(out, "id", id.String())
	}

	if created := root.Get("created"); created.Exists() {
		out, _ = sjson.Set(out, "created", created.Int())
	}

	if model := root.Get("model"); model.Exists() {
		out, _ = sjson.Set(out, "model", model.String())
	}

	if usage := root.Get("usage"); usage.Exists() {
		out, _ = sjson.SetRaw(out, "usage", usage.Raw)
	}

	var choices []interface{}
	if chatChoices := root.Get("choices"); chatChoices.Exists() && chatChoices.IsArray() {
		chatChoices.ForEach(func(_, choice gjson.Result) bool {
			completionsChoice := map[string]interface{}{
				"index": choice.Get("index").Int(),
				"text":  choice.Get("message.content").String(),
			}
			if finishReason := choice.Get("finish_reason"); finishReason.Exists() {
				completionsChoice["finish_reason"] = finishReason.String()
			}
			choices = append(choices, completionsChoice)
			return true
		})
	}

	if len(choices) > 0 {
		choicesJSON, _ := json.Marshal(choices)
		out, _ = sjson.SetRaw(out, "choices", string(choicesJSON))
	}

	return []byte(out)
}

// convertChatCompletionsStreamChunkToCompletions converts a streaming chat
// completions chunk to completions format, filtering out chunks without
// meaningful content.
//
// Parameters:
//   - chunkData: The raw JSON bytes of a single chat completions stream chunk
//
// Returns:
//   - []byte: The converted completions stream chunk, or nil if it should be skipped
func convertChatCompletionsStreamChunkToCompletions(chunkData []byte) []byte {
	root := gjson.ParseBytes(chunkData)

	hasContent := false
	if chatChoices := root.Get("choices"); chatChoices.Exists() && chatChoices.IsArray() {
		chatChoices.ForEach(func(_, choice gjson.Result) bool {
			if content := choice.Get("delta.content"); content.Exists() && content.String() != "" {
				hasContent = true
				return false
			}
			if finishReason := choice.Get("finish_reason"); finishReason.Exists() && finishReason.String() != "" && finishReason.String() != "null" {
				hasContent = true
				return false
			}
			return true
		})
	}

	if !hasContent {
		return nil
	}

	out := `{"id":"","object":"text_completion","created":0,"model":"","choices":[]}`

	if id := root.Get("id"); id.Exists() {
		out, _ = sjson.Set(out, "id", id.String())
	}

	if created := root.Get("created"); created.Exists() {
		out, _ = sjson.Set(out, "created", created.Int())
	}

	if model := root.Get("model"); model.Exists() {
		out, _ = sjson.Set(out, "model", model.String())
	}

	var choices []interface{}
	if chatChoices := root.Get("choices"); chatChoices.Exists() && chatChoices.IsArray() {
		chatChoices.ForEach(func(_, choice gjson.Result) bool {
			completionsChoice := map[string]interface{}{
				"index": choice.Get("index").Int(),
				"text":  choice.Get("delta.content").String(),
			}
			if finishReason := choice.Get("finish_reason"); finishReason.Exists() && finishReason.String() != "null" && finishReason.String() != "" {
				completionsChoice["finish_reason"] = finishReason.String()
			}
			choices = append(choices, completionsChoice)
			return true
		})
	}

	if len(choices) > 0 {
		choicesJSON, _ := json.Marshal(choices)
		out, _ = sjson.SetRaw(out, "choices", string(choicesJSON))
	}

	return []byte(out)
}
