package gigachat

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ConvertGigaChatResponseToOpenAIParams holds streaming conversion state.
// One value lives for the duration of a single response stream.
type ConvertGigaChatResponseToOpenAIParams struct {
	// ResponseID is the synthesized chatcmpl id, stable across all chunks
	// of one stream.
	ResponseID string

	// Created is the creation timestamp carried on every chunk.
	Created int64

	// FunctionCall accumulates partial function-call data until the backend
	// reports a finish reason.
	FunctionCall *FunctionCallAccumulator

	// RoleSent tracks whether the leading role delta went out already.
	RoleSent bool
}

// FunctionCallAccumulator holds the state for accumulating function call data
// whose argument payload may arrive split across multiple backend chunks.
type FunctionCallAccumulator struct {
	Name      string
	Arguments strings.Builder
}

// ConvertGigaChatResponseToOpenAINonStream converts a complete GigaChat reply
// into an OpenAI chat completion object. Function calls are re-encoded into
// the tool_calls shape with synthesized call identifiers, finish reasons are
// mapped, and token usage is carried through only when the backend reports it.
//
// modelName is the client-facing model name to echo back; the backend answers
// with its own model identifier, which the client never asked for.
func ConvertGigaChatResponseToOpenAINonStream(modelName string, rawJSON []byte) string {
	root := gjson.ParseBytes(rawJSON)

	out := `{"id":"","object":"chat.completion","created":0,"model":"","choices":[]}`
	out, _ = sjson.Set(out, "id", fmt.Sprintf("chatcmpl-%s", uuid.NewString()))
	out, _ = sjson.Set(out, "model", modelName)

	created := root.Get("created").Int()
	if created == 0 {
		created = time.Now().Unix()
	}
	out, _ = sjson.Set(out, "created", created)

	var choices []interface{}
	if backendChoices := root.Get("choices"); backendChoices.Exists() && backendChoices.IsArray() {
		backendChoices.ForEach(func(_, choice gjson.Result) bool {
			message := choice.Get("message")

			openAIMessage := map[string]interface{}{
				"role":    "assistant",
				"content": message.Get("content").String(),
			}

			if functionCall := message.Get("function_call"); functionCall.Exists() {
				openAIMessage["tool_calls"] = []interface{}{
					map[string]interface{}{
						"id":   genToolCallID(),
						"type": "function",
						"function": map[string]interface{}{
							"name":      functionCall.Get("name").String(),
							"arguments": encodeArguments(functionCall.Get("arguments")),
						},
					},
				}
				// OpenAI tool-call messages carry null content, not "".
				if openAIMessage["content"] == "" {
					openAIMessage["content"] = nil
				}
			}

			openAIChoice := map[string]interface{}{
				"index":         int(choice.Get("index").Int()),
				"message":       openAIMessage,
				"finish_reason": mapGigaChatFinishReason(choice.Get("finish_reason").String()),
				"logprobs":      nil,
			}

			choices = append(choices, openAIChoice)
			return true
		})
	}

	if len(choices) > 0 {
		choicesJSON, _ := json.Marshal(choices)
		out, _ = sjson.SetRaw(out, "choices", string(choicesJSON))
	}

	// Usage is carried through when present, never fabricated.
	if usage := root.Get("usage"); usage.Exists() {
		out, _ = sjson.SetRaw(out, "usage", usage.Raw)
	}

	return out
}

// ConvertGigaChatResponseToOpenAI converts one GigaChat streaming chunk into
// zero or more OpenAI chat.completion.chunk objects. Text deltas stream
// through in arrival order. Function-call argument fragments are buffered in
// the accumulator and emitted as a single whole-value tool-call delta when
// the backend reports a finish reason, so clients never observe a partial
// argument payload.
func ConvertGigaChatResponseToOpenAI(modelName string, rawJSON []byte, param *any) []string {
	if *param == nil {
		*param = &ConvertGigaChatResponseToOpenAIParams{
			ResponseID: fmt.Sprintf("chatcmpl-%s", uuid.NewString()),
			Created:    time.Now().Unix(),
		}
	}
	state := (*param).(*ConvertGigaChatResponseToOpenAIParams)

	// The [DONE] marker is framing, not payload; the handler re-emits it.
	if strings.TrimSpace(string(rawJSON)) == "[DONE]" {
		return []string{}
	}

	root := gjson.ParseBytes(rawJSON)
	if created := root.Get("created").Int(); created != 0 {
		state.Created = created
	}

	var results []string

	if choices := root.Get("choices"); choices.Exists() && choices.IsArray() {
		choices.ForEach(func(_, choice gjson.Result) bool {
			delta := choice.Get("delta")

			// Leading role delta, once per stream.
			if !state.RoleSent {
				state.RoleSent = true
				template := state.chunkTemplate(modelName)
				template, _ = sjson.Set(template, "choices.0.delta.role", "assistant")
				results = append(results, template)
			}

			if content := delta.Get("content"); content.Exists() && content.String() != "" {
				template := state.chunkTemplate(modelName)
				template, _ = sjson.Set(template, "choices.0.delta.content", content.String())
				results = append(results, template)
			}

			if functionCall := delta.Get("function_call"); functionCall.Exists() {
				if state.FunctionCall == nil {
					state.FunctionCall = &FunctionCallAccumulator{}
				}
				if name := functionCall.Get("name"); name.Exists() && name.String() != "" {
					state.FunctionCall.Name = name.String()
				}
				if args := functionCall.Get("arguments"); args.Exists() {
					state.FunctionCall.Arguments.WriteString(argumentFragment(args))
				}
				// Wait for the finish reason before emitting anything.
			}

			if finishReason := choice.Get("finish_reason"); finishReason.Exists() && finishReason.String() != "" {
				if state.FunctionCall != nil {
					template := state.chunkTemplate(modelName)
					toolCalls := []interface{}{
						map[string]interface{}{
							"index": 0,
							"id":    genToolCallID(),
							"type":  "function",
							"function": map[string]interface{}{
								"name":      state.FunctionCall.Name,
								"arguments": normalizeArguments(state.FunctionCall.Arguments.String()),
							},
						},
					}
					template, _ = sjson.Set(template, "choices.0.delta.tool_calls", toolCalls)
					results = append(results, template)
					state.FunctionCall = nil
				}

				template := state.chunkTemplate(modelName)
				template, _ = sjson.Set(template, "choices.0.finish_reason", mapGigaChatFinishReason(finishReason.String()))
				if usage := root.Get("usage"); usage.Exists() {
					template, _ = sjson.SetRaw(template, "usage", usage.Raw)
				}
				results = append(results, template)
			}

			return true
		})
	}

	return results
}

// chunkTemplate builds the base chunk object shared by every emitted delta.
func (p *ConvertGigaChatResponseToOpenAIParams) chunkTemplate(modelName string) string {
	template := `{"id":"","object":"chat.completion.chunk","created":0,"model":"","choices":[{"index":0,"delta":{},"finish_reason":null}]}`
	template, _ = sjson.Set(template, "id", p.ResponseID)
	template, _ = sjson.Set(template, "created", p.Created)
	template, _ = sjson.Set(template, "model", modelName)
	return template
}

// encodeArguments re-encodes a GigaChat arguments value into the JSON string
// OpenAI clients expect. The backend emits arguments as an object; a string
// value passes through untouched.
func encodeArguments(args gjson.Result) string {
	switch {
	case !args.Exists():
		return "{}"
	case args.Type == gjson.String:
		return args.String()
	default:
		return args.Raw
	}
}

// argumentFragment extracts the raw fragment to accumulate from a streamed
// arguments value, which may be an object, a JSON fragment string, or absent.
func argumentFragment(args gjson.Result) string {
	if args.Type == gjson.String {
		return args.String()
	}
	return args.Raw
}

// normalizeArguments makes sure the accumulated argument text is a valid JSON
// value. Fragments are only promised to be well-formed by end of stream;
// anything unparsable at that point degrades to an empty object.
func normalizeArguments(accumulated string) string {
	trimmed := strings.TrimSpace(accumulated)
	if trimmed == "" {
		return "{}"
	}
	if gjson.Valid(trimmed) {
		return trimmed
	}
	return "{}"
}

// mapGigaChatFinishReason maps GigaChat finish reasons to OpenAI finish reasons.
func mapGigaChatFinishReason(gigaReason string) string {
	switch gigaReason {
	case "stop":
		return "stop"
	case "length":
		return "length"
	case "function_call":
		return "tool_calls"
	case "blacklist":
		return "content_filter"
	default:
		return "stop"
	}
}
