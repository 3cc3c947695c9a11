// Package gigachat provides request and response translation between the
// OpenAI Chat Completions API and the GigaChat API. It transforms raw JSON in
// both directions: inbound OpenAI requests into GigaChat request bodies
// (message roles, function declarations, sampling parameters) and GigaChat
// replies, complete or streamed, back into OpenAI-compatible JSON including
// tool-call reconstruction.
package gigachat

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// minTemperature replaces a zero temperature; the backend rejects exact zero.
const minTemperature = 1e-15

// ConvertOpenAIRequestToGigaChat parses and transforms an OpenAI Chat
// Completions request into GigaChat request format. It maps message roles
// (tool results become function messages), flattens tools into the functions
// declaration list preserving parameter schemas byte-exact, and clamps or
// drops sampling parameters the backend does not support. Content types the
// backend cannot represent produce a TranslationError.
func ConvertOpenAIRequestToGigaChat(modelName string, rawJSON []byte, stream bool) ([]byte, error) {
	// Base GigaChat request template
	out := `{"model":"","messages":[]}`

	root := gjson.ParseBytes(rawJSON)

	out, _ = sjson.Set(out, "model", modelName)
	out, _ = sjson.Set(out, "stream", stream)

	messages := root.Get("messages")
	if !messages.Exists() || !messages.IsArray() || len(messages.Array()) == 0 {
		return nil, newTranslationErrorf("request must contain a non-empty messages array")
	}

	var gigaMessages []interface{}
	var convErr error

	messages.ForEach(func(_, message gjson.Result) bool {
		role := message.Get("role").String()

		msg := map[string]interface{}{
			"role":    role,
			"content": "",
		}

		switch role {
		case "system", "user", "assistant":
		case "tool", "function":
			// GigaChat models function results as a dedicated role.
			msg["role"] = "function"
		default:
			convErr = newTranslationErrorf("unsupported message role %q", role)
			return false
		}

		rawContent := message.Get("content")
		if msg["role"] == "function" && (rawContent.IsObject() || rawContent.IsArray()) {
			// Tool results may be structured; the backend wants their JSON text.
			msg["content"] = rawContent.Raw
		} else {
			content, err := flattenContent(rawContent)
			if err != nil {
				convErr = err
				return false
			}
			msg["content"] = content
		}

		// Assistant tool calls become the GigaChat function_call object.
		// The backend supports a single call per message; the first one wins.
		if toolCalls := message.Get("tool_calls"); toolCalls.Exists() && toolCalls.IsArray() {
			calls := toolCalls.Array()
			if len(calls) > 0 {
				function := calls[0].Get("function")
				msg["function_call"] = map[string]interface{}{
					"name":      function.Get("name").String(),
					"arguments": parseArgsToMap(function.Get("arguments").String()),
				}
			}
		} else if functionCall := message.Get("function_call"); functionCall.Exists() {
			// Legacy single function_call shape on assistant messages.
			msg["function_call"] = map[string]interface{}{
				"name":      functionCall.Get("name").String(),
				"arguments": parseArgsToMap(functionCall.Get("arguments").String()),
			}
		}

		gigaMessages = append(gigaMessages, msg)
		return true
	})

	if convErr != nil {
		return nil, convErr
	}

	messagesJSON, _ := json.Marshal(gigaMessages)
	out, _ = sjson.SetRaw(out, "messages", string(messagesJSON))

	// Tools mapping: OpenAI tools -> GigaChat functions. Parameter schemas
	// round-trip across conversation turns, so they are carried verbatim.
	if tools := root.Get("tools"); tools.Exists() && tools.IsArray() {
		var rawFunctions []string
		tools.ForEach(func(_, tool gjson.Result) bool {
			if tool.Get("type").String() != "function" {
				return true
			}
			if function := tool.Get("function"); function.Exists() {
				rawFunctions = append(rawFunctions, function.Raw)
			}
			return true
		})
		if len(rawFunctions) > 0 {
			out, _ = sjson.SetRaw(out, "functions", "["+strings.Join(rawFunctions, ",")+"]")
		}
	} else if functions := root.Get("functions"); functions.Exists() && functions.IsArray() {
		// Legacy clients already speak the functions dialect.
		out, _ = sjson.SetRaw(out, "functions", functions.Raw)
	}

	// Tool choice mapping
	if toolChoice := root.Get("tool_choice"); toolChoice.Exists() {
		switch {
		case toolChoice.Type == gjson.String:
			switch toolChoice.String() {
			case "none":
				out, _ = sjson.Set(out, "function_call", "none")
			case "auto", "required":
				out, _ = sjson.Set(out, "function_call", "auto")
			}
		case toolChoice.IsObject():
			if name := toolChoice.Get("function.name"); name.Exists() {
				out, _ = sjson.Set(out, "function_call", map[string]interface{}{"name": name.String()})
			}
		}
	}

	// Sampling parameters. The backend rejects temperature zero, so both a
	// missing and a zero value are pinned to a near-greedy epsilon.
	temperature := minTemperature
	if temp := root.Get("temperature"); temp.Exists() && temp.Float() != 0 {
		temperature = temp.Float()
	}
	out, _ = sjson.Set(out, "temperature", temperature)

	if topP := root.Get("top_p"); topP.Exists() {
		out, _ = sjson.Set(out, "top_p", topP.Float())
	}

	if maxTokens := root.Get("max_tokens"); maxTokens.Exists() {
		out, _ = sjson.Set(out, "max_tokens", maxTokens.Int())
	} else if maxTokens = root.Get("max_completion_tokens"); maxTokens.Exists() {
		out, _ = sjson.Set(out, "max_tokens", maxTokens.Int())
	}

	if repetitionPenalty := root.Get("repetition_penalty"); repetitionPenalty.Exists() {
		out, _ = sjson.Set(out, "repetition_penalty", repetitionPenalty.Float())
	}

	// n, stop, logprobs, logit_bias, frequency/presence penalties have no
	// GigaChat equivalent and are dropped.

	return []byte(out), nil
}

// flattenContent converts an OpenAI message content value into the plain
// string GigaChat expects. Structured content is allowed only when every part
// is text; anything else cannot be represented by the backend.
func flattenContent(content gjson.Result) (string, error) {
	switch {
	case !content.Exists() || content.Type == gjson.Null:
		return "", nil
	case content.Type == gjson.String:
		return content.String(), nil
	case content.IsArray():
		var parts []string
		var convErr error
		content.ForEach(func(_, part gjson.Result) bool {
			partType := part.Get("type").String()
			if partType != "text" {
				convErr = newTranslationErrorf("unsupported content part type %q", partType)
				return false
			}
			parts = append(parts, part.Get("text").String())
			return true
		})
		if convErr != nil {
			return "", convErr
		}
		return strings.Join(parts, ""), nil
	case content.IsObject():
		return "", newTranslationErrorf("unsupported content shape: object")
	default:
		// Numbers and booleans are serialized as their JSON text.
		return content.Raw, nil
	}
}

// parseArgsToMap safely parses a JSON string of function arguments into a map.
// It returns an empty map if the input is empty or cannot be parsed as a JSON object.
func parseArgsToMap(argsStr string) map[string]interface{} {
	trimmed := strings.TrimSpace(argsStr)
	if trimmed == "" || trimmed == "{}" {
		return map[string]interface{}{}
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
		return out
	}
	return map[string]interface{}{}
}

// genToolCallID generates tool call IDs in the form call_<alphanum>, matching
// the identifier shape OpenAI clients expect. The backend does not assign
// call identifiers, so the proxy synthesizes stable ones per response.
func genToolCallID() string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	var b strings.Builder
	for i := 0; i < 24; i++ {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		b.WriteByte(letters[n.Int64()])
	}
	return "call_" + b.String()
}
