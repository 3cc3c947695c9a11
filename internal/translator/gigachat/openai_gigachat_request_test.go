package gigachat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestConvertRequestBasic(t *testing.T) {
	rawJSON := []byte(`{
		"model": "gpt-4o",
		"messages": [
			{"role": "system", "content": "You are helpful."},
			{"role": "user", "content": "Hello"}
		]
	}`)

	out, err := ConvertOpenAIRequestToGigaChat("GigaChat", rawJSON, false)
	require.NoError(t, err)

	root := gjson.ParseBytes(out)
	assert.Equal(t, "GigaChat", root.Get("model").String())
	assert.False(t, root.Get("stream").Bool())
	require.Equal(t, int64(2), root.Get("messages.#").Int())
	assert.Equal(t, "system", root.Get("messages.0.role").String())
	assert.Equal(t, "You are helpful.", root.Get("messages.0.content").String())
	assert.Equal(t, "user", root.Get("messages.1.role").String())
	assert.Equal(t, "Hello", root.Get("messages.1.content").String())
}

func TestConvertRequestEmptyMessages(t *testing.T) {
	for _, rawJSON := range []string{
		`{"model":"gpt-4o"}`,
		`{"model":"gpt-4o","messages":[]}`,
		`{"model":"gpt-4o","messages":"nope"}`,
	} {
		_, err := ConvertOpenAIRequestToGigaChat("GigaChat", []byte(rawJSON), false)
		require.Error(t, err, rawJSON)
		var translationErr *TranslationError
		assert.ErrorAs(t, err, &translationErr, rawJSON)
	}
}

func TestConvertRequestToolRole(t *testing.T) {
	rawJSON := []byte(`{
		"messages": [
			{"role": "user", "content": "weather?"},
			{"role": "assistant", "content": null, "tool_calls": [
				{"id": "call_x", "type": "function", "function": {"name": "get_weather", "arguments": "{\"city\":\"Paris\"}"}}
			]},
			{"role": "tool", "tool_call_id": "call_x", "content": "{\"temp\": 12}"}
		]
	}`)

	out, err := ConvertOpenAIRequestToGigaChat("GigaChat", rawJSON, false)
	require.NoError(t, err)

	root := gjson.ParseBytes(out)
	assert.Equal(t, "assistant", root.Get("messages.1.role").String())
	assert.Equal(t, "get_weather", root.Get("messages.1.function_call.name").String())
	// Arguments are re-encoded from a JSON string to an object.
	assert.Equal(t, "Paris", root.Get("messages.1.function_call.arguments.city").String())
	assert.Equal(t, "function", root.Get("messages.2.role").String())
	assert.Equal(t, `{"temp": 12}`, root.Get("messages.2.content").String())
}

func TestConvertRequestStructuredToolResult(t *testing.T) {
	rawJSON := []byte(`{
		"messages": [
			{"role": "tool", "tool_call_id": "call_x", "content": {"temp": 12, "unit": "C"}}
		]
	}`)

	out, err := ConvertOpenAIRequestToGigaChat("GigaChat", rawJSON, false)
	require.NoError(t, err)

	root := gjson.ParseBytes(out)
	assert.Equal(t, "function", root.Get("messages.0.role").String())
	// Structured tool results are carried as their JSON text.
	content := root.Get("messages.0.content")
	require.Equal(t, gjson.String, content.Type)
	assert.Equal(t, int64(12), gjson.Get(content.String(), "temp").Int())
}

func TestConvertRequestUnknownRole(t *testing.T) {
	rawJSON := []byte(`{"messages":[{"role":"robot","content":"hi"}]}`)
	_, err := ConvertOpenAIRequestToGigaChat("GigaChat", rawJSON, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "robot")
}

func TestConvertRequestStructuredContent(t *testing.T) {
	rawJSON := []byte(`{
		"messages": [
			{"role": "user", "content": [
				{"type": "text", "text": "part one "},
				{"type": "text", "text": "part two"}
			]}
		]
	}`)

	out, err := ConvertOpenAIRequestToGigaChat("GigaChat", rawJSON, false)
	require.NoError(t, err)
	assert.Equal(t, "part one part two", gjson.GetBytes(out, "messages.0.content").String())
}

func TestConvertRequestImageContentRejected(t *testing.T) {
	rawJSON := []byte(`{
		"messages": [
			{"role": "user", "content": [
				{"type": "image_url", "image_url": {"url": "https://example.com/cat.png"}}
			]}
		]
	}`)

	_, err := ConvertOpenAIRequestToGigaChat("GigaChat", rawJSON, false)
	require.Error(t, err)
	var translationErr *TranslationError
	require.ErrorAs(t, err, &translationErr)
	assert.Contains(t, err.Error(), "image_url")
}

func TestConvertRequestToolsToFunctions(t *testing.T) {
	schema := `{"type":"object","properties":{"city":{"type":"string","description":"City name"}},"required":["city"]}`
	rawJSON := []byte(`{
		"messages": [{"role": "user", "content": "weather?"}],
		"tools": [
			{"type": "function", "function": {"name": "get_weather", "description": "Get weather", "parameters": ` + schema + `}},
			{"type": "web_search", "web_search": {}}
		]
	}`)

	out, err := ConvertOpenAIRequestToGigaChat("GigaChat", rawJSON, false)
	require.NoError(t, err)

	root := gjson.ParseBytes(out)
	require.Equal(t, int64(1), root.Get("functions.#").Int())
	assert.Equal(t, "get_weather", root.Get("functions.0.name").String())
	// Parameter schemas are carried byte-exact.
	assert.Equal(t, schema, root.Get("functions.0.parameters").Raw)
}

func TestConvertRequestLegacyFunctions(t *testing.T) {
	rawJSON := []byte(`{
		"messages": [{"role": "user", "content": "weather?"}],
		"functions": [{"name": "get_weather", "parameters": {"type": "object"}}]
	}`)

	out, err := ConvertOpenAIRequestToGigaChat("GigaChat", rawJSON, false)
	require.NoError(t, err)
	assert.Equal(t, "get_weather", gjson.GetBytes(out, "functions.0.name").String())
}

func TestConvertRequestToolChoice(t *testing.T) {
	cases := []struct {
		toolChoice string
		expected   string
	}{
		{`"none"`, `"none"`},
		{`"auto"`, `"auto"`},
		{`"required"`, `"auto"`},
		{`{"type":"function","function":{"name":"get_weather"}}`, `{"name":"get_weather"}`},
	}

	for _, tc := range cases {
		rawJSON := []byte(`{"messages":[{"role":"user","content":"hi"}],"tool_choice":` + tc.toolChoice + `}`)
		out, err := ConvertOpenAIRequestToGigaChat("GigaChat", rawJSON, false)
		require.NoError(t, err, tc.toolChoice)
		assert.Equal(t, tc.expected, gjson.GetBytes(out, "function_call").Raw, tc.toolChoice)
	}
}

func TestConvertRequestTemperature(t *testing.T) {
	// Absent temperature pins to the near-zero epsilon.
	out, err := ConvertOpenAIRequestToGigaChat("GigaChat", []byte(`{"messages":[{"role":"user","content":"hi"}]}`), false)
	require.NoError(t, err)
	assert.InDelta(t, minTemperature, gjson.GetBytes(out, "temperature").Float(), 1e-18)

	// Explicit zero as well.
	out, err = ConvertOpenAIRequestToGigaChat("GigaChat", []byte(`{"messages":[{"role":"user","content":"hi"}],"temperature":0}`), false)
	require.NoError(t, err)
	assert.InDelta(t, minTemperature, gjson.GetBytes(out, "temperature").Float(), 1e-18)

	// Non-zero values pass through.
	out, err = ConvertOpenAIRequestToGigaChat("GigaChat", []byte(`{"messages":[{"role":"user","content":"hi"}],"temperature":0.7}`), false)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, gjson.GetBytes(out, "temperature").Float(), 1e-9)
}

func TestConvertRequestSamplingParameters(t *testing.T) {
	rawJSON := []byte(`{
		"messages": [{"role": "user", "content": "hi"}],
		"top_p": 0.9,
		"max_tokens": 256,
		"repetition_penalty": 1.1,
		"n": 3,
		"stop": ["\n"],
		"logprobs": true,
		"presence_penalty": 0.5
	}`)

	out, err := ConvertOpenAIRequestToGigaChat("GigaChat", rawJSON, true)
	require.NoError(t, err)

	root := gjson.ParseBytes(out)
	assert.True(t, root.Get("stream").Bool())
	assert.InDelta(t, 0.9, root.Get("top_p").Float(), 1e-9)
	assert.Equal(t, int64(256), root.Get("max_tokens").Int())
	assert.InDelta(t, 1.1, root.Get("repetition_penalty").Float(), 1e-9)
	assert.False(t, root.Get("n").Exists())
	assert.False(t, root.Get("stop").Exists())
	assert.False(t, root.Get("logprobs").Exists())
	assert.False(t, root.Get("presence_penalty").Exists())
}

func TestConvertRequestMaxCompletionTokens(t *testing.T) {
	rawJSON := []byte(`{"messages":[{"role":"user","content":"hi"}],"max_completion_tokens":128}`)
	out, err := ConvertOpenAIRequestToGigaChat("GigaChat", rawJSON, false)
	require.NoError(t, err)
	assert.Equal(t, int64(128), gjson.GetBytes(out, "max_tokens").Int())
}

func TestGenToolCallID(t *testing.T) {
	id := genToolCallID()
	assert.Len(t, id, len("call_")+24)
	assert.True(t, gjson.Valid(`"`+id+`"`))
	assert.NotEqual(t, id, genToolCallID())
}
