package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogRequestDisabled(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger := NewFileRequestLogger(false, dir)

	err := logger.LogRequest("/v1/chat/completions", "POST", nil, []byte("{}"), 200, []byte("{}"), nil, nil)
	require.NoError(t, err)

	// Disabled logging must not touch the filesystem.
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestLogRequest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger := NewFileRequestLogger(true, dir)

	err := logger.LogRequest(
		"/v1/chat/completions?key=secret", "POST",
		map[string][]string{"Content-Type": {"application/json"}},
		[]byte(`{"model":"gpt-4o"}`),
		200,
		[]byte(`{"id":"chatcmpl-1"}`),
		[]byte(`{"model":"GigaChat"}`),
		[]byte(`{"choices":[]}`),
	)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "v1-chat-completions")

	content, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(content), "=== API REQUEST ===")
	assert.Contains(t, string(content), `{"model":"GigaChat"}`)
	assert.Contains(t, string(content), "Status: 200")
}

func TestSetEnabled(t *testing.T) {
	logger := NewFileRequestLogger(false, t.TempDir())
	assert.False(t, logger.IsEnabled())
	logger.SetEnabled(true)
	assert.True(t, logger.IsEnabled())
}

func TestStreamingLogWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger := NewFileRequestLogger(true, dir)

	writer, err := logger.LogStreamingRequest("/v1/chat/completions", "POST", nil, []byte(`{"stream":true}`))
	require.NoError(t, err)

	writer.WriteChunkAsync([]byte(`data: {"id":"chatcmpl-1"}`))
	writer.WriteChunkAsync([]byte(`data: [DONE]`))
	require.NoError(t, writer.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	content, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(content), `data: {"id":"chatcmpl-1"}`)
	assert.Contains(t, string(content), "data: [DONE]")
}

func TestStreamingLogWriterDisabled(t *testing.T) {
	logger := NewFileRequestLogger(false, t.TempDir())
	writer, err := logger.LogStreamingRequest("/v1/chat/completions", "POST", nil, nil)
	require.NoError(t, err)
	writer.WriteChunkAsync([]byte("chunk"))
	assert.NoError(t, writer.Close())
}
