package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
port: 9000
debug: true
api-keys:
  - "sk-test"
gigachat:
  auth-key: "a2V5"
  default-model: "GigaChat-Pro"
models:
  - name: "GigaChat-Max"
    alias: "gpt-4o"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"sk-test"}, cfg.APIKeys)
	assert.Equal(t, "a2V5", cfg.GigaChat.AuthKey)
	assert.Equal(t, "GigaChat-Pro", cfg.GigaChat.DefaultModel)
	assert.Equal(t, DefaultAuthURL, cfg.GigaChat.AuthURL)
	assert.Equal(t, DefaultBaseURL, cfg.GigaChat.BaseURL)
	assert.Equal(t, DefaultScope, cfg.GigaChat.Scope)
	require.Len(t, cfg.Models, 1)
	assert.Equal(t, "gpt-4o", cfg.Models[0].Alias)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApplyDefaultsEmptyConfig(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, 8090, cfg.Port)
	assert.Equal(t, "GigaChat", cfg.GigaChat.DefaultModel)
	assert.Equal(t, DefaultAuthURL, cfg.GigaChat.AuthURL)
	assert.Equal(t, DefaultBaseURL, cfg.GigaChat.BaseURL)
	assert.Equal(t, DefaultScope, cfg.GigaChat.Scope)
}

func TestApplyDefaultsEnvOverrides(t *testing.T) {
	t.Setenv("GIGACHAT_AUTH_KEY", "env-key")
	t.Setenv("GIGACHAT_SCOPE", "GIGACHAT_API_CORP")

	cfg := &Config{GigaChat: GigaChat{AuthKey: "file-key", Scope: "GIGACHAT_API_PERS"}}
	cfg.ApplyDefaults()

	assert.Equal(t, "env-key", cfg.GigaChat.AuthKey)
	assert.Equal(t, "GIGACHAT_API_CORP", cfg.GigaChat.Scope)
}

func TestResolveModel(t *testing.T) {
	cfg := &Config{
		GigaChat: GigaChat{DefaultModel: "GigaChat"},
		Models: []ModelAlias{
			{Name: "GigaChat-Max", Alias: "gpt-4o"},
		},
	}

	assert.Equal(t, "GigaChat-Max", cfg.ResolveModel("gpt-4o"))
	assert.Equal(t, "GigaChat-Pro", cfg.ResolveModel("GigaChat-Pro"))
	assert.Equal(t, "GigaChat", cfg.ResolveModel("gpt-3.5-turbo"))
	assert.Equal(t, "GigaChat", cfg.ResolveModel(""))
}
