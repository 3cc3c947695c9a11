package registry

import (
	"testing"

	"github.com/gpt2giga/gpt2giga/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetGigaChatModels(t *testing.T) {
	models := GetGigaChatModels()
	require.Len(t, models, 3)

	ids := make([]string, 0, len(models))
	for _, model := range models {
		assert.Equal(t, "model", model.Object)
		assert.Equal(t, "salutedevices", model.OwnedBy)
		ids = append(ids, model.ID)
	}
	assert.Equal(t, []string{"GigaChat", "GigaChat-Pro", "GigaChat-Max"}, ids)
}

func TestGetAvailableModelsIncludesAliases(t *testing.T) {
	cfg := &config.Config{Models: []config.ModelAlias{
		{Name: "GigaChat-Max", Alias: "gpt-4o"},
		{Name: "GigaChat", Alias: "gpt-3.5-turbo"},
	}}

	models := GetAvailableModels(cfg)
	require.Len(t, models, 5)
	assert.Equal(t, "GigaChat Lite", models[0]["display_name"])
	assert.Equal(t, "gpt-4o", models[3]["id"])
	// Alias entries surface the model they route to.
	assert.Equal(t, "GigaChat-Max", models[3]["display_name"])
	assert.Equal(t, "gpt-3.5-turbo", models[4]["id"])
	assert.Equal(t, "GigaChat", models[4]["display_name"])
}
