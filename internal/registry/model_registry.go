// Package registry provides the GigaChat model catalog exposed through the
// OpenAI-compatible /v1/models endpoint, including any aliases configured for
// routing OpenAI model names onto GigaChat models.
package registry

import (
	"time"

	"github.com/gpt2giga/gpt2giga/internal/config"
)

// ModelInfo describes one model entry in OpenAI list format.
type ModelInfo struct {
	ID          string `json:"id"`
	Object      string `json:"object"`
	Created     int64  `json:"created"`
	OwnedBy     string `json:"owned_by"`
	DisplayName string `json:"display_name,omitempty"`
}

// GetGigaChatModels returns the standard GigaChat model definitions.
func GetGigaChatModels() []*ModelInfo {
	created := time.Now().Unix()
	return []*ModelInfo{
		{
			ID:          "GigaChat",
			Object:      "model",
			Created:     created,
			OwnedBy:     "salutedevices",
			DisplayName: "GigaChat Lite",
		},
		{
			ID:          "GigaChat-Pro",
			Object:      "model",
			Created:     created,
			OwnedBy:     "salutedevices",
			DisplayName: "GigaChat Pro",
		},
		{
			ID:          "GigaChat-Max",
			Object:      "model",
			Created:     created,
			OwnedBy:     "salutedevices",
			DisplayName: "GigaChat Max",
		},
	}
}

// GetAvailableModels returns the catalog plus the configured aliases in
// OpenAI list-entry format.
func GetAvailableModels(cfg *config.Config) []map[string]any {
	models := make([]map[string]any, 0)
	for _, model := range GetGigaChatModels() {
		models = append(models, map[string]any{
			"id":           model.ID,
			"object":       model.Object,
			"created":      model.Created,
			"owned_by":     model.OwnedBy,
			"display_name": model.DisplayName,
		})
	}
	for _, alias := range cfg.Models {
		models = append(models, map[string]any{
			"id":           alias.Alias,
			"object":       "model",
			"created":      time.Now().Unix(),
			"owned_by":     "salutedevices",
			"display_name": alias.Name,
		})
	}
	return models
}
