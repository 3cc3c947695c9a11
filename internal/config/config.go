// Package config provides configuration management for the gpt2giga proxy server.
// It handles loading and parsing YAML configuration files, applying environment
// variable overrides for the GigaChat credentials, and provides structured access
// to application settings including server port, backend endpoints, model aliases,
// and debug settings.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultAuthURL is the GigaChat OAuth token endpoint used when no
	// auth-url is configured.
	DefaultAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"

	// DefaultBaseURL is the GigaChat API base URL used when no base-url
	// is configured.
	DefaultBaseURL = "https://gigachat.devices.sberbank.ru/api/v1"

	// DefaultScope is the OAuth scope for personal GigaChat accounts.
	DefaultScope = "GIGACHAT_API_PERS"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Port is the network port on which the proxy server will listen.
	Port int `yaml:"port"`

	// Debug enables or disables debug-level logging and other debug features.
	Debug bool `yaml:"debug"`

	// LoggingToFile routes log output to rotating files instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file"`

	// ProxyURL is the URL of an optional proxy server to use for outbound requests.
	ProxyURL string `yaml:"proxy-url"`

	// APIKeys is a list of keys for authenticating clients to this proxy server.
	// When empty, all clients are accepted.
	APIKeys []string `yaml:"api-keys"`

	// RequestLog enables or disables detailed request logging functionality.
	RequestLog bool `yaml:"request-log"`

	// GigaChat holds the backend connection and credential settings.
	GigaChat GigaChat `yaml:"gigachat"`

	// Models defines model alias configurations routing OpenAI model names
	// to GigaChat model names.
	Models []ModelAlias `yaml:"models"`
}

// GigaChat represents the configuration for the GigaChat backend,
// including the OAuth credentials and API endpoints.
type GigaChat struct {
	// AuthKey is the base64-encoded client credential sent as the Basic
	// authorization to the OAuth endpoint. Overridden by GIGACHAT_AUTH_KEY.
	AuthKey string `yaml:"auth-key"`

	// Scope is the OAuth scope (GIGACHAT_API_PERS, GIGACHAT_API_B2B or
	// GIGACHAT_API_CORP). Overridden by GIGACHAT_SCOPE.
	Scope string `yaml:"scope"`

	// AuthURL is the OAuth token endpoint. If empty, the default Sber
	// endpoint will be used.
	AuthURL string `yaml:"auth-url"`

	// BaseURL is the base URL for the GigaChat API endpoint. If empty,
	// the default GigaChat API URL will be used.
	BaseURL string `yaml:"base-url"`

	// DefaultModel is the GigaChat model used when a requested model has
	// no alias and is not itself a GigaChat model.
	DefaultModel string `yaml:"default-model"`

	// InsecureSkipVerify disables TLS certificate verification for outbound
	// requests. The Sber CA is not present in common trust stores.
	InsecureSkipVerify bool `yaml:"insecure-skip-verify"`

	// ProfanityCheck enables the backend's profanity filter.
	ProfanityCheck bool `yaml:"profanity-check"`
}

// ModelAlias represents a model alias configuration, routing a client-facing
// model name to the actual GigaChat model name.
type ModelAlias struct {
	// Name is the actual GigaChat model name.
	Name string `yaml:"name"`

	// Alias is the model name clients use to reference this model.
	Alias string `yaml:"alias"`
}

// LoadConfig reads a YAML configuration file from the given path,
// unmarshals it into a Config struct, applies environment variable
// overrides and defaults, and returns it.
//
// Parameters:
//   - configFile: The path to the YAML configuration file
//
// Returns:
//   - *Config: The loaded configuration
//   - error: An error if the configuration could not be loaded
func LoadConfig(configFile string) (*Config, error) {
	// Read the entire configuration file into memory.
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal the YAML data into the Config struct.
	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()

	return &config, nil
}

// ApplyDefaults fills in environment variable overrides and default values
// for fields the YAML file left empty.
func (c *Config) ApplyDefaults() {
	if v := os.Getenv("GIGACHAT_AUTH_KEY"); v != "" {
		c.GigaChat.AuthKey = v
	}
	if v := os.Getenv("GIGACHAT_SCOPE"); v != "" {
		c.GigaChat.Scope = v
	}
	if c.GigaChat.Scope == "" {
		c.GigaChat.Scope = DefaultScope
	}
	if c.GigaChat.AuthURL == "" {
		c.GigaChat.AuthURL = DefaultAuthURL
	}
	if c.GigaChat.BaseURL == "" {
		c.GigaChat.BaseURL = DefaultBaseURL
	}
	if c.GigaChat.DefaultModel == "" {
		c.GigaChat.DefaultModel = "GigaChat"
	}
	if c.Port == 0 {
		c.Port = 8090
	}
}

// ResolveModel maps a client-facing model name to the GigaChat model that
// should serve it. Alias entries win; names the backend already understands
// pass through; anything else falls back to the default model, mirroring the
// behavior of pointing an OpenAI SDK at this proxy with an arbitrary gpt-*
// model name.
func (c *Config) ResolveModel(modelName string) string {
	for _, alias := range c.Models {
		if alias.Alias == modelName {
			return alias.Name
		}
	}
	if strings.HasPrefix(modelName, "GigaChat") {
		return modelName
	}
	return c.GigaChat.DefaultModel
}
