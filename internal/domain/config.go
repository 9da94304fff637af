package domain

import "time"

// Config mirrors ~/.notegen/config.yaml, the bootstrap configuration.
// Generation settings that change at runtime live in the settings table
// (see AISettings), not here.
type Config struct {
	ConfigFormatVersion string                      `yaml:"config_format_version" mapstructure:"config_format_version"`
	DataDir             string                      `yaml:"data_dir" mapstructure:"data_dir"`
	Log                 LogSettings                 `yaml:"log" mapstructure:"log"`
	Providers           map[string]ProviderEndpoint `yaml:"providers" mapstructure:"providers"`
	RequestTimeout      time.Duration               `yaml:"request_timeout" mapstructure:"request_timeout"`
	TestTimeout         time.Duration               `yaml:"test_timeout" mapstructure:"test_timeout"`
	TokenEstimation     bool                        `yaml:"token_estimation" mapstructure:"token_estimation"`
	History             HistorySettings             `yaml:"history" mapstructure:"history"`
}

// LogSettings configures the zerolog backend.
type LogSettings struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ProviderEndpoint overrides where a provider adapter sends requests.
type ProviderEndpoint struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// HistorySettings controls the audit log.
type HistorySettings struct {
	FallbackFile bool `yaml:"fallback_file" mapstructure:"fallback_file"`
}

// AISettings is the JSON document stored under SettingsKeyAI.
type AISettings struct {
	ActiveConfig ActiveConfig     `json:"activeConfig"`
	Thinking     ThinkingSettings `json:"thinking"`
	Temperature  float64          `json:"temperature"`
	MaxTokens    int              `json:"maxTokens"`
	Stream       bool             `json:"stream"`
}

// ThinkingSettings is the global thinking-chain display preference.
type ThinkingSettings struct {
	Enabled       bool `json:"enabled"`
	ShowByDefault bool `json:"showByDefault"`
}

// Settings table keys.
const (
	SettingsKeyAI           = "ai_settings"
	SettingsKeyAPIKeyPrefix = "api_key_"
	SettingsKeyModelPrefix  = "provider_model_"
)

// APIKeySettingsKey returns the settings key holding a provider credential.
func APIKeySettingsKey(id ProviderID) string {
	return SettingsKeyAPIKeyPrefix + string(id)
}

// ModelSettingsKey returns the settings key holding a provider's preferred model.
func ModelSettingsKey(id ProviderID) string {
	return SettingsKeyModelPrefix + string(id)
}
