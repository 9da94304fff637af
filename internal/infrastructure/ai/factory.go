package ai

import (
	"context"
	"net/http"
	"strings"

	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/ports"
)

// ProviderSpec describes one entry of the provider catalogue.
type ProviderSpec struct {
	DefaultModel string
	// KeyOptional marks providers that run without credentials.
	KeyOptional bool
	ValidateKey func(key string) bool
	New         func(ctx context.Context) (ports.Provider, error)
}

// Default endpoints, overridable per provider in config.yaml.
const (
	DefaultOpenAIBaseURL    = "https://api.openai.com/v1"
	DefaultDeepSeekBaseURL  = "https://api.deepseek.com/v1"
	DefaultQwenBaseURL      = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	DefaultAnthropicBaseURL = "https://api.anthropic.com"
	DefaultOllamaBaseURL    = "http://localhost:11434"
)

// minKeyLength is the shortest accepted hosted-provider key, exclusive.
const minKeyLength = 20

// DefaultSpecs returns the built-in catalogue wired to cfg's endpoints.
func DefaultSpecs(cfg domain.Config, client *http.Client) map[domain.ProviderID]ProviderSpec {
	if client == nil {
		client = &http.Client{}
	}
	return map[domain.ProviderID]ProviderSpec{
		domain.ProviderOpenAI: {
			DefaultModel: "gpt-4o-mini",
			ValidateKey:  prefixedKey("sk-"),
			New: func(context.Context) (ports.Provider, error) {
				return newOpenAICompatProvider(domain.ProviderOpenAI, valueOrDefault(cfg.BaseURL(domain.ProviderOpenAI), DefaultOpenAIBaseURL), client), nil
			},
		},
		domain.ProviderDeepSeek: {
			DefaultModel: "deepseek-chat",
			ValidateKey:  prefixedKey("sk-"),
			New: func(context.Context) (ports.Provider, error) {
				return newOpenAICompatProvider(domain.ProviderDeepSeek, valueOrDefault(cfg.BaseURL(domain.ProviderDeepSeek), DefaultDeepSeekBaseURL), client), nil
			},
		},
		domain.ProviderQwen: {
			DefaultModel: "qwen-plus",
			ValidateKey:  prefixedKey("sk-"),
			New: func(context.Context) (ports.Provider, error) {
				return newOpenAICompatProvider(domain.ProviderQwen, valueOrDefault(cfg.BaseURL(domain.ProviderQwen), DefaultQwenBaseURL), client), nil
			},
		},
		domain.ProviderAnthropic: {
			DefaultModel: "claude-3-7-sonnet-20250219",
			ValidateKey:  prefixedKey("sk-ant-"),
			New: func(context.Context) (ports.Provider, error) {
				return newAnthropicProvider(valueOrDefault(cfg.BaseURL(domain.ProviderAnthropic), DefaultAnthropicBaseURL), client), nil
			},
		},
		domain.ProviderOllama: {
			DefaultModel: "llama3.2",
			KeyOptional:  true,
			ValidateKey: func(key string) bool {
				return strings.TrimSpace(key) != ""
			},
			New: func(context.Context) (ports.Provider, error) {
				return newOllamaProvider(valueOrDefault(cfg.BaseURL(domain.ProviderOllama), DefaultOllamaBaseURL), client)
			},
		},
	}
}

func prefixedKey(prefix string) func(string) bool {
	return func(key string) bool {
		return strings.HasPrefix(key, prefix) && len(key) > minKeyLength
	}
}

// fallbackKeyCheck applies to ids missing from the catalogue.
func fallbackKeyCheck(key string) bool {
	return len(key) > minKeyLength
}
