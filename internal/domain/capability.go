package domain

import "strings"

// CapabilityRule lists model-name fragments known to emit reasoning output.
type CapabilityRule struct {
	Provider ProviderID
	Keywords []string
}

// ThinkingCapabilities is the static allow-list behind SupportsThinking.
var ThinkingCapabilities = []CapabilityRule{
	{Provider: ProviderOpenAI, Keywords: []string{"o1", "o3", "o4", "gpt-5"}},
	{Provider: ProviderDeepSeek, Keywords: []string{"reasoner", "r1"}},
	{Provider: ProviderQwen, Keywords: []string{"qwq", "qwen3", "thinking"}},
	{Provider: ProviderAnthropic, Keywords: []string{"claude-3-7", "claude-sonnet-4", "claude-opus-4", "claude-4"}},
	{Provider: ProviderOllama, Keywords: []string{"deepseek-r1", "qwq", "qwen3", "gpt-oss", "magistral"}},
}

// SupportsThinking reports whether model is expected to produce a thinking
// chain. It is advisory only.
func SupportsThinking(provider ProviderID, model string) bool {
	model = strings.ToLower(model)
	for _, rule := range ThinkingCapabilities {
		if rule.Provider != provider {
			continue
		}
		for _, kw := range rule.Keywords {
			if strings.Contains(model, kw) {
				return true
			}
		}
	}
	return false
}
