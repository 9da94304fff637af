// Package domain defines core business entities and value objects for notegen.
//
// This file contains the provider catalogue and the uniform generation contract
// shared by every vendor adapter. The domain layer is independent of
// infrastructure concerns: no vendor SDK type appears here.
package domain

import "time"

// ProviderID identifies a vendor adapter. The set of valid values is closed;
// see KnownProviders.
type ProviderID string

const (
	ProviderOpenAI    ProviderID = "openai"
	ProviderDeepSeek  ProviderID = "deepseek"
	ProviderQwen      ProviderID = "qwen"
	ProviderAnthropic ProviderID = "anthropic"
	ProviderOllama    ProviderID = "ollama"
)

// KnownProviders lists every provider id in display order.
var KnownProviders = []ProviderID{
	ProviderOpenAI,
	ProviderDeepSeek,
	ProviderQwen,
	ProviderAnthropic,
	ProviderOllama,
}

// String implements fmt.Stringer.
func (p ProviderID) String() string {
	return string(p)
}

// Valid reports whether p is one of KnownProviders.
func (p ProviderID) Valid() bool {
	for _, known := range KnownProviders {
		if p == known {
			return true
		}
	}
	return false
}

// Callbacks is the uniform streaming contract between adapters, the
// orchestrator and callers.
//
// OnStream may fire zero or more times and always receives the cumulative text
// produced so far, never a delta. raw carries the vendor chunk as JSON (nil for
// non-streaming responses). OnUsage fires at most once. Exactly one of
// OnComplete or OnError fires last.
type Callbacks struct {
	OnStream   func(text string, raw []byte)
	OnUsage    func(usage TokenUsage)
	OnComplete func(content string)
	OnError    func(err error)
}

// GenerateOptions is the transient request accepted by the orchestrator.
// Nil pointer fields fall back to the persisted AI settings.
type GenerateOptions struct {
	NoteID      string
	Prompt      string
	Model       string
	Temperature *float64
	MaxTokens   *int
	Stream      *bool
	Callbacks   Callbacks
}

// TokenUsage reports token consumption for one attempt.
type TokenUsage struct {
	PromptTokens     int  `json:"prompt_tokens"`
	CompletionTokens int  `json:"completion_tokens"`
	TotalTokens      int  `json:"total_tokens"`
	Estimated        bool `json:"estimated,omitempty"`
}

// ActiveConfig is the single (provider, model) pair used for generation.
type ActiveConfig struct {
	Provider  ProviderID `json:"provider"`
	Model     string     `json:"model"`
	AppliedAt time.Time  `json:"appliedAt"`
}

// IsZero reports whether no configuration has been applied.
func (a ActiveConfig) IsZero() bool {
	return a.Provider == "" && a.Model == ""
}

// TestResult is the outcome of a configuration round-trip.
type TestResult struct {
	Provider ProviderID
	Model    string
	Success  bool
	// CallbackFired is true when the provider answered through any callback.
	CallbackFired bool
	Message       string
	Duration      time.Duration
}
