package domain

import "time"

// DefaultAISettings returns the settings used when nothing has been saved yet.
func DefaultAISettings() AISettings {
	return AISettings{
		Thinking: ThinkingSettings{
			Enabled:       true,
			ShowByDefault: false,
		},
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Stream:      true,
	}
}

// WithDefaults fills zero-valued generation parameters.
// It never touches ActiveConfig.
func (s AISettings) WithDefaults() AISettings {
	if s.Temperature <= 0 {
		s.Temperature = DefaultTemperature
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = DefaultMaxTokens
	}
	return s
}

// ResolveTemperature returns the per-request override or the saved default.
func (s AISettings) ResolveTemperature(override *float64) float64 {
	if override != nil {
		return *override
	}
	return s.WithDefaults().Temperature
}

// ResolveMaxTokens returns the per-request override or the saved default.
func (s AISettings) ResolveMaxTokens(override *int) int {
	if override != nil && *override > 0 {
		return *override
	}
	return s.WithDefaults().MaxTokens
}

// ResolveStream returns the per-request override or the saved default.
func (s AISettings) ResolveStream(override *bool) bool {
	if override != nil {
		return *override
	}
	return s.Stream
}

// BaseURL returns the configured endpoint override for a provider, or "".
func (c *Config) BaseURL(id ProviderID) string {
	if c.Providers == nil {
		return ""
	}
	return c.Providers[string(id)].BaseURL
}

// GetRequestTimeout returns the generation timeout with default fallback.
func (c *Config) GetRequestTimeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return DefaultRequestTimeout
	}
	return c.RequestTimeout
}

// GetTestTimeout returns the configuration-test timeout with default fallback.
func (c *Config) GetTestTimeout() time.Duration {
	if c.TestTimeout <= 0 {
		return DefaultModelTestTimeout
	}
	return c.TestTimeout
}

// GetLogLevel returns the configured log level, "info" when unset.
func (c *Config) GetLogLevel() string {
	if c.Log.Level == "" {
		return "info"
	}
	return c.Log.Level
}
