package config

import (
	"testing"
	"time"

	"github.com/doeshing/notegen/internal/domain"
)

func validConfig() domain.Config {
	return domain.Config{
		DataDir: "/tmp/notegen",
		Log:     domain.LogSettings{Level: "info", Format: "console"},
		Providers: map[string]domain.ProviderEndpoint{
			"openai": {},
			"ollama": {BaseURL: "http://localhost:11434"},
		},
		RequestTimeout: time.Minute,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.Config)
		wantErr bool
	}{
		{"valid", func(*domain.Config) {}, false},
		{"missing data dir", func(c *domain.Config) { c.DataDir = "" }, true},
		{"bad level", func(c *domain.Config) { c.Log.Level = "trace" }, true},
		{"bad format", func(c *domain.Config) { c.Log.Format = "xml" }, true},
		{"unknown provider", func(c *domain.Config) { c.Providers["mistral"] = domain.ProviderEndpoint{} }, true},
		{"relative url", func(c *domain.Config) { c.Providers["openai"] = domain.ProviderEndpoint{BaseURL: "api/v1"} }, true},
		{"negative timeout", func(c *domain.Config) { c.TestTimeout = -time.Second }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
