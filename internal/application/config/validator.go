package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/doeshing/notegen/internal/domain"
)

// Validate ensures config structure is consistent.
func Validate(cfg domain.Config) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir must be set")
	}
	if err := validateLog(cfg.Log); err != nil {
		return err
	}
	if err := validateProviders(cfg.Providers); err != nil {
		return err
	}
	if cfg.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must be >= 0")
	}
	if cfg.TestTimeout < 0 {
		return fmt.Errorf("test_timeout must be >= 0")
	}
	return nil
}

func validateLog(log domain.LogSettings) error {
	switch strings.ToLower(log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug|info|warn|error, got %s", log.Level)
	}
	switch strings.ToLower(log.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format must be console|json, got %s", log.Format)
	}
	return nil
}

func validateProviders(providers map[string]domain.ProviderEndpoint) error {
	for id, endpoint := range providers {
		if !domain.ProviderID(id).Valid() {
			return fmt.Errorf("providers.%s: %w", id, domain.ErrUnknownProvider)
		}
		if endpoint.BaseURL == "" {
			continue
		}
		u, err := url.Parse(endpoint.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("providers.%s.base_url invalid: %q", id, endpoint.BaseURL)
		}
	}
	return nil
}
