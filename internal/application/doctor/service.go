package doctor

import (
	"context"
	"fmt"

	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/ports"
)

// ActiveConfig exposes the committed provider configuration.
type ActiveConfig interface {
	CurrentProvider() domain.ProviderID
	CurrentModel() string
}

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider ports.ConfigProvider
	Registry       ports.ProviderRegistry
	Credentials    ports.CredentialStore
	Settings       ports.SettingsStore
	History        ports.HistoryStore
	Active         ActiveConfig
	// CipherErr is the error hit while loading the master key, if any.
	CipherErr error
}

// Run executes checks and returns a report.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	checks = append(checks, ok("Config file", fmt.Sprintf("format %s, data dir %s", cfg.ConfigFormatVersion, cfg.DataDir)))

	if s.Settings != nil {
		if _, _, err := s.Settings.Get(ctx, domain.SettingsKeyAI); err != nil {
			checks = append(checks, fail("Settings store", err.Error()))
		} else {
			checks = append(checks, ok("Settings store", "readable"))
		}
	}

	if s.History != nil {
		if _, err := s.History.List(ctx, domain.HistoryQuery{Limit: 1}); err != nil {
			checks = append(checks, fail("History store", err.Error()))
		} else {
			checks = append(checks, ok("History store", s.History.Path()))
		}
	}

	if s.CipherErr != nil {
		checks = append(checks, fail("Credential cipher", s.CipherErr.Error()))
	} else {
		checks = append(checks, ok("Credential cipher", "master key loaded"))
	}

	if s.Active != nil && s.Registry != nil {
		checks = append(checks, s.activeCheck(ctx)...)
	}

	return domain.HealthReport{Checks: checks}, nil
}

func (s *Service) activeCheck(ctx context.Context) []domain.HealthCheck {
	provider, model := s.Active.CurrentProvider(), s.Active.CurrentModel()
	if provider == "" {
		return []domain.HealthCheck{warn("Active configuration", "none applied; run `notegen config apply`")}
	}
	checks := []domain.HealthCheck{ok("Active configuration", fmt.Sprintf("%s / %s", provider, model))}

	if s.Registry.RequiresAPIKey(provider) && s.Credentials != nil {
		key, err := s.Credentials.GetAPIKey(ctx, provider)
		switch {
		case err != nil:
			checks = append(checks, fail("API key", fmt.Sprintf("%s: %v", provider, err)))
		case !s.Registry.ValidateAPIKey(provider, key):
			checks = append(checks, warn("API key", fmt.Sprintf("%s key has an unexpected format", provider)))
		default:
			checks = append(checks, ok("API key", fmt.Sprintf("%s configured", provider)))
		}
	} else {
		checks = append(checks, ok("API key", fmt.Sprintf("%s does not require one", provider)))
	}

	if domain.SupportsThinking(provider, model) {
		checks = append(checks, ok("Thinking chain", "model is expected to emit reasoning"))
	} else {
		checks = append(checks, warn("Thinking chain", "model is not on the reasoning allow-list"))
	}
	return checks
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
