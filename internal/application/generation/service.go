// Package generation orchestrates note generation: it owns the active
// provider configuration, resolves providers and credentials, wraps the
// streaming callbacks and records one history entry per attempt.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/ports"
)

// Deps are the collaborators of Service. Tokens is optional.
type Deps struct {
	Config      domain.Config
	Registry    ports.ProviderRegistry
	Credentials ports.CredentialStore
	Settings    ports.SettingsStore
	History     ports.HistoryStore
	Tokens      ports.TokenCounter
	Logger      ports.Logger
}

// Service is the generation orchestrator.
type Service struct {
	cfg         domain.Config
	registry    ports.ProviderRegistry
	credentials ports.CredentialStore
	settings    ports.SettingsStore
	history     ports.HistoryStore
	tokens      ports.TokenCounter
	logger      ports.Logger

	now   func() time.Time
	newID func() string

	mu      sync.RWMutex
	current domain.AISettings
}

// NewService validates deps and returns a Service holding default settings.
// Call Load to read persisted settings.
func NewService(deps Deps) (*Service, error) {
	if deps.Registry == nil || deps.Credentials == nil || deps.Settings == nil ||
		deps.History == nil || deps.Logger == nil {
		return nil, errors.New("generation.Service dependencies not satisfied")
	}
	return &Service{
		cfg:         deps.Config,
		registry:    deps.Registry,
		credentials: deps.Credentials,
		settings:    deps.Settings,
		history:     deps.History,
		tokens:      deps.Tokens,
		logger:      deps.Logger,
		now:         time.Now,
		newID:       newRecordID,
		current:     domain.DefaultAISettings(),
	}, nil
}

func newRecordID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// Load reads ai_settings, migrating the legacy flat shape and saving the
// result straight back. Missing models are defaulted, not validated.
func (s *Service) Load(ctx context.Context) error {
	raw, ok, err := s.settings.Get(ctx, domain.SettingsKeyAI)
	if err != nil {
		return fmt.Errorf("load ai settings: %w", err)
	}
	loaded := domain.DefaultAISettings()
	if ok {
		migrated, changed, err := MigrateSettings(raw)
		if err != nil {
			return fmt.Errorf("migrate ai settings: %w", err)
		}
		if err := json.Unmarshal(migrated, &loaded); err != nil {
			return fmt.Errorf("decode ai settings: %w", err)
		}
		if changed {
			if err := s.settings.Set(ctx, domain.SettingsKeyAI, migrated); err != nil {
				return fmt.Errorf("save migrated ai settings: %w", err)
			}
			s.logger.Info("migrated legacy ai settings", nil)
		}
	}
	loaded = loaded.WithDefaults()

	active := &loaded.ActiveConfig
	if active.Provider != "" && active.Model == "" {
		active.Model = s.preferredModel(ctx, active.Provider)
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()
	return nil
}

func (s *Service) preferredModel(ctx context.Context, id domain.ProviderID) string {
	if raw, ok, err := s.settings.Get(ctx, domain.ModelSettingsKey(id)); err == nil && ok {
		var model string
		if json.Unmarshal(raw, &model) == nil && model != "" {
			return model
		}
	}
	return s.registry.DefaultModel(id)
}

// Settings returns a copy of the current AI settings.
func (s *Service) Settings() domain.AISettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// CurrentProvider returns the active provider id.
func (s *Service) CurrentProvider() domain.ProviderID {
	return s.Settings().ActiveConfig.Provider
}

// CurrentModel returns the active model.
func (s *Service) CurrentModel() string {
	return s.Settings().ActiveConfig.Model
}

// SupportsThinking reports whether the model is on the thinking allow-list.
func (s *Service) SupportsThinking(provider domain.ProviderID, model string) bool {
	return domain.SupportsThinking(provider, model)
}

// UpdateSettings persists generation defaults. ActiveConfig is left alone.
func (s *Service) UpdateSettings(ctx context.Context, fn func(*domain.AISettings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.current
	fn(&next)
	next.ActiveConfig = s.current.ActiveConfig
	if err := s.saveSettings(ctx, next); err != nil {
		return err
	}
	s.current = next
	return nil
}

// ApplyConfiguration commits the active provider and model. It is the only
// way ActiveConfig changes.
func (s *Service) ApplyConfiguration(ctx context.Context, provider domain.ProviderID, model string) error {
	if !s.registry.IsValidProviderID(string(provider)) {
		return NewError(domain.ErrorNotFound, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, provider))
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = s.registry.DefaultModel(provider)
	}

	modelJSON, err := json.Marshal(model)
	if err != nil {
		return err
	}
	if err := s.settings.Set(ctx, domain.ModelSettingsKey(provider), modelJSON); err != nil {
		return fmt.Errorf("save preferred model: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.current
	next.ActiveConfig = domain.ActiveConfig{
		Provider:  provider,
		Model:     model,
		AppliedAt: s.now().UTC(),
	}
	if err := s.saveSettings(ctx, next); err != nil {
		return err
	}
	s.current = next
	s.logger.Info("configuration applied", map[string]interface{}{
		"provider": string(provider),
		"model":    model,
	})
	return nil
}

func (s *Service) saveSettings(ctx context.Context, settings domain.AISettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	if err := s.settings.Set(ctx, domain.SettingsKeyAI, data); err != nil {
		return fmt.Errorf("save ai settings: %w", err)
	}
	return nil
}

// TestConfiguration performs one round-trip with the exact provider and
// model. A non-empty apiKey is stored before the call and stays stored if
// the call fails. ActiveConfig is never touched.
func (s *Service) TestConfiguration(ctx context.Context, provider domain.ProviderID, model, apiKey string) (domain.TestResult, error) {
	start := s.now()
	result := domain.TestResult{Provider: provider, Model: model}
	fail := func(gerr *domain.GenerationError) (domain.TestResult, error) {
		result.Message = gerr.UserMessage
		result.Duration = s.now().Sub(start)
		return result, gerr
	}

	if !s.registry.IsValidProviderID(string(provider)) {
		return fail(NewError(domain.ErrorNotFound, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, provider)))
	}
	if result.Model == "" {
		result.Model = s.registry.DefaultModel(provider)
	}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey != "" {
		if !s.registry.ValidateAPIKey(provider, apiKey) {
			return fail(NewError(domain.ErrorValidation, domain.ErrInvalidAPIKey))
		}
		if err := s.credentials.SetAPIKey(ctx, provider, apiKey); err != nil {
			return fail(Classify(err))
		}
	} else {
		key, err := s.resolveKey(ctx, provider)
		if err != nil {
			return fail(NewError(domain.ErrorValidation, err))
		}
		apiKey = key
	}

	p, err := s.registry.LoadProvider(ctx, provider)
	if err != nil {
		return fail(NewError(domain.ErrorNotFound, err))
	}

	tctx, cancel := context.WithTimeout(ctx, s.cfg.GetTestTimeout())
	defer cancel()

	var (
		mu       sync.Mutex
		fired    bool
		complete bool
		cbErr    error
	)
	mark := func() {
		mu.Lock()
		fired = true
		mu.Unlock()
	}
	err = p.GenerateContent(tctx, ports.ProviderRequest{
		Prompt:      domain.TestPrompt,
		Model:       result.Model,
		APIKey:      apiKey,
		Temperature: s.Settings().ResolveTemperature(nil),
		MaxTokens:   domain.TestMaxTokens,
		Stream:      false,
	}, domain.Callbacks{
		OnStream: func(string, []byte) { mark() },
		OnUsage:  func(domain.TokenUsage) { mark() },
		OnComplete: func(string) {
			mu.Lock()
			fired, complete = true, true
			mu.Unlock()
		},
		OnError: func(e error) {
			mu.Lock()
			fired, cbErr = true, e
			mu.Unlock()
		},
	})

	mu.Lock()
	result.CallbackFired = fired
	success := complete && cbErr == nil && err == nil
	if err == nil {
		err = cbErr
	}
	mu.Unlock()

	if !success {
		if err == nil {
			err = errors.New("provider returned without a result")
		}
		gerr := Classify(err)
		s.logger.Warn("configuration test failed", map[string]interface{}{
			"provider": string(provider),
			"model":    result.Model,
			"kind":     string(gerr.Kind),
			"error":    gerr.TechnicalMessage,
		})
		return fail(gerr)
	}
	result.Success = true
	result.Message = "Configuration works."
	result.Duration = s.now().Sub(start)
	return result, nil
}

// resolveKey returns the stored key, or "" for providers that run without one.
func (s *Service) resolveKey(ctx context.Context, provider domain.ProviderID) (string, error) {
	key, err := s.credentials.GetAPIKey(ctx, provider)
	if err == nil {
		return key, nil
	}
	if !s.registry.RequiresAPIKey(provider) {
		return "", nil
	}
	return "", err
}
