// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the generation core and the
// adapters that implement it (vendor clients, SQLite stores, the credential
// cipher). The application layer depends only on these abstractions, never on
// a vendor SDK or a database driver.
//
// Key architectural concepts:
//   - Ports: Interfaces defined here (e.g., Provider, SettingsStore)
//   - Adapters: Concrete implementations in the infrastructure layer
//   - Dependency inversion: Application depends on abstractions, not implementations
package ports

import (
	"context"

	"github.com/doeshing/notegen/internal/domain"
)

// ConfigProvider loads the bootstrap configuration.
// Implementations typically read from ~/.notegen/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// Provider is the uniform generation contract every vendor adapter satisfies.
//
// GenerateContent either returns a non-nil error before invoking any callback,
// or fires exactly one of OnComplete/OnError after zero or more OnStream calls.
// Text passed to OnStream is cumulative.
type Provider interface {
	ID() domain.ProviderID
	GenerateContent(ctx context.Context, req ProviderRequest, cb domain.Callbacks) error
}

// ProviderRequest is the fully resolved request handed to an adapter.
type ProviderRequest struct {
	NoteID      string
	Prompt      string
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
	Stream      bool
	// Thinking asks adapters that gate reasoning output behind a request
	// flag to enable it.
	Thinking bool
}

// ProviderRegistry resolves provider ids to lazily constructed adapters.
type ProviderRegistry interface {
	IsValidProviderID(id string) bool
	LoadProvider(ctx context.Context, id domain.ProviderID) (Provider, error)
	ValidateAPIKey(id domain.ProviderID, key string) bool
	RequiresAPIKey(id domain.ProviderID) bool
	DefaultModel(id domain.ProviderID) string
	ProviderIDs() []domain.ProviderID
}

// SettingsStore is the generic string-keyed JSON table shared by the
// orchestrator and the credential store.
type SettingsStore interface {
	// Get returns the raw JSON value and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// HistoryStore persists one record per generation attempt.
type HistoryStore interface {
	Save(ctx context.Context, record domain.HistoryRecord) error
	Get(ctx context.Context, id string) (domain.HistoryRecord, error)
	List(ctx context.Context, query domain.HistoryQuery) ([]domain.HistoryRecord, error)
	Clear(ctx context.Context) error
	Path() string
}

// CredentialStore persists per-provider API keys.
type CredentialStore interface {
	SetAPIKey(ctx context.Context, id domain.ProviderID, key string) error
	// GetAPIKey returns domain.ErrMissingAPIKey when nothing is stored.
	GetAPIKey(ctx context.Context, id domain.ProviderID) (string, error)
	ClearAPIKey(ctx context.Context, id domain.ProviderID) error
	ValidateAPIKey(id domain.ProviderID, key string) bool
}

// Cipher seals credential values. aad binds a ciphertext to its owner.
type Cipher interface {
	Seal(plaintext, aad string) (string, error)
	Open(sealed, aad string) (string, error)
}

// TokenCounter estimates token usage when a provider reports none.
type TokenCounter interface {
	Count(model, text string) int
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (console, JSON, discard).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
