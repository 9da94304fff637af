// Package credentials stores provider API keys sealed in the settings table.
package credentials

import (
	"context"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/ports"
)

// KeyValidator is the slice of the provider registry the manager needs.
type KeyValidator interface {
	ValidateAPIKey(id domain.ProviderID, key string) bool
}

// Manager implements ports.CredentialStore.
type Manager struct {
	settings  ports.SettingsStore
	cipher    ports.Cipher
	validator KeyValidator
	logger    ports.Logger
	now       func() time.Time
}

// NewManager wires a credential manager. A nil cipher makes every write fail.
func NewManager(settings ports.SettingsStore, cipher ports.Cipher, validator KeyValidator, logger ports.Logger) *Manager {
	return &Manager{
		settings:  settings,
		cipher:    cipher,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// SetAPIKey seals key and stores it under api_key_<id>.
func (m *Manager) SetAPIKey(ctx context.Context, id domain.ProviderID, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrMissingAPIKey
	}
	if m.cipher == nil {
		return domain.ErrCipherUnavailable
	}
	sealed, err := m.cipher.Seal(key, string(id))
	if err != nil {
		return fmt.Errorf("seal %s key: %w", id, err)
	}

	now := m.now().UTC()
	record := domain.CredentialRecord{
		Provider:       id,
		EncryptedValue: sealed,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if existing, ok, err := m.record(ctx, id); err == nil && ok && !existing.CreatedAt.IsZero() {
		record.CreatedAt = existing.CreatedAt
	}
	if err := m.put(ctx, record); err != nil {
		return err
	}
	m.info("api key stored", map[string]interface{}{"provider": string(id)})
	return nil
}

// GetAPIKey returns the plaintext key, or domain.ErrMissingAPIKey.
// Legacy encoded values are re-sealed on read.
func (m *Manager) GetAPIKey(ctx context.Context, id domain.ProviderID) (string, error) {
	record, ok, err := m.record(ctx, id)
	if err != nil {
		return "", err
	}
	if !ok || record.EncryptedValue == "" {
		return "", domain.ErrMissingAPIKey
	}
	if m.cipher == nil {
		return "", domain.ErrCipherUnavailable
	}
	key, err := m.cipher.Open(record.EncryptedValue, string(id))
	if err != nil {
		return "", fmt.Errorf("open %s key: %w", id, err)
	}

	if domain.IsLegacyCredential(record.EncryptedValue) {
		if sealed, err := m.cipher.Seal(key, string(id)); err == nil {
			record.EncryptedValue = sealed
			record.UpdatedAt = m.now().UTC()
			if err := m.put(ctx, record); err != nil && m.logger != nil {
				m.logger.Warn("re-seal legacy api key failed", map[string]interface{}{"provider": string(id), "error": err.Error()})
			}
		}
	}
	return key, nil
}

// ClearAPIKey removes a stored key. Clearing a missing key is not an error.
func (m *Manager) ClearAPIKey(ctx context.Context, id domain.ProviderID) error {
	if err := m.settings.Delete(ctx, domain.APIKeySettingsKey(id)); err != nil {
		return fmt.Errorf("clear %s key: %w", id, err)
	}
	m.info("api key cleared", map[string]interface{}{"provider": string(id)})
	return nil
}

// ValidateAPIKey checks key format with the registry heuristics.
func (m *Manager) ValidateAPIKey(id domain.ProviderID, key string) bool {
	if m.validator == nil {
		return len(key) > 20
	}
	return m.validator.ValidateAPIKey(id, key)
}

// Status reports every provider's credential state without revealing keys.
func (m *Manager) Status(ctx context.Context, ids []domain.ProviderID) ([]domain.CredentialStatus, error) {
	out := make([]domain.CredentialStatus, 0, len(ids))
	for _, id := range ids {
		status := domain.CredentialStatus{Provider: id}
		record, ok, err := m.record(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			status.UpdatedAt = record.UpdatedAt
			if key, err := m.GetAPIKey(ctx, id); err == nil {
				status.Configured = true
				status.Valid = m.ValidateAPIKey(id, key)
				status.Masked = Mask(key)
			}
		}
		out = append(out, status)
	}
	return out, nil
}

// Mask keeps the first and last four characters of key.
func Mask(key string) string {
	runes := []rune(key)
	if len(runes) <= 8 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:4]) + strings.Repeat("*", len(runes)-8) + string(runes[len(runes)-4:])
}

func (m *Manager) record(ctx context.Context, id domain.ProviderID) (domain.CredentialRecord, bool, error) {
	raw, ok, err := m.settings.Get(ctx, domain.APIKeySettingsKey(id))
	if err != nil || !ok {
		return domain.CredentialRecord{}, false, err
	}
	var record domain.CredentialRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		// older builds stored a bare JSON string
		var value string
		if json.Unmarshal(raw, &value) != nil {
			return domain.CredentialRecord{}, false, fmt.Errorf("decode %s key: %w", id, err)
		}
		record = domain.CredentialRecord{Provider: id, EncryptedValue: value}
	}
	return record, true, nil
}

func (m *Manager) put(ctx context.Context, record domain.CredentialRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := m.settings.Set(ctx, domain.APIKeySettingsKey(record.Provider), data); err != nil {
		return fmt.Errorf("store %s key: %w", record.Provider, err)
	}
	return nil
}

func (m *Manager) info(msg string, fields map[string]interface{}) {
	if m.logger != nil {
		m.logger.Info(msg, fields)
	}
}

var _ ports.CredentialStore = (*Manager)(nil)
