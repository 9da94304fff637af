package domain

import (
	"strings"
	"time"
)

// LegacyCredentialPrefix marks reversibly encoded API keys written before
// sealing existed. They can still be opened but are never produced.
const LegacyCredentialPrefix = "b64:"

// IsLegacyCredential reports whether an encrypted value predates sealing and
// should be rewritten.
func IsLegacyCredential(value string) bool {
	return strings.HasPrefix(value, LegacyCredentialPrefix)
}

// CredentialRecord is the persisted form of one provider API key.
// EncryptedValue is opaque; only the credential cipher can open it.
type CredentialRecord struct {
	Provider       ProviderID `json:"provider"`
	EncryptedValue string     `json:"encryptedValue"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// CredentialStatus summarizes a stored credential without exposing it.
type CredentialStatus struct {
	Provider   ProviderID
	Configured bool
	Valid      bool
	Masked     string
	UpdatedAt  time.Time
}
