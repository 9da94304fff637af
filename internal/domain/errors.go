package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable failure taxonomy surfaced to callers.
type ErrorKind string

const (
	ErrorValidation ErrorKind = "VALIDATION"
	ErrorNotFound   ErrorKind = "NOT_FOUND"
	ErrorNetwork    ErrorKind = "NETWORK"
	ErrorPermission ErrorKind = "PERMISSION"
	ErrorUnknown    ErrorKind = "UNKNOWN"
)

// Sentinel errors shared across layers.
var (
	ErrUnknownProvider   = errors.New("unknown provider")
	ErrMissingAPIKey     = errors.New("api key not configured")
	ErrInvalidAPIKey     = errors.New("api key format invalid")
	ErrEmptyPrompt       = errors.New("prompt is empty")
	ErrCipherUnavailable = errors.New("credential cipher unavailable")
	ErrNotFound          = errors.New("not found")
)

// RecoveryKind enumerates the recovery descriptors offered to callers.
type RecoveryKind string

const (
	RecoveryRetry       RecoveryKind = "retry"
	RecoverySwitchModel RecoveryKind = "switch_model"
	RecoveryReconfigure RecoveryKind = "reconfigure"
)

// RecoveryAction describes a recovery the caller may choose to run. It is
// never executed by the orchestrator.
type RecoveryAction struct {
	Kind  RecoveryKind `json:"kind"`
	Label string       `json:"label"`
}

// GenerationError is the normalized error produced at the orchestrator
// boundary. UserMessage never names the configured vendor.
type GenerationError struct {
	Kind             ErrorKind
	UserMessage      string
	TechnicalMessage string
	Recovery         []RecoveryAction
	Err              error
}

func (e *GenerationError) Error() string {
	if e.TechnicalMessage != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.TechnicalMessage)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.UserMessage)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ProviderError carries the transport status of a failed vendor call so the
// orchestrator can classify it without knowing the vendor SDK.
type ProviderError struct {
	Provider   ProviderID
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Message != "":
		return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s: HTTP %d", e.Provider, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
