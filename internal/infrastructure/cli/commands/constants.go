package commands

import (
	"errors"

	"github.com/doeshing/notegen/internal/domain"
)

// Display constants
const (
	DefaultHistoryLimit = domain.DefaultHistoryLimit
	DefaultSearchLimit  = domain.DefaultHistorySearchLimit
	TimestampFormat     = "2006-01-02 15:04:05"
	PreviewLength       = 60
	TopModelsLimit      = 5
)

// ErrReported marks errors whose details were already printed.
var ErrReported = errors.New("error already reported")

// Error messages
const (
	ErrConfigLoaderUnavailable  = "config loader unavailable"
	ErrDoctorServiceUnavailable = "doctor service unavailable"
	ErrHistoryStoreUnavailable  = "history store unavailable"
	ErrGenerationUnavailable    = "generation service unavailable"
	ErrCredentialsUnavailable   = "credential store unavailable"
	ErrPromptRequired           = "a prompt is required (argument or stdin)"
)

// Success messages
const (
	MsgConfigurationValid       = "Configuration valid"
	MsgNoDifferencesFromDefault = "No differences from default configuration."
	MsgNoHistoryRecorded        = "No history recorded yet."
	MsgHistoryCleared           = "History cleared."
	MsgClearCancelled           = "Clear cancelled."
	MsgNoActiveConfig           = "No active configuration. Run `notegen config apply <provider> [model]`."
)
