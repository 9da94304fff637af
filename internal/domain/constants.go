package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
)

// Timeout and duration constants
const (
	// DefaultRequestTimeout bounds a single generation request
	DefaultRequestTimeout = 120 * time.Second
	// DefaultModelTestTimeout is the default timeout for configuration tests
	DefaultModelTestTimeout = 30 * time.Second
)

// History constants
const (
	// DefaultHistoryLimit is the default number of history records to display
	DefaultHistoryLimit = 20
	// DefaultHistorySearchLimit is the default number of search results to return
	DefaultHistorySearchLimit = 50
)

// Generation defaults
const (
	// DefaultMaxTokens is the default maximum number of tokens
	DefaultMaxTokens = 2000
	// DefaultTemperature is the default sampling temperature
	DefaultTemperature = 0.7
	// TestPrompt is sent by configuration tests
	TestPrompt = "Hello"
	// TestMaxTokens keeps configuration tests cheap
	TestMaxTokens = 16
)

// Thinking-chain detection limits
const (
	// MinThinkingLength is the shortest thinking text surfaced as a block
	MinThinkingLength = 20
	// MaxThinkingInputLength bounds the text scanned for tags
	MaxThinkingInputLength = 100000
)

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339
)
