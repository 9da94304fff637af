package domain

import "time"

// HistoryStatus is the write-once outcome of a generation attempt.
type HistoryStatus string

const (
	StatusPending   HistoryStatus = ""
	StatusSuccess   HistoryStatus = "success"
	StatusError     HistoryStatus = "error"
	StatusCancelled HistoryStatus = "cancelled"
)

// HistoryRecord captures one generation attempt, successful or not.
type HistoryRecord struct {
	ID               string                `json:"id"`
	NoteID           string                `json:"note_id,omitempty"`
	Prompt           string                `json:"prompt"`
	Provider         ProviderID            `json:"provider"`
	Model            string                `json:"model"`
	Temperature      float64               `json:"temperature"`
	MaxTokens        int                   `json:"max_tokens"`
	Stream           bool                  `json:"stream"`
	GeneratedContent string                `json:"generated_content"`
	ThinkingChain    *ThinkingChainContent `json:"thinking_chain,omitempty"`
	Status           HistoryStatus         `json:"status"`
	ErrorKind        ErrorKind             `json:"error_kind,omitempty"`
	ErrorMessage     string                `json:"error_message,omitempty"`
	Duration         time.Duration         `json:"duration"`
	TokenUsage       *TokenUsage           `json:"token_usage,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
}

// Finalized reports whether the record carries a terminal status.
func (r HistoryRecord) Finalized() bool {
	return r.Status != StatusPending
}

// HistoryQuery filters history listings.
type HistoryQuery struct {
	NoteID string
	Status HistoryStatus
	Search string
	Limit  int
}
