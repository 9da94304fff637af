package history

import (
	"context"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/ports"
)

// Export formats.
const (
	FormatJSONL = "jsonl"
	FormatYAML  = "yaml"
)

// exportRecord flattens a record into export-friendly scalars.
type exportRecord struct {
	ID               string                     `json:"id" yaml:"id"`
	NoteID           string                     `json:"note_id,omitempty" yaml:"note_id,omitempty"`
	Prompt           string                     `json:"prompt" yaml:"prompt"`
	Provider         string                     `json:"provider" yaml:"provider"`
	Model            string                     `json:"model" yaml:"model"`
	Temperature      float64                    `json:"temperature" yaml:"temperature"`
	MaxTokens        int                        `json:"max_tokens" yaml:"max_tokens"`
	Stream           bool                       `json:"stream" yaml:"stream"`
	Status           string                     `json:"status" yaml:"status"`
	ErrorKind        string                     `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	ErrorMessage     string                     `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	DurationMS       int64                      `json:"duration_ms" yaml:"duration_ms"`
	GeneratedContent string                     `json:"generated_content" yaml:"generated_content"`
	ThinkingSummary  string                     `json:"thinking_summary,omitempty" yaml:"thinking_summary,omitempty"`
	ThinkingSteps    []domain.ThinkingChainStep `json:"thinking_steps,omitempty" yaml:"-"`
	TokenUsage       *domain.TokenUsage         `json:"token_usage,omitempty" yaml:"token_usage,omitempty"`
	CreatedAt        string                     `json:"created_at" yaml:"created_at"`
}

func toExport(rec domain.HistoryRecord) exportRecord {
	out := exportRecord{
		ID:               rec.ID,
		NoteID:           rec.NoteID,
		Prompt:           rec.Prompt,
		Provider:         string(rec.Provider),
		Model:            rec.Model,
		Temperature:      rec.Temperature,
		MaxTokens:        rec.MaxTokens,
		Stream:           rec.Stream,
		Status:           string(rec.Status),
		ErrorKind:        string(rec.ErrorKind),
		ErrorMessage:     rec.ErrorMessage,
		DurationMS:       rec.Duration.Milliseconds(),
		GeneratedContent: rec.GeneratedContent,
		TokenUsage:       rec.TokenUsage,
		CreatedAt:        rec.CreatedAt.UTC().Format(domain.TimestampFormat),
	}
	if rec.ThinkingChain != nil {
		out.ThinkingSummary = rec.ThinkingChain.Summary
		out.ThinkingSteps = rec.ThinkingChain.Steps
	}
	return out
}

// Export writes every record matching query to w in the given format.
func Export(ctx context.Context, store ports.HistoryStore, query domain.HistoryQuery, format string, w io.Writer) (int, error) {
	records, err := store.List(ctx, query)
	if err != nil {
		return 0, err
	}
	switch format {
	case FormatJSONL, "":
		enc := json.NewEncoder(w)
		for _, rec := range records {
			if err := enc.Encode(toExport(rec)); err != nil {
				return 0, err
			}
		}
	case FormatYAML:
		out := make([]exportRecord, 0, len(records))
		for _, rec := range records {
			out = append(out, toExport(rec))
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return 0, err
		}
		if err := enc.Close(); err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("unsupported export format %q", format)
	}
	return len(records), nil
}
