package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/doeshing/notegen/internal/application/thinking"
	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/ports"
)

// GenerateNoteTool handles the generate_note MCP tool.
type GenerateNoteTool struct {
	gen     Generator
	history ports.HistoryStore
}

// NewGenerateNoteTool creates a GenerateNoteTool.
func NewGenerateNoteTool(gen Generator, history ports.HistoryStore) *GenerateNoteTool {
	return &GenerateNoteTool{gen: gen, history: history}
}

// Definition returns the MCP tool definition for registration.
func (t *GenerateNoteTool) Definition() mcp.Tool {
	return mcp.NewTool("generate_note",
		mcp.WithDescription(
			"Generate note content with the active AI configuration. "+
				"Returns the answer without its reasoning block, followed by "+
				"a summary of the thinking chain when the model produced one.",
		),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("What to write."),
		),
		mcp.WithString("note_id",
			mcp.Description("Note the generation belongs to, recorded in history."),
		),
		mcp.WithString("model",
			mcp.Description("Model override for this request only."),
		),
		mcp.WithNumber("temperature",
			mcp.Description("Sampling temperature override."),
		),
		mcp.WithNumber("max_tokens",
			mcp.Description("Completion token limit override."),
		),
	)
}

// Handle processes the generate_note tool call.
func (t *GenerateNoteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt := req.GetString("prompt", "")
	if strings.TrimSpace(prompt) == "" {
		return mcp.NewToolResultError("prompt is required"), nil
	}

	stream := false
	opts := domain.GenerateOptions{
		NoteID: req.GetString("note_id", ""),
		Prompt: prompt,
		Model:  req.GetString("model", ""),
		Stream: &stream,
	}
	args := req.GetArguments()
	if v, ok := args["temperature"].(float64); ok {
		opts.Temperature = &v
	}
	if v, ok := args["max_tokens"].(float64); ok && v > 0 {
		n := int(v)
		opts.MaxTokens = &n
	}

	var (
		mu      sync.Mutex
		content string
		genErr  error
	)
	opts.Callbacks = domain.Callbacks{
		OnComplete: func(c string) {
			mu.Lock()
			content = c
			mu.Unlock()
		},
		OnError: func(err error) {
			mu.Lock()
			genErr = err
			mu.Unlock()
		},
	}

	id, err := t.gen.GenerateNote(ctx, opts)
	mu.Lock()
	defer mu.Unlock()
	if err == nil {
		err = genErr
	}
	if err != nil {
		return mcp.NewToolResultError(userMessage(err)), nil
	}

	var sb strings.Builder
	if rec, herr := t.history.Get(ctx, id); herr == nil {
		sb.WriteString(rec.GeneratedContent)
		if rec.ThinkingChain != nil {
			fmt.Fprintf(&sb, "\n\n---\n%s\n", rec.ThinkingChain.Summary)
			for i, step := range rec.ThinkingChain.Steps {
				fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, step.Type, step.Content)
			}
		}
	} else {
		sb.WriteString(content)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func userMessage(err error) string {
	var gerr *domain.GenerationError
	if errors.As(err, &gerr) {
		return fmt.Sprintf("%s (%s)", gerr.UserMessage, gerr.Kind)
	}
	return err.Error()
}

// DetectThinkingTool handles the detect_thinking MCP tool.
type DetectThinkingTool struct {
	now func() time.Time
}

// NewDetectThinkingTool creates a DetectThinkingTool.
func NewDetectThinkingTool() *DetectThinkingTool {
	return &DetectThinkingTool{now: time.Now}
}

// Definition returns the MCP tool definition for registration.
func (t *DetectThinkingTool) Definition() mcp.Tool {
	return mcp.NewTool("detect_thinking",
		mcp.WithDescription(
			"Find a thinking chain in model output. Checks a raw JSON stream "+
				"chunk first, then reasoning tags in text, and returns the "+
				"segmented steps as JSON.",
		),
		mcp.WithString("text",
			mcp.Description("Model output that may contain <thinking>, <think>, <reasoning> or <thought> blocks."),
		),
		mcp.WithString("chunk",
			mcp.Description("Raw JSON stream chunk that may carry a reasoning field."),
		),
	)
}

type detectResult struct {
	HasThinkingChain bool                         `json:"has_thinking_chain"`
	CleanContent     string                       `json:"clean_content,omitempty"`
	Chain            *domain.ThinkingChainContent `json:"chain,omitempty"`
}

// Handle processes the detect_thinking tool call.
func (t *DetectThinkingTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	chunk := req.GetString("chunk", "")
	if text == "" && chunk == "" {
		return mcp.NewToolResultError("text or chunk is required"), nil
	}

	det := thinking.Detect(text, []byte(chunk))
	out := detectResult{HasThinkingChain: det.HasThinkingChain, CleanContent: det.CleanContent}
	if det.HasThinkingChain {
		out.Chain = thinking.BuildChain(det.ThinkingContent, det.Format, t.now().UTC())
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ListHistoryTool handles the list_history MCP tool.
type ListHistoryTool struct {
	history ports.HistoryStore
}

// NewListHistoryTool creates a ListHistoryTool.
func NewListHistoryTool(history ports.HistoryStore) *ListHistoryTool {
	return &ListHistoryTool{history: history}
}

// Definition returns the MCP tool definition for registration.
func (t *ListHistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("list_history",
		mcp.WithDescription("List recent generation attempts, newest first."),
		mcp.WithString("note_id",
			mcp.Description("Only attempts for this note."),
		),
		mcp.WithString("status",
			mcp.Description("success, error or cancelled."),
		),
		mcp.WithString("search",
			mcp.Description("Substring matched against prompt and content."),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum entries (default: %d).", domain.DefaultHistoryLimit)),
		),
	)
}

// Handle processes the list_history tool call.
func (t *ListHistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := domain.HistoryQuery{
		NoteID: req.GetString("note_id", ""),
		Status: domain.HistoryStatus(req.GetString("status", "")),
		Search: req.GetString("search", ""),
		Limit:  domain.DefaultHistoryLimit,
	}
	switch query.Status {
	case domain.StatusPending, domain.StatusSuccess, domain.StatusError, domain.StatusCancelled:
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown status %q", query.Status)), nil
	}
	if v, ok := req.GetArguments()["limit"].(float64); ok && v > 0 {
		query.Limit = int(v)
	}

	records, err := t.history.List(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list history: %v", err)), nil
	}
	if len(records) == 0 {
		return mcp.NewToolResultText("No generation history."), nil
	}

	var sb strings.Builder
	for _, rec := range records {
		fmt.Fprintf(&sb, "%s  %s  %-9s  %s/%s  %s\n",
			rec.CreatedAt.Local().Format(time.DateTime),
			rec.ID,
			rec.Status,
			rec.Provider,
			rec.Model,
			preview(rec.Prompt, 60),
		)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func preview(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
