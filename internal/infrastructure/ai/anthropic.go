package ai

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/tidwall/gjson"

	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/ports"
)

const (
	anthropicVersion = "2023-06-01"
	// anthropicMinThinkingBudget is the smallest budget the Messages API accepts.
	anthropicMinThinkingBudget = 1024
	anthropicDefaultMaxTokens  = 1024
)

// anthropicProvider talks to the Messages API directly. thinking_delta events
// are normalised into {"thinking": "..."} chunks.
type anthropicProvider struct {
	endpoint   string
	httpClient *http.Client
}

func newAnthropicProvider(baseURL string, client *http.Client) ports.Provider {
	return &anthropicProvider{
		endpoint:   strings.TrimRight(baseURL, "/") + "/v1/messages",
		httpClient: client,
	}
}

func (p *anthropicProvider) ID() domain.ProviderID {
	return domain.ProviderAnthropic
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
	Thinking    *anthropicThinking `json:"thinking,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (p *anthropicProvider) GenerateContent(ctx context.Context, req ports.ProviderRequest, cb domain.Callbacks) error {
	payload := anthropicRequest{
		Model:     req.Model,
		MaxTokens: valueOrDefaultInt(req.MaxTokens, anthropicDefaultMaxTokens),
		Stream:    req.Stream,
		Messages:  []anthropicMessage{{Role: "user", Content: req.Prompt}},
	}
	// Extended thinking requires temperature 1 and a budget below max_tokens.
	// Models outside the allow-list reject the thinking block outright.
	if req.Thinking && domain.SupportsThinking(domain.ProviderAnthropic, req.Model) && payload.MaxTokens > anthropicMinThinkingBudget {
		payload.Thinking = &anthropicThinking{Type: "enabled", BudgetTokens: anthropicMinThinkingBudget}
	} else {
		temp := req.Temperature
		payload.Temperature = &temp
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("x-api-key", req.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("content-type", "application/json")

	em := newEmitter(cb)
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		em.fail(providerError(domain.ProviderAnthropic, 0, err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		em.fail(statusError(domain.ProviderAnthropic, resp))
		return nil
	}

	if req.Stream {
		p.readStream(ctx, resp, em)
	} else {
		p.readOnce(resp, em)
	}
	return nil
}

func (p *anthropicProvider) readStream(ctx context.Context, resp *http.Response, em *emitter) {
	dec := ssestream.NewDecoder(resp)
	defer dec.Close()

	var usage domain.TokenUsage
	for dec.Next() {
		evt := dec.Event()
		data := evt.Data
		switch gjson.GetBytes(data, "type").String() {
		case "message_start":
			usage.PromptTokens = int(gjson.GetBytes(data, "message.usage.input_tokens").Int())
		case "content_block_delta":
			switch gjson.GetBytes(data, "delta.type").String() {
			case "text_delta":
				em.delta(gjson.GetBytes(data, "delta.text").String(), data)
			case "thinking_delta":
				em.delta("", sideChannelChunk("thinking", gjson.GetBytes(data, "delta.thinking").String()))
			}
		case "message_delta":
			usage.CompletionTokens = int(gjson.GetBytes(data, "usage.output_tokens").Int())
		case "error":
			em.fail(&domain.ProviderError{
				Provider: domain.ProviderAnthropic,
				Message:  gjson.GetBytes(data, "error.message").String(),
			})
			return
		}
	}
	if err := dec.Err(); err != nil {
		em.fail(providerError(domain.ProviderAnthropic, 0, err))
		return
	}
	if err := ctx.Err(); err != nil {
		em.fail(err)
		return
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	em.reportUsage(usage)
	em.complete()
}

func (p *anthropicProvider) readOnce(resp *http.Response, em *emitter) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		em.fail(providerError(domain.ProviderAnthropic, 0, err))
		return
	}
	body := buf.Bytes()

	var text, thinking strings.Builder
	for _, block := range gjson.GetBytes(body, "content").Array() {
		switch block.Get("type").String() {
		case "text":
			text.WriteString(block.Get("text").String())
		case "thinking":
			thinking.WriteString(block.Get("thinking").String())
		}
	}
	var raw []byte
	if thinking.Len() > 0 {
		raw = sideChannelChunk("thinking", thinking.String())
	}
	em.delta(text.String(), raw)

	in := int(gjson.GetBytes(body, "usage.input_tokens").Int())
	out := int(gjson.GetBytes(body, "usage.output_tokens").Int())
	em.reportUsage(domain.TokenUsage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out})
	em.complete()
}
