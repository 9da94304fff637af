package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	json "github.com/goccy/go-json"
	"github.com/ollama/ollama/api"

	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/ports"
)

// ollamaProvider uses the native client. Thinking models return their trace
// in message.thinking, forwarded as {"thinking": "..."} chunks.
type ollamaProvider struct {
	client *api.Client
}

func newOllamaProvider(baseURL string, httpClient *http.Client) (ports.Provider, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host: %w", err)
	}
	return &ollamaProvider{client: api.NewClient(u, httpClient)}, nil
}

func (o *ollamaProvider) ID() domain.ProviderID {
	return domain.ProviderOllama
}

func (o *ollamaProvider) GenerateContent(ctx context.Context, req ports.ProviderRequest, cb domain.Callbacks) error {
	stream := req.Stream
	chatReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: []api.Message{{Role: "user", Content: req.Prompt}},
		Options: map[string]interface{}{
			"temperature": req.Temperature,
		},
		Stream: &stream,
	}
	if req.MaxTokens > 0 {
		chatReq.Options["num_predict"] = req.MaxTokens
	}

	em := newEmitter(cb)
	err := o.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		if resp.Message.Thinking != "" {
			em.delta("", sideChannelChunk("thinking", resp.Message.Thinking))
		}
		if resp.Message.Content != "" || resp.Done {
			raw, _ := json.Marshal(resp)
			em.delta(resp.Message.Content, raw)
		}
		if resp.Done {
			em.reportUsage(domain.TokenUsage{
				PromptTokens:     resp.PromptEvalCount,
				CompletionTokens: resp.EvalCount,
				TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
			})
		}
		return nil
	})
	if err != nil {
		em.fail(o.wrap(err))
		return nil
	}
	if err := ctx.Err(); err != nil {
		em.fail(err)
		return nil
	}
	em.complete()
	return nil
}

func (o *ollamaProvider) wrap(err error) error {
	var se api.StatusError
	if errors.As(err, &se) {
		return providerError(domain.ProviderOllama, se.StatusCode, err)
	}
	return providerError(domain.ProviderOllama, 0, err)
}
