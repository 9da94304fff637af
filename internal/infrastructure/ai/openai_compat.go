package ai

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"

	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/ports"
)

// openAICompatProvider serves every vendor speaking the OpenAI chat
// completions dialect. Reasoning models expose their trace as
// choices[0].delta.reasoning_content, which is forwarded untouched.
type openAICompatProvider struct {
	id     domain.ProviderID
	client *openai.Client
}

func newOpenAICompatProvider(id domain.ProviderID, baseURL string, httpClient *http.Client) ports.Provider {
	return &openAICompatProvider{
		id: id,
		client: openai.NewClient(
			option.WithBaseURL(baseURL),
			option.WithHTTPClient(httpClient),
			option.WithMaxRetries(0),
		),
	}
}

func (p *openAICompatProvider) ID() domain.ProviderID {
	return p.id
}

func (p *openAICompatProvider) GenerateContent(ctx context.Context, req ports.ProviderRequest, cb domain.Callbacks) error {
	if req.Model == "" {
		return &domain.ProviderError{Provider: p.id, StatusCode: http.StatusNotFound, Message: "model is required"}
	}

	params := openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		}),
		Model:       openai.F(req.Model),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	em := newEmitter(cb)
	auth := option.WithAPIKey(req.APIKey)
	if req.Stream {
		params.StreamOptions = openai.F(openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		})
		p.runStream(ctx, params, auth, em)
	} else {
		p.runOnce(ctx, params, auth, em)
	}
	return nil
}

func (p *openAICompatProvider) runStream(ctx context.Context, params openai.ChatCompletionNewParams, auth option.RequestOption, em *emitter) {
	strm := p.client.Chat.Completions.NewStreaming(ctx, params, auth)
	defer strm.Close()

	for strm.Next() {
		chunk := strm.Current()
		var text string
		if len(chunk.Choices) > 0 {
			text = chunk.Choices[0].Delta.Content
		}
		em.delta(text, []byte(chunk.JSON.RawJSON()))
		if chunk.Usage.TotalTokens > 0 {
			em.reportUsage(domain.TokenUsage{
				PromptTokens:     int(chunk.Usage.PromptTokens),
				CompletionTokens: int(chunk.Usage.CompletionTokens),
				TotalTokens:      int(chunk.Usage.TotalTokens),
			})
		}
	}
	if err := strm.Err(); err != nil {
		em.fail(p.wrap(err))
		return
	}
	if err := ctx.Err(); err != nil {
		em.fail(err)
		return
	}
	em.complete()
}

func (p *openAICompatProvider) runOnce(ctx context.Context, params openai.ChatCompletionNewParams, auth option.RequestOption, em *emitter) {
	chat, err := p.client.Chat.Completions.New(ctx, params, auth)
	if err != nil {
		em.fail(p.wrap(err))
		return
	}

	var content string
	if len(chat.Choices) > 0 {
		content = chat.Choices[0].Message.Content
	}
	// Non-streamed reasoning sits on the message; surface it as a chunk so
	// callers see one side-channel shape.
	var raw []byte
	if r := gjson.Get(chat.JSON.RawJSON(), "choices.0.message.reasoning_content"); r.Type == gjson.String && r.Str != "" {
		raw = sideChannelChunk("reasoning_content", r.Str)
	}
	em.delta(content, raw)
	em.reportUsage(domain.TokenUsage{
		PromptTokens:     int(chat.Usage.PromptTokens),
		CompletionTokens: int(chat.Usage.CompletionTokens),
		TotalTokens:      int(chat.Usage.TotalTokens),
	})
	em.complete()
}

func (p *openAICompatProvider) wrap(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return providerError(p.id, apiErr.StatusCode, err)
	}
	return providerError(p.id, 0, err)
}
