package generation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/notegen/internal/application/thinking"
	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/ports"
)

// GenerateNote runs one generation attempt and returns its history id.
//
// The active configuration is snapshotted before anything else, so a
// concurrent ApplyConfiguration never re-attributes this request. Failures
// before the provider is invoked, and errors the provider returns
// synchronously, are classified, persisted, passed to OnError and returned.
// Failures reported through callbacks are only passed to OnError.
func (s *Service) GenerateNote(ctx context.Context, opts domain.GenerateOptions) (string, error) {
	snapshot := s.Settings()
	active := snapshot.ActiveConfig

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = active.Model
	}
	req := &request{
		svc:      s,
		ctx:      ctx,
		caller:   opts.Callbacks,
		thinking: snapshot.Thinking.Enabled,
		start:    s.now(),
		record: domain.HistoryRecord{
			ID:          s.newID(),
			NoteID:      opts.NoteID,
			Prompt:      opts.Prompt,
			Provider:    active.Provider,
			Model:       model,
			Temperature: snapshot.ResolveTemperature(opts.Temperature),
			MaxTokens:   snapshot.ResolveMaxTokens(opts.MaxTokens),
			Stream:      snapshot.ResolveStream(opts.Stream),
		},
	}
	req.record.CreatedAt = req.start.UTC()

	fields := map[string]interface{}{
		"id":       req.record.ID,
		"note_id":  opts.NoteID,
		"provider": string(active.Provider),
		"model":    model,
		"stream":   req.record.Stream,
	}
	s.logger.Info("generation started", fields)

	if strings.TrimSpace(opts.Prompt) == "" {
		return req.record.ID, req.abort(NewError(domain.ErrorValidation, domain.ErrEmptyPrompt))
	}

	provider, err := s.registry.LoadProvider(ctx, active.Provider)
	if err != nil {
		return req.record.ID, req.abort(NewError(domain.ErrorNotFound, err))
	}
	s.logger.Debug("provider resolved", fields)

	key, err := s.resolveKey(ctx, active.Provider)
	if err != nil {
		return req.record.ID, req.abort(NewError(domain.ErrorValidation, err))
	}

	capable := domain.SupportsThinking(active.Provider, model)
	if !capable {
		s.logger.Debug("model not expected to emit a thinking chain", fields)
	}

	err = provider.GenerateContent(ctx, ports.ProviderRequest{
		NoteID:      opts.NoteID,
		Prompt:      opts.Prompt,
		Model:       model,
		APIKey:      key,
		Temperature: req.record.Temperature,
		MaxTokens:   req.record.MaxTokens,
		Stream:      req.record.Stream,
		Thinking:    snapshot.Thinking.Enabled && capable,
	}, req.callbacks())
	if err != nil {
		return req.record.ID, req.abort(Classify(err))
	}
	return req.record.ID, nil
}

// request tracks one in-flight attempt. Callbacks are serialized by mu and
// the record is finalized at most once.
type request struct {
	svc      *Service
	ctx      context.Context
	caller   domain.Callbacks
	thinking bool
	start    time.Time

	mu        sync.Mutex
	once      sync.Once
	record    domain.HistoryRecord
	reasoning strings.Builder
}

func (r *request) callbacks() domain.Callbacks {
	return domain.Callbacks{
		OnStream:   r.onStream,
		OnUsage:    r.onUsage,
		OnComplete: r.onComplete,
		OnError:    r.onError,
	}
}

func (r *request) onStream(text string, raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.record.Finalized() {
		return
	}
	r.record.GeneratedContent = text
	if len(raw) > 0 {
		if delta, ok := thinking.DetectFromStreamChunk(raw); ok {
			r.reasoning.WriteString(delta)
		}
	}
	if r.ctx.Err() == nil && r.caller.OnStream != nil {
		r.caller.OnStream(text, raw)
	}
}

func (r *request) onUsage(usage domain.TokenUsage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.record.Finalized() {
		return
	}
	u := usage
	r.record.TokenUsage = &u
	if r.ctx.Err() == nil && r.caller.OnUsage != nil {
		r.caller.OnUsage(usage)
	}
}

func (r *request) onComplete(content string) {
	r.once.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.record.GeneratedContent = content
		if r.ctx.Err() != nil {
			r.finalize(domain.StatusCancelled, nil)
			return
		}
		r.attachThinking(content)
		r.estimateUsage()
		r.finalize(domain.StatusSuccess, nil)
		if r.caller.OnComplete != nil {
			r.caller.OnComplete(content)
		}
	})
}

func (r *request) onError(err error) {
	r.fail(Classify(err))
}

// abort finalizes a failure the caller also gets as a return value.
func (r *request) abort(gerr *domain.GenerationError) error {
	r.fail(gerr)
	return gerr
}

func (r *request) fail(gerr *domain.GenerationError) {
	r.once.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		if r.ctx.Err() != nil {
			r.finalize(domain.StatusCancelled, gerr)
			return
		}
		r.finalize(domain.StatusError, gerr)
		if r.caller.OnError != nil {
			r.caller.OnError(gerr)
		}
	})
}

// attachThinking prefers reasoning collected from the stream side channel and
// falls back to tags embedded in the final text.
func (r *request) attachThinking(content string) {
	if !r.thinking {
		return
	}
	side := r.reasoning.String()
	det := thinking.DetectFromText(content)
	base := r.start.UTC()

	switch {
	case len([]rune(side)) >= domain.MinThinkingLength:
		format := domain.FormatJSONField
		if det.HasThinkingChain {
			format = domain.FormatMixed
			r.record.GeneratedContent = det.CleanContent
		}
		r.record.ThinkingChain = thinking.BuildChain(side, format, base)
	case det.HasThinkingChain:
		r.record.GeneratedContent = det.CleanContent
		r.record.ThinkingChain = thinking.BuildChain(det.ThinkingContent, domain.FormatXMLTag, base)
	}
}

func (r *request) estimateUsage() {
	tokens := r.svc.tokens
	if r.record.TokenUsage != nil || tokens == nil || !r.svc.cfg.TokenEstimation {
		return
	}
	prompt := tokens.Count(r.record.Model, r.record.Prompt)
	completion := tokens.Count(r.record.Model, r.record.GeneratedContent)
	r.record.TokenUsage = &domain.TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
		Estimated:        true,
	}
}

// finalize stamps the terminal status and persists the record. Callers hold mu.
func (r *request) finalize(status domain.HistoryStatus, gerr *domain.GenerationError) {
	r.record.Status = status
	r.record.Duration = r.svc.now().Sub(r.start)
	if gerr != nil {
		r.record.ErrorKind = gerr.Kind
		r.record.ErrorMessage = gerr.TechnicalMessage
		if r.record.ErrorMessage == "" {
			r.record.ErrorMessage = gerr.UserMessage
		}
	}

	fields := map[string]interface{}{
		"id":          r.record.ID,
		"note_id":     r.record.NoteID,
		"provider":    string(r.record.Provider),
		"status":      string(status),
		"duration_ms": r.record.Duration.Milliseconds(),
	}
	if gerr != nil {
		fields["kind"] = string(gerr.Kind)
		r.svc.logger.Error("generation failed", gerr, fields)
	} else {
		r.svc.logger.Info("generation finished", fields)
	}

	// The record is saved even when the request context is already done.
	if err := r.svc.history.Save(context.WithoutCancel(r.ctx), r.record); err != nil {
		r.svc.logger.Warn("history save failed", map[string]interface{}{
			"id":    r.record.ID,
			"error": err.Error(),
		})
	}
}
