package generation

import (
	"context"
	"errors"
	"sync"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/pkg/logger"
	"github.com/doeshing/notegen/internal/ports"
)

func TestGenerateNoteStreamsAndPersistsSuccess(t *testing.T) {
	f := newFixture(t)
	f.provider.fn = func(_ context.Context, req ports.ProviderRequest, cb domain.Callbacks) error {
		if req.APIKey != goodKey || req.Model != "gpt-test" {
			t.Errorf("unexpected request %+v", req)
		}
		cb.OnStream("Hel", nil)
		cb.OnStream("Hello", nil)
		cb.OnUsage(domain.TokenUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5})
		cb.OnComplete("Hello")
		return nil
	}

	var c capture
	id, err := f.svc.GenerateNote(context.Background(), domain.GenerateOptions{
		NoteID:    "note-1",
		Prompt:    "say hello",
		Callbacks: c.callbacks(),
	})
	if err != nil {
		t.Fatalf("GenerateNote() error = %v", err)
	}

	if len(c.streams) != 2 || c.streams[1] != "Hello" {
		t.Fatalf("stream callbacks = %v", c.streams)
	}
	if len(c.complete) != 1 || len(c.errs) != 0 {
		t.Fatalf("expected exactly one completion, got %v / %v", c.complete, c.errs)
	}

	rec := f.history.only(t)
	if rec.ID != id || rec.Status != domain.StatusSuccess || rec.NoteID != "note-1" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.Provider != domain.ProviderOpenAI || rec.Model != "gpt-test" {
		t.Fatalf("record attributed to %s/%s", rec.Provider, rec.Model)
	}
	if rec.TokenUsage == nil || rec.TokenUsage.TotalTokens != 5 || rec.TokenUsage.Estimated {
		t.Fatalf("unexpected usage %+v", rec.TokenUsage)
	}
	if rec.Temperature != domain.DefaultTemperature || rec.MaxTokens != domain.DefaultMaxTokens || !rec.Stream {
		t.Fatalf("defaults not applied: %+v", rec)
	}
	if rec.Duration <= 0 {
		t.Fatalf("duration not recorded: %v", rec.Duration)
	}
}

func TestGenerateNoteWithoutKeyNeverCallsProvider(t *testing.T) {
	f := newFixture(t)
	if err := f.credentials.ClearAPIKey(context.Background(), domain.ProviderOpenAI); err != nil {
		t.Fatal(err)
	}

	var c capture
	_, err := f.svc.GenerateNote(context.Background(), domain.GenerateOptions{
		Prompt:    "hello",
		Callbacks: c.callbacks(),
	})

	var gerr *domain.GenerationError
	if !errors.As(err, &gerr) || gerr.Kind != domain.ErrorValidation {
		t.Fatalf("expected VALIDATION error, got %v", err)
	}
	if f.provider.callCount() != 0 {
		t.Fatal("provider must not be called without a key")
	}
	if len(c.errs) != 1 {
		t.Fatalf("expected OnError once, got %d", len(c.errs))
	}
	rec := f.history.only(t)
	if rec.Status != domain.StatusError || rec.ErrorKind != domain.ErrorValidation {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestGenerateNoteKeyOptionalProvider(t *testing.T) {
	ollama := &stubProvider{id: domain.ProviderOllama}
	history := &stubHistory{}
	svc, err := NewService(Deps{
		Registry: stubRegistry{
			providers:   map[domain.ProviderID]ports.Provider{domain.ProviderOllama: ollama},
			keyOptional: map[domain.ProviderID]bool{domain.ProviderOllama: true},
		},
		Credentials: &stubCredentials{},
		Settings:    &stubSettings{},
		History:     history,
		Logger:      logger.NewNop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.ApplyConfiguration(context.Background(), domain.ProviderOllama, ""); err != nil {
		t.Fatal(err)
	}
	if svc.CurrentModel() != "ollama-default" {
		t.Fatalf("empty model should default, got %q", svc.CurrentModel())
	}

	if _, err := svc.GenerateNote(context.Background(), domain.GenerateOptions{Prompt: "hi"}); err != nil {
		t.Fatalf("GenerateNote() error = %v", err)
	}
	if ollama.callCount() != 1 {
		t.Fatal("keyless provider should be called")
	}
	if rec := history.only(t); rec.Status != domain.StatusSuccess {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestGenerateNoteUnknownProviderIsNotFound(t *testing.T) {
	f := newFixture(t)
	// anthropic is a valid id but the stub registry cannot load it
	if err := f.svc.ApplyConfiguration(context.Background(), domain.ProviderAnthropic, "claude"); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.GenerateNote(context.Background(), domain.GenerateOptions{Prompt: "hi"})
	var gerr *domain.GenerationError
	if !errors.As(err, &gerr) || gerr.Kind != domain.ErrorNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if rec := f.history.only(t); rec.Status != domain.StatusError || rec.Provider != domain.ProviderAnthropic {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestGenerateNoteEmptyPrompt(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GenerateNote(context.Background(), domain.GenerateOptions{Prompt: "   "})
	var gerr *domain.GenerationError
	if !errors.As(err, &gerr) || gerr.Kind != domain.ErrorValidation {
		t.Fatalf("expected VALIDATION, got %v", err)
	}
	if f.provider.callCount() != 0 {
		t.Fatal("provider called for empty prompt")
	}
	f.history.only(t)
}

func TestGenerateNoteSynchronousErrorIsClassifiedPersistedAndReturned(t *testing.T) {
	f := newFixture(t)
	f.provider.fn = func(context.Context, ports.ProviderRequest, domain.Callbacks) error {
		return &domain.ProviderError{Provider: domain.ProviderOpenAI, StatusCode: 404, Message: "model is required"}
	}

	var c capture
	_, err := f.svc.GenerateNote(context.Background(), domain.GenerateOptions{Prompt: "hi", Callbacks: c.callbacks()})
	var gerr *domain.GenerationError
	if !errors.As(err, &gerr) || gerr.Kind != domain.ErrorNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if len(c.errs) != 1 {
		t.Fatalf("OnError should fire once, got %d", len(c.errs))
	}
	rec := f.history.only(t)
	if rec.Status != domain.StatusError || rec.ErrorKind != domain.ErrorNotFound || rec.ErrorMessage == "" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestGenerateNoteCallbackErrorIsForwardedNotReturned(t *testing.T) {
	f := newFixture(t)
	f.provider.fn = func(_ context.Context, _ ports.ProviderRequest, cb domain.Callbacks) error {
		cb.OnStream("partial", nil)
		cb.OnError(&domain.ProviderError{Provider: domain.ProviderOpenAI, StatusCode: 429, Message: "insufficient_quota"})
		// a misbehaving adapter firing a second terminal is ignored
		cb.OnComplete("late")
		return nil
	}

	var c capture
	_, err := f.svc.GenerateNote(context.Background(), domain.GenerateOptions{Prompt: "hi", Callbacks: c.callbacks()})
	if err != nil {
		t.Fatalf("callback errors are not returned, got %v", err)
	}
	if len(c.errs) != 1 || len(c.complete) != 0 {
		t.Fatalf("expected one error and no completion, got %v / %v", c.errs, c.complete)
	}
	gerr, ok := c.errs[0].(*domain.GenerationError)
	if !ok || gerr.Kind != domain.ErrorPermission {
		t.Fatalf("expected PERMISSION, got %v", c.errs[0])
	}
	if gerr.UserMessage == "" || containsVendor(gerr.UserMessage) {
		t.Fatalf("user message leaks vendor: %q", gerr.UserMessage)
	}
	rec := f.history.only(t)
	if rec.Status != domain.StatusError || rec.GeneratedContent != "partial" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestGenerateNoteCancelledSkipsCallerCallbacks(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.provider.fn = func(_ context.Context, _ ports.ProviderRequest, cb domain.Callbacks) error {
		cb.OnStream("a", nil)
		cancel()
		cb.OnStream("ab", nil)
		cb.OnComplete("ab")
		return nil
	}

	var c capture
	if _, err := f.svc.GenerateNote(ctx, domain.GenerateOptions{Prompt: "hi", Callbacks: c.callbacks()}); err != nil {
		t.Fatalf("GenerateNote() error = %v", err)
	}
	if len(c.streams) != 1 || len(c.complete) != 0 || len(c.errs) != 0 {
		t.Fatalf("caller callbacks after cancel: %+v", &c)
	}
	if rec := f.history.only(t); rec.Status != domain.StatusCancelled {
		t.Fatalf("expected cancelled record, got %s", rec.Status)
	}
}

func TestGenerateNoteExtractsTaggedThinking(t *testing.T) {
	f := newFixture(t)
	text := "答案。\n\n<thinking>\n分析：用户想要...\n因此，建议...\n</thinking>\n\n最终结论："
	f.provider.fn = func(_ context.Context, _ ports.ProviderRequest, cb domain.Callbacks) error {
		cb.OnComplete(text)
		return nil
	}

	var c capture
	if _, err := f.svc.GenerateNote(context.Background(), domain.GenerateOptions{Prompt: "hi", Callbacks: c.callbacks()}); err != nil {
		t.Fatal(err)
	}
	if len(c.complete) != 1 || c.complete[0] != text {
		t.Fatalf("caller should receive the provider text unchanged, got %v", c.complete)
	}

	rec := f.history.only(t)
	if rec.GeneratedContent != "答案。\n\n最终结论：" {
		t.Fatalf("clean content = %q", rec.GeneratedContent)
	}
	chain := rec.ThinkingChain
	if chain == nil || chain.TotalSteps != 2 || len(chain.Steps) != 2 {
		t.Fatalf("unexpected chain %+v", chain)
	}
	if chain.Steps[0].Type != domain.StepAnalysis || chain.Steps[1].Type != domain.StepReasoning {
		t.Fatalf("step types = %s, %s", chain.Steps[0].Type, chain.Steps[1].Type)
	}
	if chain.DetectedFormat != domain.FormatXMLTag {
		t.Fatalf("format = %s", chain.DetectedFormat)
	}
}

func TestGenerateNoteCollectsSideChannelReasoning(t *testing.T) {
	f := newFixture(t)
	f.provider.fn = func(_ context.Context, _ ports.ProviderRequest, cb domain.Callbacks) error {
		cb.OnStream("", []byte(`{"choices":[{"delta":{"reasoning_content":"思考中的具体内容，"}}]}`))
		cb.OnStream("", []byte(`{"choices":[{"delta":{"reasoning_content":"长度足够并且继续分析"}}]}`))
		cb.OnStream("Answer", []byte(`{"choices":[{"delta":{"content":"Answer"}}]}`))
		cb.OnComplete("Answer")
		return nil
	}
	if _, err := f.svc.GenerateNote(context.Background(), domain.GenerateOptions{Prompt: "hi"}); err != nil {
		t.Fatal(err)
	}
	rec := f.history.only(t)
	if rec.ThinkingChain == nil || rec.ThinkingChain.DetectedFormat != domain.FormatJSONField {
		t.Fatalf("expected json_field chain, got %+v", rec.ThinkingChain)
	}
	if rec.ThinkingChain.RawContent != "思考中的具体内容，长度足够并且继续分析" {
		t.Fatalf("raw reasoning = %q", rec.ThinkingChain.RawContent)
	}
	if rec.GeneratedContent != "Answer" {
		t.Fatalf("content = %q", rec.GeneratedContent)
	}
}

func TestGenerateNoteThinkingDisabled(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.UpdateSettings(context.Background(), func(s *domain.AISettings) { s.Thinking.Enabled = false }); err != nil {
		t.Fatal(err)
	}
	text := "<think>this reasoning is long enough to count</think>answer"
	f.provider.fn = func(_ context.Context, req ports.ProviderRequest, cb domain.Callbacks) error {
		if req.Thinking {
			t.Error("thinking flag should follow settings")
		}
		cb.OnComplete(text)
		return nil
	}
	if _, err := f.svc.GenerateNote(context.Background(), domain.GenerateOptions{Prompt: "hi"}); err != nil {
		t.Fatal(err)
	}
	if rec := f.history.only(t); rec.ThinkingChain != nil || rec.GeneratedContent != text {
		t.Fatalf("thinking should not be extracted: %+v", rec)
	}
}

func TestGenerateNoteEstimatesTokensWhenUnreported(t *testing.T) {
	f := newFixture(t)
	f.svc.tokens = stubTokens{}
	f.svc.cfg.TokenEstimation = true
	f.provider.fn = func(_ context.Context, _ ports.ProviderRequest, cb domain.Callbacks) error {
		cb.OnComplete("three word answer")
		return nil
	}
	if _, err := f.svc.GenerateNote(context.Background(), domain.GenerateOptions{Prompt: "two words"}); err != nil {
		t.Fatal(err)
	}
	usage := f.history.only(t).TokenUsage
	if usage == nil || !usage.Estimated || usage.PromptTokens != 2 || usage.CompletionTokens != 3 || usage.TotalTokens != 5 {
		t.Fatalf("unexpected usage %+v", usage)
	}
}

func TestGenerateNoteOverridesRequestParameters(t *testing.T) {
	f := newFixture(t)
	temp, maxTokens, stream := 0.2, 64, false
	f.provider.fn = func(_ context.Context, req ports.ProviderRequest, cb domain.Callbacks) error {
		if req.Temperature != 0.2 || req.MaxTokens != 64 || req.Stream || req.Model != "gpt-other" {
			t.Errorf("overrides not applied: %+v", req)
		}
		cb.OnComplete("ok")
		return nil
	}
	_, err := f.svc.GenerateNote(context.Background(), domain.GenerateOptions{
		Prompt:      "hi",
		Model:       "gpt-other",
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		Stream:      &stream,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestGenerateNoteRequestsThinkingOnlyForCapableModels(t *testing.T) {
	f := newFixture(t)
	if !f.svc.Settings().Thinking.Enabled {
		t.Fatal("thinking should be enabled by default")
	}

	tests := []struct {
		model string
		want  bool
	}{
		{model: "", want: false}, // active gpt-test is not on the allow-list
		{model: "gpt-4o-mini", want: false},
		{model: "o3-mini", want: true},
	}
	for _, tt := range tests {
		var got bool
		f.provider.fn = func(_ context.Context, req ports.ProviderRequest, cb domain.Callbacks) error {
			got = req.Thinking
			cb.OnComplete("ok")
			return nil
		}
		if _, err := f.svc.GenerateNote(context.Background(), domain.GenerateOptions{Prompt: "hi", Model: tt.model}); err != nil {
			t.Fatalf("GenerateNote(%q) error = %v", tt.model, err)
		}
		if got != tt.want {
			t.Errorf("model %q: request Thinking = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestConcurrentGenerationsAreIndependent(t *testing.T) {
	f := newFixture(t)
	f.provider.fn = func(_ context.Context, req ports.ProviderRequest, cb domain.Callbacks) error {
		cb.OnStream("draft for "+req.NoteID, nil)
		cb.OnComplete("final for " + req.NoteID)
		return nil
	}

	notes := []string{"note-a", "note-b"}
	ids := make([]string, len(notes))
	var wg sync.WaitGroup
	for i, note := range notes {
		wg.Add(1)
		go func(i int, note string) {
			defer wg.Done()
			id, err := f.svc.GenerateNote(context.Background(), domain.GenerateOptions{NoteID: note, Prompt: "write " + note})
			if err != nil {
				t.Errorf("GenerateNote(%s) error = %v", note, err)
			}
			ids[i] = id
		}(i, note)
	}
	wg.Wait()

	if ids[0] == "" || ids[0] == ids[1] {
		t.Fatalf("expected distinct ids, got %v", ids)
	}
	for i, note := range notes {
		rec, err := f.history.Get(context.Background(), ids[i])
		if err != nil {
			t.Fatal(err)
		}
		if rec.NoteID != note || rec.GeneratedContent != "final for "+note || rec.Prompt != "write "+note {
			t.Fatalf("record %d misattributed: %+v", i, rec)
		}
		if rec.Provider != domain.ProviderOpenAI || rec.Status != domain.StatusSuccess {
			t.Fatalf("unexpected record %+v", rec)
		}
	}
}

func TestInFlightRequestKeepsSnapshotAcrossApply(t *testing.T) {
	f := newFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})
	f.provider.fn = func(_ context.Context, _ ports.ProviderRequest, cb domain.Callbacks) error {
		close(started)
		<-release
		cb.OnComplete("done")
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.svc.GenerateNote(context.Background(), domain.GenerateOptions{Prompt: "hi"})
	}()
	<-started
	if err := f.svc.ApplyConfiguration(context.Background(), domain.ProviderDeepSeek, "deepseek-chat"); err != nil {
		t.Fatal(err)
	}
	close(release)
	<-done

	rec := f.history.only(t)
	if rec.Provider != domain.ProviderOpenAI || rec.Model != "gpt-test" {
		t.Fatalf("record re-attributed to %s/%s", rec.Provider, rec.Model)
	}
}

func TestApplyAndTestConfiguration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var seenModel string
	f.provider.fn = func(_ context.Context, req ports.ProviderRequest, cb domain.Callbacks) error {
		seenModel = req.Model
		cb.OnComplete("pong")
		return nil
	}
	result, err := f.svc.TestConfiguration(ctx, domain.ProviderOpenAI, "gpt-candidate", "")
	if err != nil || !result.Success || !result.CallbackFired {
		t.Fatalf("TestConfiguration() = %+v, %v", result, err)
	}
	if seenModel != "gpt-candidate" {
		t.Fatalf("test should use the exact model, got %q", seenModel)
	}
	if f.svc.CurrentModel() != "gpt-test" || f.svc.CurrentProvider() != domain.ProviderOpenAI {
		t.Fatal("TestConfiguration must not change the active configuration")
	}
	if len(f.history.records) != 0 {
		t.Fatal("configuration tests are not generation history")
	}

	if err := f.svc.ApplyConfiguration(ctx, domain.ProviderOpenAI, "gpt-candidate"); err != nil {
		t.Fatal(err)
	}
	if f.svc.CurrentModel() != "gpt-candidate" {
		t.Fatalf("CurrentModel() = %q", f.svc.CurrentModel())
	}

	raw, ok, _ := f.settings.Get(ctx, domain.ModelSettingsKey(domain.ProviderOpenAI))
	if !ok || string(raw) != `"gpt-candidate"` {
		t.Fatalf("preferred model = %s", raw)
	}
	var saved domain.AISettings
	raw, _, _ = f.settings.Get(ctx, domain.SettingsKeyAI)
	if err := json.Unmarshal(raw, &saved); err != nil {
		t.Fatal(err)
	}
	if saved.ActiveConfig.Model != "gpt-candidate" || saved.ActiveConfig.AppliedAt.IsZero() {
		t.Fatalf("saved settings = %+v", saved.ActiveConfig)
	}

	if err := f.svc.ApplyConfiguration(ctx, "mistral", "x"); err == nil {
		t.Fatal("unknown provider should be rejected")
	}
}

func TestTestConfigurationPersistsKeyEvenOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.fn = func(_ context.Context, _ ports.ProviderRequest, cb domain.Callbacks) error {
		cb.OnError(&domain.ProviderError{Provider: domain.ProviderOpenAI, StatusCode: 401, Message: "bad key"})
		return nil
	}

	newKey := "sk-zyxwvutsrqponmlkjihgfedcba"
	result, err := f.svc.TestConfiguration(ctx, domain.ProviderOpenAI, "gpt-test", newKey)
	if err == nil || result.Success {
		t.Fatalf("expected failure, got %+v", result)
	}
	if !result.CallbackFired {
		t.Fatal("error callback should count as fired")
	}
	if key, _ := f.credentials.GetAPIKey(ctx, domain.ProviderOpenAI); key != newKey {
		t.Fatalf("tested key should be persisted, got %q", key)
	}

	if _, err := f.svc.TestConfiguration(ctx, domain.ProviderOpenAI, "gpt-test", "short"); err == nil {
		t.Fatal("malformed key should fail validation")
	}
	if key, _ := f.credentials.GetAPIKey(ctx, domain.ProviderOpenAI); key != newKey {
		t.Fatal("malformed key must not be stored")
	}
}

func TestLoadMigratesLegacySettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	legacy := `{"provider":"deepseek","model":"","enableThinking":false,"showThinking":true,"temperature":0.3,"maxTokens":512}`
	if err := f.settings.Set(ctx, domain.SettingsKeyAI, []byte(legacy)); err != nil {
		t.Fatal(err)
	}
	if err := f.settings.Set(ctx, domain.ModelSettingsKey(domain.ProviderDeepSeek), []byte(`"deepseek-reasoner"`)); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got := f.svc.Settings()
	if got.ActiveConfig.Provider != domain.ProviderDeepSeek || got.ActiveConfig.Model != "deepseek-reasoner" {
		t.Fatalf("active config = %+v", got.ActiveConfig)
	}
	if got.Thinking.Enabled || !got.Thinking.ShowByDefault {
		t.Fatalf("thinking = %+v", got.Thinking)
	}
	if got.Temperature != 0.3 || got.MaxTokens != 512 || !got.Stream {
		t.Fatalf("parameters = %+v", got)
	}

	raw, _, _ := f.settings.Get(ctx, domain.SettingsKeyAI)
	var saved map[string]interface{}
	if err := json.Unmarshal(raw, &saved); err != nil {
		t.Fatal(err)
	}
	if _, ok := saved["provider"]; ok {
		t.Fatalf("legacy fields should be removed after migration: %s", raw)
	}
	if _, ok := saved["activeConfig"]; !ok {
		t.Fatalf("migrated settings not re-saved: %s", raw)
	}
}

func TestLoadWithoutSettingsUsesDefaults(t *testing.T) {
	svc, err := NewService(Deps{
		Registry:    stubRegistry{},
		Credentials: &stubCredentials{},
		Settings:    &stubSettings{},
		History:     &stubHistory{},
		Logger:      logger.NewNop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := svc.Settings(); !got.ActiveConfig.IsZero() || !got.Thinking.Enabled || got.MaxTokens != domain.DefaultMaxTokens {
		t.Fatalf("unexpected defaults %+v", got)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(Deps{}); err == nil {
		t.Fatal("expected dependency error")
	}
}
