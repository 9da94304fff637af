package generation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/pkg/logger"
	"github.com/doeshing/notegen/internal/ports"
)

// stubProvider runs fn as its GenerateContent body and counts invocations.
type stubProvider struct {
	id    domain.ProviderID
	mu    sync.Mutex
	calls []ports.ProviderRequest
	fn    func(ctx context.Context, req ports.ProviderRequest, cb domain.Callbacks) error
}

func (p *stubProvider) ID() domain.ProviderID { return p.id }

func (p *stubProvider) GenerateContent(ctx context.Context, req ports.ProviderRequest, cb domain.Callbacks) error {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()
	if p.fn == nil {
		cb.OnComplete("ok")
		return nil
	}
	return p.fn(ctx, req, cb)
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type stubRegistry struct {
	providers   map[domain.ProviderID]ports.Provider
	keyOptional map[domain.ProviderID]bool
}

func (r stubRegistry) IsValidProviderID(id string) bool {
	return domain.ProviderID(id).Valid()
}

func (r stubRegistry) LoadProvider(_ context.Context, id domain.ProviderID) (ports.Provider, error) {
	if p, ok := r.providers[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, id)
}

func (r stubRegistry) ValidateAPIKey(_ domain.ProviderID, key string) bool {
	return len(key) > 20
}

func (r stubRegistry) RequiresAPIKey(id domain.ProviderID) bool {
	return !r.keyOptional[id]
}

func (r stubRegistry) DefaultModel(id domain.ProviderID) string {
	return string(id) + "-default"
}

func (r stubRegistry) ProviderIDs() []domain.ProviderID {
	return domain.KnownProviders
}

type stubCredentials struct {
	mu   sync.Mutex
	keys map[domain.ProviderID]string
}

func (c *stubCredentials) SetAPIKey(_ context.Context, id domain.ProviderID, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keys == nil {
		c.keys = map[domain.ProviderID]string{}
	}
	c.keys[id] = key
	return nil
}

func (c *stubCredentials) GetAPIKey(_ context.Context, id domain.ProviderID) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if k, ok := c.keys[id]; ok {
		return k, nil
	}
	return "", domain.ErrMissingAPIKey
}

func (c *stubCredentials) ClearAPIKey(_ context.Context, id domain.ProviderID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, id)
	return nil
}

func (c *stubCredentials) ValidateAPIKey(_ domain.ProviderID, key string) bool {
	return len(key) > 20
}

type stubSettings struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *stubSettings) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *stubSettings) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = map[string][]byte{}
	}
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *stubSettings) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *stubSettings) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

type stubHistory struct {
	mu      sync.Mutex
	records []domain.HistoryRecord
}

func (h *stubHistory) Save(_ context.Context, rec domain.HistoryRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	return nil
}

func (h *stubHistory) Get(_ context.Context, id string) (domain.HistoryRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.records {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.HistoryRecord{}, domain.ErrNotFound
}

func (h *stubHistory) List(context.Context, domain.HistoryQuery) ([]domain.HistoryRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.HistoryRecord(nil), h.records...), nil
}

func (h *stubHistory) Clear(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = nil
	return nil
}

func (h *stubHistory) Path() string { return "memory" }

func (h *stubHistory) only(t *testing.T) domain.HistoryRecord {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.records) != 1 {
		t.Fatalf("expected exactly one history record, got %d", len(h.records))
	}
	return h.records[0]
}

type stubTokens struct{}

func (stubTokens) Count(_, text string) int { return len(strings.Fields(text)) }

type fixture struct {
	svc         *Service
	provider    *stubProvider
	credentials *stubCredentials
	settings    *stubSettings
	history     *stubHistory
}

const goodKey = "sk-0123456789abcdefghijklmn"

// newFixture returns a service whose active config is openai/gpt-test with a
// stored key.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		provider:    &stubProvider{id: domain.ProviderOpenAI},
		credentials: &stubCredentials{keys: map[domain.ProviderID]string{domain.ProviderOpenAI: goodKey}},
		settings:    &stubSettings{},
		history:     &stubHistory{},
	}
	svc, err := NewService(Deps{
		Registry: stubRegistry{
			providers: map[domain.ProviderID]ports.Provider{
				domain.ProviderOpenAI: f.provider,
			},
		},
		Credentials: f.credentials,
		Settings:    f.settings,
		History:     f.history,
		Logger:      logger.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	clock := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	svc.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		clock = clock.Add(10 * time.Millisecond)
		return clock
	}
	if err := svc.ApplyConfiguration(context.Background(), domain.ProviderOpenAI, "gpt-test"); err != nil {
		t.Fatalf("ApplyConfiguration() error = %v", err)
	}
	f.svc = svc
	return f
}

// capture records what the caller's callbacks saw.
type capture struct {
	mu       sync.Mutex
	streams  []string
	usage    *domain.TokenUsage
	complete []string
	errs     []error
}

func (c *capture) callbacks() domain.Callbacks {
	return domain.Callbacks{
		OnStream: func(text string, _ []byte) {
			c.mu.Lock()
			c.streams = append(c.streams, text)
			c.mu.Unlock()
		},
		OnUsage: func(u domain.TokenUsage) {
			c.mu.Lock()
			c.usage = &u
			c.mu.Unlock()
		},
		OnComplete: func(content string) {
			c.mu.Lock()
			c.complete = append(c.complete, content)
			c.mu.Unlock()
		},
		OnError: func(err error) {
			c.mu.Lock()
			c.errs = append(c.errs, err)
			c.mu.Unlock()
		},
	}
}
