package ai

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/ports"
)

type stubProvider struct {
	id domain.ProviderID
}

func (s *stubProvider) ID() domain.ProviderID { return s.id }

func (s *stubProvider) GenerateContent(context.Context, ports.ProviderRequest, domain.Callbacks) error {
	return nil
}

func countingSpec(id domain.ProviderID, calls *atomic.Int32, delay time.Duration) ProviderSpec {
	return ProviderSpec{
		DefaultModel: "stub-model",
		ValidateKey:  prefixedKey("sk-"),
		New: func(context.Context) (ports.Provider, error) {
			calls.Add(1)
			time.Sleep(delay)
			return &stubProvider{id: id}, nil
		},
	}
}

func TestRegistry_LoadProviderMemoizes(t *testing.T) {
	var calls atomic.Int32
	reg := NewRegistry(map[domain.ProviderID]ProviderSpec{
		domain.ProviderOpenAI: countingSpec(domain.ProviderOpenAI, &calls, 0),
	}, nil)

	first, err := reg.LoadProvider(context.Background(), domain.ProviderOpenAI)
	require.NoError(t, err)
	second, err := reg.LoadProvider(context.Background(), domain.ProviderOpenAI)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(1), reg.Loads())
}

func TestRegistry_ConcurrentLoadsShareConstruction(t *testing.T) {
	var calls atomic.Int32
	reg := NewRegistry(map[domain.ProviderID]ProviderSpec{
		domain.ProviderDeepSeek: countingSpec(domain.ProviderDeepSeek, &calls, 20*time.Millisecond),
	}, nil)

	const workers = 16
	results := make([]ports.Provider, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := reg.LoadProvider(context.Background(), domain.ProviderDeepSeek)
			assert.NoError(t, err)
			results[i] = p
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, p := range results {
		assert.Same(t, results[0], p)
	}
}

func TestRegistry_UnknownProviderFailsIdentically(t *testing.T) {
	reg := NewRegistry(DefaultSpecs(domain.Config{}, nil), nil)

	_, err1 := reg.LoadProvider(context.Background(), "mystery")
	_, err2 := reg.LoadProvider(context.Background(), "mystery")

	require.Error(t, err1)
	require.Error(t, err2)
	assert.ErrorIs(t, err1, domain.ErrUnknownProvider)
	assert.Equal(t, err1.Error(), err2.Error())
	assert.Equal(t, int64(0), reg.Loads())
}

func TestRegistry_FailedConstructionNotCached(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("boom")
	reg := NewRegistry(map[domain.ProviderID]ProviderSpec{
		domain.ProviderQwen: {
			New: func(context.Context) (ports.Provider, error) {
				if calls.Add(1) == 1 {
					return nil, boom
				}
				return &stubProvider{id: domain.ProviderQwen}, nil
			},
		},
	}, nil)

	_, err := reg.LoadProvider(context.Background(), domain.ProviderQwen)
	assert.ErrorIs(t, err, boom)

	p, err := reg.LoadProvider(context.Background(), domain.ProviderQwen)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderQwen, p.ID())
	assert.Equal(t, int32(2), calls.Load())
}

func TestRegistry_ValidateAPIKey(t *testing.T) {
	reg := NewRegistry(DefaultSpecs(domain.Config{}, nil), nil)

	tests := []struct {
		id   domain.ProviderID
		key  string
		want bool
	}{
		{domain.ProviderOpenAI, "sk-abcdefghijklmnopqrstuvwxyz", true},
		{domain.ProviderOpenAI, "sk-short", false},
		{domain.ProviderOpenAI, "pk-abcdefghijklmnopqrstuvwxyz", false},
		{domain.ProviderAnthropic, "sk-ant-REDACTED", true},
		{domain.ProviderAnthropic, "sk-abcdefghijklmnopqrstuvwxyz", false},
		{domain.ProviderDeepSeek, "sk-0123456789abcdef01234", true},
		{domain.ProviderQwen, "sk-0123456789abcdef01234", true},
		{domain.ProviderOllama, "anything", true},
		{domain.ProviderOllama, "  ", false},
		{"mystery", "123456789012345678901", true},
		{"mystery", "12345678901234567890", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, reg.ValidateAPIKey(tt.id, tt.key), "%s/%s", tt.id, tt.key)
	}
}

func TestRegistry_Catalogue(t *testing.T) {
	reg := NewRegistry(DefaultSpecs(domain.Config{}, nil), nil)

	assert.Equal(t, domain.KnownProviders, reg.ProviderIDs())
	assert.True(t, reg.IsValidProviderID("anthropic"))
	assert.False(t, reg.IsValidProviderID("mystery"))
	assert.Equal(t, "gpt-4o-mini", reg.DefaultModel(domain.ProviderOpenAI))
	assert.Equal(t, "deepseek-chat", reg.DefaultModel(domain.ProviderDeepSeek))
	assert.Empty(t, reg.DefaultModel("mystery"))
	assert.False(t, reg.RequiresAPIKey(domain.ProviderOllama))
	assert.True(t, reg.RequiresAPIKey(domain.ProviderOpenAI))
	assert.True(t, reg.RequiresAPIKey("mystery"))
}

func TestRegistry_DefaultSpecsConstructEveryProvider(t *testing.T) {
	reg := NewRegistry(DefaultSpecs(domain.Config{}, nil), nil)
	for _, id := range domain.KnownProviders {
		p, err := reg.LoadProvider(context.Background(), id)
		require.NoError(t, err, id)
		assert.Equal(t, id, p.ID())
	}
}
