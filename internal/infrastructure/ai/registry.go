// Package ai holds the provider catalogue, the memoizing registry and the
// vendor adapters behind ports.Provider.
//
// Adapters:
//   - openai, deepseek, qwen: OpenAI-compatible chat completions via openai-go
//   - anthropic: Messages API over HTTP, SSE decoded with openai-go's ssestream
//   - ollama: native ollama/api client
package ai

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/alphadose/haxmap"
	"golang.org/x/sync/singleflight"

	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/ports"
)

// Registry maps provider ids to adapters, constructing each at most once per
// process. Failed constructions are not cached.
type Registry struct {
	specs  map[domain.ProviderID]ProviderSpec
	cache  *haxmap.Map[string, ports.Provider]
	group  singleflight.Group
	loads  atomic.Int64
	logger ports.Logger
}

// NewRegistry creates a registry over the given catalogue.
func NewRegistry(specs map[domain.ProviderID]ProviderSpec, logger ports.Logger) *Registry {
	return &Registry{
		specs:  specs,
		cache:  haxmap.New[string, ports.Provider](),
		logger: logger,
	}
}

// IsValidProviderID reports whether id names a catalogue entry.
func (r *Registry) IsValidProviderID(id string) bool {
	_, ok := r.specs[domain.ProviderID(id)]
	return ok
}

// LoadProvider returns the cached adapter for id, constructing it on first
// use. Concurrent callers for an unresolved id share one construction.
func (r *Registry) LoadProvider(ctx context.Context, id domain.ProviderID) (ports.Provider, error) {
	if p, ok := r.cache.Get(string(id)); ok {
		return p, nil
	}
	spec, ok := r.specs[id]
	if !ok || spec.New == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, id)
	}

	v, err, _ := r.group.Do(string(id), func() (interface{}, error) {
		if p, ok := r.cache.Get(string(id)); ok {
			return p, nil
		}
		p, err := spec.New(ctx)
		if err != nil {
			return nil, err
		}
		r.cache.Set(string(id), p)
		r.loads.Add(1)
		r.debug("provider loaded", map[string]interface{}{"provider": id})
		return p, nil
	})
	if err != nil {
		r.debug("provider load failed", map[string]interface{}{"provider": id, "error": err.Error()})
		return nil, fmt.Errorf("load provider %s: %w", id, err)
	}
	return v.(ports.Provider), nil
}

// ValidateAPIKey applies the provider's key heuristic, or a length check for
// unknown ids.
func (r *Registry) ValidateAPIKey(id domain.ProviderID, key string) bool {
	spec, ok := r.specs[id]
	if !ok || spec.ValidateKey == nil {
		return fallbackKeyCheck(key)
	}
	return spec.ValidateKey(key)
}

// RequiresAPIKey reports whether generation needs a stored credential.
func (r *Registry) RequiresAPIKey(id domain.ProviderID) bool {
	spec, ok := r.specs[id]
	return !ok || !spec.KeyOptional
}

// DefaultModel returns the catalogue default, or "" for unknown ids.
func (r *Registry) DefaultModel(id domain.ProviderID) string {
	return r.specs[id].DefaultModel
}

// ProviderIDs lists catalogue ids, known providers first in display order.
func (r *Registry) ProviderIDs() []domain.ProviderID {
	ids := make([]domain.ProviderID, 0, len(r.specs))
	for _, id := range domain.KnownProviders {
		if _, ok := r.specs[id]; ok {
			ids = append(ids, id)
		}
	}
	var extra []domain.ProviderID
	for id := range r.specs {
		if !id.Valid() {
			extra = append(extra, id)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(ids, extra...)
}

// Loads returns how many adapters have been constructed.
func (r *Registry) Loads() int64 {
	return r.loads.Load()
}

func (r *Registry) debug(msg string, fields map[string]interface{}) {
	if r.logger != nil {
		r.logger.Debug(msg, fields)
	}
}

var _ ports.ProviderRegistry = (*Registry)(nil)
