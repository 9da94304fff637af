// Package tokens estimates token usage for providers that report none.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/doeshing/notegen/internal/ports"
)

const fallbackEncoding = "cl100k_base"

// Counter counts tokens with the tiktoken encoding of a model, falling back
// to cl100k_base for models tiktoken does not know.
type Counter struct {
	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
}

// NewCounter returns an empty, lazily populated counter.
func NewCounter() *Counter {
	return &Counter{encodings: make(map[string]*tiktoken.Tiktoken)}
}

// Count implements ports.TokenCounter. It returns 0 when no encoding loads.
func (c *Counter) Count(model, text string) int {
	if text == "" {
		return 0
	}
	enc := c.encoding(model)
	if enc == nil {
		return 0
	}
	return len(enc.Encode(text, nil, nil))
}

func (c *Counter) encoding(model string) *tiktoken.Tiktoken {
	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encodings[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil
		}
	}
	c.encodings[model] = enc
	return enc
}

var _ ports.TokenCounter = (*Counter)(nil)
