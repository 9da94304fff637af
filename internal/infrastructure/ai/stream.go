package ai

import (
	"strings"
	"sync"

	"github.com/doeshing/notegen/internal/domain"
)

// emitter owns text accumulation for one request and guarantees that exactly
// one terminal callback reaches the caller.
type emitter struct {
	cb domain.Callbacks

	mu       sync.Mutex
	buf      strings.Builder
	finished bool
	usage    bool
}

func newEmitter(cb domain.Callbacks) *emitter {
	return &emitter{cb: cb}
}

// delta appends text and forwards the cumulative result with the raw chunk.
func (e *emitter) delta(text string, raw []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.finished {
		return
	}
	e.buf.WriteString(text)
	if e.cb.OnStream != nil {
		e.cb.OnStream(e.buf.String(), raw)
	}
}

func (e *emitter) reportUsage(u domain.TokenUsage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.finished || e.usage || u.TotalTokens == 0 {
		return
	}
	e.usage = true
	if e.cb.OnUsage != nil {
		e.cb.OnUsage(u)
	}
}

func (e *emitter) text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buf.String()
}

// complete fires OnComplete with the accumulated text.
func (e *emitter) complete() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.finished {
		return
	}
	e.finished = true
	if e.cb.OnComplete != nil {
		e.cb.OnComplete(e.buf.String())
	}
}

func (e *emitter) fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.finished {
		return
	}
	e.finished = true
	if e.cb.OnError != nil {
		e.cb.OnError(err)
	}
}
