package terminal

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Spinner displays an animated spinner while waiting for a response.
// It draws nothing unless the writer is a terminal.
type Spinner struct {
	frames   []string
	interval time.Duration
	writer   io.Writer
	enabled  bool

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewSpinner creates a new spinner
func NewSpinner(w io.Writer) *Spinner {
	return &Spinner{
		frames:   []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		interval: 80 * time.Millisecond,
		writer:   w,
		enabled:  IsTerminal(w),
	}
}

// Start begins the animation next to label. Starting a running spinner is a no-op.
func (s *Spinner) Start(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled || s.stop != nil {
		return
	}
	stop := make(chan struct{})
	s.stop = stop

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for idx := 0; ; idx++ {
			fmt.Fprintf(s.writer, "\r%s %s", s.frames[idx%len(s.frames)], label)
			select {
			case <-stop:
				fmt.Fprint(s.writer, "\r\033[K")
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop clears the spinner line. It is safe to call more than once.
func (s *Spinner) Stop() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	s.wg.Wait()
}
