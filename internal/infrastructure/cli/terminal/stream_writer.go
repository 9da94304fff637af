package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// StreamWriter prints cumulative stream text incrementally.
type StreamWriter struct {
	out     io.Writer
	mu      sync.Mutex
	printed string
}

// NewStreamWriter builds a StreamWriter on out.
func NewStreamWriter(out io.Writer) *StreamWriter {
	return &StreamWriter{out: out}
}

// Write receives the full text generated so far and prints the new suffix.
// Text that does not extend what was printed is restarted on a new line.
func (s *StreamWriter) Write(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if text == "" || text == s.printed {
		return
	}
	if !strings.HasPrefix(text, s.printed) {
		fmt.Fprintln(s.out)
		s.printed = ""
	}
	fmt.Fprint(s.out, text[len(s.printed):])
	s.printed = text
}

// Started reports whether anything was printed.
func (s *StreamWriter) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.printed != ""
}

// Done terminates the streamed block with a newline.
func (s *StreamWriter) Done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.printed != "" && !strings.HasSuffix(s.printed, "\n") {
		fmt.Fprintln(s.out)
	}
}
