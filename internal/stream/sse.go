package stream

import (
	"fmt"
	"io"
	"net/http"
	"sync"
)

// SSESink writes stream chunks as server-sent-event frames
// ("data: <payload>\n\n"), flushing after each so the browser sees words as
// they arrive.
type SSESink struct {
	mu      sync.Mutex
	writer  io.Writer
	flusher http.Flusher
	closed  bool
}

// NewSSESink wraps an HTTP response writer. The flusher may be nil in tests.
func NewSSESink(w io.Writer, flusher http.Flusher) *SSESink {
	return &SSESink{writer: w, flusher: flusher}
}

// WriteChunk emits one SSE data frame.
func (s *SSESink) WriteChunk(payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	if _, err := fmt.Fprintf(s.writer, "data: %s\n\n", payload); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// Close marks the sink finished; later writes fail with ErrSinkClosed.
func (s *SSESink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
