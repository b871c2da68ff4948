// Package stream delivers reply text as an ordered sequence of small chunks
// over a one-directional sink, terminated by a reserved end-of-stream marker.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// EndMarker is the reserved end-of-stream sentinel. It is always the last
// event on a stream and never a valid chunk payload.
const EndMarker = "[END]"

// ErrSinkClosed indicates a write after the sink was closed.
var ErrSinkClosed = errors.New("stream sink closed")

// Sink receives stream chunks in order. WriteChunk must reject writes after
// Close.
type Sink interface {
	WriteChunk(payload string) error
	Close() error
}

// Emitter paces chunk delivery to simulate incremental arrival.
type Emitter struct {
	delay  time.Duration
	logger *slog.Logger
}

// NewEmitter creates an emitter with the given inter-chunk delay.
func NewEmitter(log *slog.Logger, delay time.Duration) *Emitter {
	if log == nil {
		log = slog.Default()
	}
	return &Emitter{
		delay:  delay,
		logger: log.With(slog.String("service", "stream")),
	}
}

// Emit splits text on whitespace and writes one chunk per word, then the end
// marker, then closes the sink. An empty reply still gets the end marker.
// Context cancellation (client gone) stops emission; the sink is closed on
// every path.
func (e *Emitter) Emit(ctx context.Context, sink Sink, text string) error {
	defer sink.Close()

	words := strings.Fields(text)
	for i, word := range words {
		if i > 0 && e.delay > 0 {
			select {
			case <-ctx.Done():
				e.logger.Info("stream abandoned", slog.Int("emitted", i), slog.Int("total", len(words)))
				return ctx.Err()
			case <-time.After(e.delay):
			}
		}
		if err := sink.WriteChunk(escapeChunk(word)); err != nil {
			return err
		}
	}
	return sink.WriteChunk(EndMarker)
}

// EmitError writes a single human-readable error chunk followed by the end
// marker, then closes the sink.
func (e *Emitter) EmitError(ctx context.Context, sink Sink, message string) error {
	defer sink.Close()

	if err := sink.WriteChunk(escapeChunk(message)); err != nil {
		return err
	}
	return sink.WriteChunk(EndMarker)
}

// Forward passes upstream-native chunks through as received, without
// re-splitting or pacing, then terminates and closes the sink.
func (e *Emitter) Forward(ctx context.Context, sink Sink, chunks <-chan string) error {
	defer sink.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return sink.WriteChunk(EndMarker)
			}
			if err := sink.WriteChunk(escapeChunk(chunk)); err != nil {
				return err
			}
		}
	}
}

// escapeChunk keeps a benign payload collision with the sentinel from
// terminating the stream early.
func escapeChunk(payload string) string {
	if payload == EndMarker {
		return `\` + EndMarker
	}
	return payload
}
