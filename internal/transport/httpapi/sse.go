package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/profundo-ai/profundo/internal/domain"
)

// doneSentinel terminates every SSE stream, success or failure.
const doneSentinel = "data: [DONE]\n\n"

// SSEWriter frames pipeline events as server-sent events. It
// implements research.Emitter. Writes come from the pipeline
// goroutine; Close may race with it, hence the mutex.
type SSEWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

// NewSSEWriter prepares w for event streaming and sends the SSE
// headers. Fails when the underlying writer cannot flush.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	// Disable proxy buffering so deltas reach the client immediately.
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &SSEWriter{w: w, flusher: flusher}, nil
}

// Emit writes one event frame and flushes it.
func (s *SSEWriter) Emit(event domain.Event) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("stream already closed")
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// Close sends the terminal sentinel. Safe to call more than once;
// only the first call writes.
func (s *SSEWriter) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	fmt.Fprint(s.w, doneSentinel)
	s.flusher.Flush()
}

// wire envelopes pair the discriminator with the event payload.
type wireStage struct {
	Type domain.EventKind `json:"type"`
	domain.StageEvent
}

type wireQueries struct {
	Type domain.EventKind `json:"type"`
	domain.QueriesEvent
}

type wireSource struct {
	Type domain.EventKind `json:"type"`
	domain.SourceEvent
}

type wireTextDelta struct {
	Type domain.EventKind `json:"type"`
	domain.TextDeltaEvent
}

type wireDone struct {
	Type domain.EventKind `json:"type"`
	domain.DoneEvent
}

type wireError struct {
	Type domain.EventKind `json:"type"`
	domain.ErrorEvent
}

// encodeEvent serializes one event with its type discriminator. The
// switch is exhaustive over the event union; an unhandled kind is a
// programming error surfaced at runtime.
func encodeEvent(event domain.Event) ([]byte, error) {
	switch ev := event.(type) {
	case domain.StageEvent:
		return json.Marshal(wireStage{Type: ev.Kind(), StageEvent: ev})
	case domain.QueriesEvent:
		return json.Marshal(wireQueries{Type: ev.Kind(), QueriesEvent: ev})
	case domain.SourceEvent:
		return json.Marshal(wireSource{Type: ev.Kind(), SourceEvent: ev})
	case domain.TextDeltaEvent:
		return json.Marshal(wireTextDelta{Type: ev.Kind(), TextDeltaEvent: ev})
	case domain.DoneEvent:
		return json.Marshal(wireDone{Type: ev.Kind(), DoneEvent: ev})
	case domain.ErrorEvent:
		return json.Marshal(wireError{Type: ev.Kind(), ErrorEvent: ev})
	default:
		return nil, fmt.Errorf("unhandled event kind %q", event.Kind())
	}
}
