package oai

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// SSEWriter frames JSON payloads as Server-Sent Events on an HTTP response,
// flushing after every event so clients observe chunks as they are produced.
type SSEWriter struct {
	w       io.Writer
	flusher http.Flusher
}

// NewSSEWriter wraps w for SSE output and sets the event-stream headers.
// If w does not implement http.Flusher events are still written, just not
// flushed eagerly (the case in tests using plain buffers).
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)
	return &SSEWriter{w: w, flusher: flusher}
}

// WriteJSON marshals v and writes it as a single `data: <json>\n\n` event.
func (s *SSEWriter) WriteJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("oai: marshal sse event: %w", err)
	}
	return s.WriteRaw(b)
}

// WriteRaw writes pre-marshalled JSON as one SSE event.
func (s *SSEWriter) WriteRaw(b []byte) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// WriteDone terminates the stream with the `data: [DONE]` sentinel.
func (s *SSEWriter) WriteDone() error {
	if _, err := io.WriteString(s.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
