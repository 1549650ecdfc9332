package sse

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/florianilch/copilot-bridge/internal/anthropic"
)

// Pre-allocated byte slices for SSE formatting to eliminate allocations on every write.
var (
	sseEventPrefix = []byte("event: ")
	sseDataPrefix  = []byte("data: ")
	sseTerminator  = []byte("\n\n")
	newline        = []byte("\n")
)

// Writer wraps http.ResponseWriter with the Server-Sent Events framing this
// proxy hands back to Anthropic-speaking clients. Every event is written as
// an "event: <type>" line followed by a "data: <json>" line, mirroring the
// shape Anthropic's own Messages API streams.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter validates flushing support and sets the required SSE headers.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter doesn't implement http.Flusher")
	}

	w.Header().Set("Content-Type", "text/event-stream;charset=utf-8")
	w.Header().Set("Connection", "keep-alive")
	if w.Header().Get("Cache-Control") == "" {
		w.Header().Set("Cache-Control", "no-cache")
	}

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteEvent serializes ev's payload to JSON and writes it as a named SSE
// event, using ev.Type as the "event:" line.
func (s *Writer) WriteEvent(ev anthropic.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}

	if _, err := s.w.Write(sseEventPrefix); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte(ev.Type)); err != nil {
		return err
	}
	if _, err := s.w.Write(newline); err != nil {
		return err
	}

	if _, err := s.w.Write(sseDataPrefix); err != nil {
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	if _, err := s.w.Write(sseTerminator); err != nil {
		return err
	}

	s.flusher.Flush()
	return nil
}
