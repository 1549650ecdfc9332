package sse_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/florianilch/copilot-bridge/internal/anthropic"
	"github.com/florianilch/copilot-bridge/internal/sse"
)

func TestWriteEventEmitsEventAndDataLines(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := sse.NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	ev := anthropic.NewMessageStopEvent()
	if err := w.WriteEvent(ev); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}

	body := rec.Body.String()
	if !strings.HasPrefix(body, "event: message_stop\n") {
		t.Fatalf("got body %q", body)
	}
	if !strings.Contains(body, "data: ") {
		t.Fatalf("expected a data line, got %q", body)
	}
	if !strings.HasSuffix(body, "\n\n") {
		t.Fatalf("expected trailing blank line, got %q", body)
	}
}

func TestWriteEventSetsStreamingHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	if _, err := sse.NewWriter(rec); err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream;charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q", cc)
	}
}
