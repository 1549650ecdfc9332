package translate

import (
	"testing"

	"github.com/florianilch/copilot-bridge/internal/copilotclient"
)

func strPtr(s string) *string { return &s }

func makeChunk(id, model string, choices []copilotclient.ChunkChoice) *copilotclient.ChatCompletionChunk {
	return &copilotclient.ChatCompletionChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: 1234567890,
		Model:   model,
		Choices: choices,
	}
}

func textDeltaChoice(content string) copilotclient.ChunkChoice {
	return copilotclient.ChunkChoice{
		Index: 0,
		Delta: copilotclient.Delta{Content: strPtr(content)},
	}
}

func finishChoice(reason string) copilotclient.ChunkChoice {
	return copilotclient.ChunkChoice{
		Index:        0,
		Delta:        copilotclient.Delta{},
		FinishReason: strPtr(reason),
	}
}

func TestStreamFirstChunkEmitsMessageStartAndText(t *testing.T) {
	tr := NewStreamTranslator(false)
	chunk := makeChunk("c1", "gpt-4", []copilotclient.ChunkChoice{textDeltaChoice("Hello")})
	events := tr.Chunk(chunk)

	if len(events) != 3 {
		t.Fatalf("got %d events: %+v", len(events), events)
	}
	if events[0].Type != "message_start" || events[1].Type != "content_block_start" || events[2].Type != "content_block_delta" {
		t.Fatalf("got types %s %s %s", events[0].Type, events[1].Type, events[2].Type)
	}
	if !tr.state.MessageStartSent || !tr.state.ContentBlockOpen {
		t.Fatal("expected message_start_sent and content_block_open to be true")
	}
}

func TestStreamSubsequentTextReusesBlock(t *testing.T) {
	tr := NewStreamTranslator(false)
	tr.Chunk(makeChunk("c1", "gpt-4", []copilotclient.ChunkChoice{textDeltaChoice("Hello")}))

	events := tr.Chunk(makeChunk("c1", "gpt-4", []copilotclient.ChunkChoice{textDeltaChoice(" world")}))
	if len(events) != 1 || events[0].Type != "content_block_delta" {
		t.Fatalf("got %+v", events)
	}
}

func TestStreamFinishReasonClosesAndStops(t *testing.T) {
	tr := NewStreamTranslator(false)
	tr.Chunk(makeChunk("c1", "gpt-4", []copilotclient.ChunkChoice{textDeltaChoice("Hi")}))

	events := tr.Chunk(makeChunk("c1", "gpt-4", []copilotclient.ChunkChoice{finishChoice("stop")}))
	if len(events) != 3 {
		t.Fatalf("got %d events: %+v", len(events), events)
	}
	if events[0].Type != "content_block_stop" || events[1].Type != "message_delta" || events[2].Type != "message_stop" {
		t.Fatalf("got types %s %s %s", events[0].Type, events[1].Type, events[2].Type)
	}
	if tr.state.ContentBlockOpen {
		t.Fatal("expected content block to be closed")
	}
}

func TestStreamToolCallCreatesNewBlock(t *testing.T) {
	tr := NewStreamTranslator(false)

	chunk1 := makeChunk("c1", "gpt-4", []copilotclient.ChunkChoice{{
		Index: 0,
		Delta: copilotclient.Delta{
			Role: strPtr("assistant"),
			ToolCalls: []copilotclient.DeltaToolCall{{
				Index:    0,
				ID:       strPtr("call_1"),
				Type:     strPtr("function"),
				Function: &copilotclient.DeltaFunction{Name: strPtr("get_weather")},
			}},
		},
	}})
	events := tr.Chunk(chunk1)

	found := false
	for _, e := range events {
		if e.Type == "content_block_start" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a content_block_start event, got %+v", events)
	}
	if _, ok := tr.state.ToolCalls[0]; !ok {
		t.Fatal("expected tool call 0 to be registered")
	}
	if !tr.state.ContentBlockOpen {
		t.Fatal("expected content block open")
	}

	chunk2 := makeChunk("c1", "gpt-4", []copilotclient.ChunkChoice{{
		Index: 0,
		Delta: copilotclient.Delta{
			ToolCalls: []copilotclient.DeltaToolCall{{
				Index:    0,
				Function: &copilotclient.DeltaFunction{Arguments: strPtr(`{"loc`)},
			}},
		},
	}})
	events2 := tr.Chunk(chunk2)
	if len(events2) != 1 || events2[0].Type != "content_block_delta" {
		t.Fatalf("got %+v", events2)
	}
}

func TestStreamTextAfterToolClosesToolBlock(t *testing.T) {
	tr := NewStreamTranslator(false)

	chunk1 := makeChunk("c1", "gpt-4", []copilotclient.ChunkChoice{{
		Index: 0,
		Delta: copilotclient.Delta{
			ToolCalls: []copilotclient.DeltaToolCall{{
				Index:    0,
				ID:       strPtr("call_1"),
				Type:     strPtr("function"),
				Function: &copilotclient.DeltaFunction{Name: strPtr("func")},
			}},
		},
	}})
	tr.Chunk(chunk1)
	if !tr.state.IsToolBlockOpen() {
		t.Fatal("expected tool block open")
	}

	chunk2 := makeChunk("c1", "gpt-4", []copilotclient.ChunkChoice{textDeltaChoice("After tool")})
	events := tr.Chunk(chunk2)

	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}
	wantAll := map[string]bool{"content_block_stop": false, "content_block_start": false, "content_block_delta": false}
	for _, ty := range types {
		if _, ok := wantAll[ty]; ok {
			wantAll[ty] = true
		}
	}
	for ty, got := range wantAll {
		if !got {
			t.Errorf("expected event type %q among %v", ty, types)
		}
	}
}

// TestStreamThinkingEmulationRoutesToThinkingBlock exercises the
// thinking-emulation path: a content delta containing a full thinking span
// must surface as a thinking content block, distinct from plain text.
func TestStreamThinkingEmulationRoutesToThinkingBlock(t *testing.T) {
	tr := NewStreamTranslator(true)

	events := tr.Chunk(makeChunk("c1", "gpt-4", []copilotclient.ChunkChoice{
		textDeltaChoice("<thinking>pondering</thinking>answer"),
	}))

	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}

	if types[0] != "message_start" {
		t.Fatalf("got %v", types)
	}
	// Expect: content_block_start(thinking), content_block_delta(thinking_delta),
	// content_block_stop. The trailing "answer" fits in the parser's 10-char
	// reserve, so no text block is opened by this chunk.
	foundThinkingStart := false
	for i, ty := range types {
		if ty == "content_block_start" && events[i].ContentBlockStart.ContentBlock.Type == "thinking" {
			foundThinkingStart = true
		}
	}
	if !foundThinkingStart {
		t.Fatalf("expected a thinking content_block_start, got %+v", types)
	}
}

func TestStreamFinishReportsUsage(t *testing.T) {
	tr := NewStreamTranslator(false)
	tr.Chunk(makeChunk("c1", "gpt-4", []copilotclient.ChunkChoice{textDeltaChoice("Hi")}))

	chunk := makeChunk("c1", "gpt-4", []copilotclient.ChunkChoice{finishChoice("length")})
	chunk.Usage = &copilotclient.Usage{PromptTokens: 20, CompletionTokens: 10, TotalTokens: 30}
	events := tr.Chunk(chunk)

	for _, e := range events {
		if e.Type == "message_delta" {
			if e.MessageDelta.Delta.StopReason == nil {
				t.Fatal("expected stop_reason to be set")
			}
			if string(*e.MessageDelta.Delta.StopReason) != "max_tokens" {
				t.Errorf("stop_reason = %s, want max_tokens", *e.MessageDelta.Delta.StopReason)
			}
			if e.MessageDelta.Usage == nil || e.MessageDelta.Usage.OutputTokens != 10 {
				t.Errorf("usage = %+v", e.MessageDelta.Usage)
			}
		}
	}
}
