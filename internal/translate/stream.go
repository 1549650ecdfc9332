package translate

import (
	"github.com/florianilch/copilot-bridge/internal/anthropic"
	"github.com/florianilch/copilot-bridge/internal/copilotclient"
)

// StreamTranslator converts a sequence of OpenAI-shaped streaming chunks
// into the matching sequence of Anthropic SSE events, one instance per
// in-flight request. When built with thinking emulation enabled, text
// deltas are routed through a ThinkingParser so that <thinking> spans
// surface as their own Anthropic thinking content blocks.
type StreamTranslator struct {
	state    *anthropic.StreamState
	thinking *ThinkingParser
}

// NewStreamTranslator returns a translator for one streaming response.
func NewStreamTranslator(emulateThinking bool) *StreamTranslator {
	st := &StreamTranslator{state: anthropic.NewStreamState()}
	if emulateThinking {
		st.thinking = NewThinkingParser()
	}
	return st
}

// Chunk translates one upstream chunk into zero or more Anthropic events.
func (st *StreamTranslator) Chunk(chunk *copilotclient.ChatCompletionChunk) []anthropic.StreamEvent {
	var events []anthropic.StreamEvent

	if len(chunk.Choices) == 0 {
		return events
	}
	choice := chunk.Choices[0]
	delta := choice.Delta

	if !st.state.MessageStartSent {
		inputTokens, cacheRead := extractInputUsage(chunk)
		usage := anthropic.Usage{InputTokens: inputTokens}
		if cacheRead > 0 {
			usage.CacheReadInputTokens = &cacheRead
		}
		events = append(events, anthropic.NewMessageStartEvent(anthropic.MessageStartBody{
			ID:      chunk.ID,
			Type:    "message",
			Role:    "assistant",
			Content: []struct{}{},
			Model:   chunk.Model,
			Usage:   usage,
		}))
		st.state.MessageStartSent = true
	}

	if delta.Content != nil {
		if st.thinking != nil {
			events = append(events, st.handleThinkingText(*delta.Content)...)
		} else {
			events = append(events, st.handlePlainText(*delta.Content)...)
		}
	}

	if delta.ToolCalls != nil {
		for _, tc := range delta.ToolCalls {
			if tc.ID != nil && tc.Function != nil && tc.Function.Name != nil {
				if st.state.ContentBlockOpen {
					events = append(events, st.closeForSwitch())
				}
				idx := st.state.ContentBlockIndex
				st.state.ToolCalls[tc.Index] = &anthropic.ToolCallState{
					ID:                  *tc.ID,
					Name:                *tc.Function.Name,
					AnthropicBlockIndex: idx,
				}
				events = append(events, anthropic.NewContentBlockStartEvent(idx, anthropic.NewToolUseContentBlockStart(*tc.ID, *tc.Function.Name)))
				st.state.ContentBlockOpen = true
			}

			if tc.Function != nil && tc.Function.Arguments != nil {
				if tcState, ok := st.state.ToolCalls[tc.Index]; ok {
					events = append(events, anthropic.NewContentBlockDeltaEvent(tcState.AnthropicBlockIndex, anthropic.NewInputJSONDelta(*tc.Function.Arguments)))
				}
			}
		}
	}

	if choice.FinishReason != nil {
		// Flush the thinking parser's reserve before closing, so no text
		// follows message_stop; a later Finish call then has nothing left.
		events = append(events, st.Finish()...)
		st.thinking = nil

		if st.state.ContentBlockOpen {
			events = append(events, anthropic.NewContentBlockStopEvent(st.state.ContentBlockIndex))
			st.state.ContentBlockOpen = false
		}

		inputTokens, cacheRead := extractInputUsage(chunk)
		var outputTokens int64
		if chunk.Usage != nil {
			outputTokens = chunk.Usage.CompletionTokens
		}
		usage := anthropic.Usage{InputTokens: inputTokens, OutputTokens: outputTokens}
		if cacheRead > 0 {
			usage.CacheReadInputTokens = &cacheRead
		}

		sr := mapStopReason(*choice.FinishReason)
		events = append(events, anthropic.NewMessageDeltaEvent(anthropic.MessageDeltaBody{StopReason: &sr}, &usage))
		events = append(events, anthropic.NewMessageStopEvent())
	}

	return events
}

// Finish flushes any thinking/text content still held back by the
// ThinkingParser's reserve buffer, opening a text block for trailing text
// when none is open. It does not close the block and emits no
// message_delta or message_stop. Chunk calls it when a finish_reason
// arrives; the caller calls it again after the upstream stream ends, which
// only yields events when the stream ended without a finish_reason (so a
// truncated connection does not lose buffered text).
func (st *StreamTranslator) Finish() []anthropic.StreamEvent {
	var events []anthropic.StreamEvent
	if st.thinking == nil {
		return events
	}
	final := st.thinking.Finish()
	if final == nil {
		return events
	}
	switch final.Kind {
	case ThinkingDelta:
		if st.state.ContentBlockOpen {
			events = append(events, anthropic.NewContentBlockDeltaEvent(st.state.ContentBlockIndex, anthropic.NewThinkingDelta(final.Text)))
		}
	case TextDelta:
		if st.state.IsToolBlockOpen() {
			events = append(events, st.closeForSwitch())
		}
		if !st.state.ContentBlockOpen {
			events = append(events, st.openTextBlock())
		}
		events = append(events, anthropic.NewContentBlockDeltaEvent(st.state.ContentBlockIndex, anthropic.NewTextDelta(final.Text)))
	}
	return events
}

func (st *StreamTranslator) handlePlainText(text string) []anthropic.StreamEvent {
	var events []anthropic.StreamEvent
	if st.state.IsToolBlockOpen() {
		events = append(events, st.closeForSwitch())
	}
	if !st.state.ContentBlockOpen {
		events = append(events, st.openTextBlock())
	}
	events = append(events, anthropic.NewContentBlockDeltaEvent(st.state.ContentBlockIndex, anthropic.NewTextDelta(text)))
	return events
}

func (st *StreamTranslator) handleThinkingText(text string) []anthropic.StreamEvent {
	var events []anthropic.StreamEvent
	for _, ev := range st.thinking.Push(text) {
		switch ev.Kind {
		case ThinkingStart:
			if st.state.ContentBlockOpen {
				events = append(events, st.closeForSwitch())
			}
			events = append(events, st.openThinkingBlock())
		case ThinkingDelta:
			events = append(events, anthropic.NewContentBlockDeltaEvent(st.state.ContentBlockIndex, anthropic.NewThinkingDelta(ev.Text)))
		case ThinkingEnd:
			events = append(events, st.closeForSwitch())
		case TextDelta:
			if st.state.IsToolBlockOpen() {
				events = append(events, st.closeForSwitch())
			}
			if !st.state.ContentBlockOpen {
				events = append(events, st.openTextBlock())
			}
			events = append(events, anthropic.NewContentBlockDeltaEvent(st.state.ContentBlockIndex, anthropic.NewTextDelta(ev.Text)))
		}
	}
	return events
}

func (st *StreamTranslator) openTextBlock() anthropic.StreamEvent {
	ev := anthropic.NewContentBlockStartEvent(st.state.ContentBlockIndex, anthropic.NewTextContentBlockStart())
	st.state.ContentBlockOpen = true
	return ev
}

func (st *StreamTranslator) openThinkingBlock() anthropic.StreamEvent {
	ev := anthropic.NewContentBlockStartEvent(st.state.ContentBlockIndex, anthropic.ContentBlockStartBody{Type: "thinking"})
	st.state.ContentBlockOpen = true
	return ev
}

func (st *StreamTranslator) closeForSwitch() anthropic.StreamEvent {
	ev := anthropic.NewContentBlockStopEvent(st.state.ContentBlockIndex)
	st.state.ContentBlockIndex++
	st.state.ContentBlockOpen = false
	return ev
}

func extractInputUsage(chunk *copilotclient.ChatCompletionChunk) (inputTokens, cacheRead int64) {
	if chunk.Usage == nil {
		return 0, 0
	}
	cached := int64(0)
	if chunk.Usage.PromptTokensDetails != nil {
		cached = chunk.Usage.PromptTokensDetails.CachedTokens
	}
	input := chunk.Usage.PromptTokens - cached
	if input < 0 {
		input = 0
	}
	return input, cached
}
