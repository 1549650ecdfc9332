package translate

import (
	"encoding/json"

	"github.com/florianilch/copilot-bridge/internal/anthropic"
	"github.com/florianilch/copilot-bridge/internal/copilotclient"
)

// Response translates a non-streaming Copilot chat completion into an
// Anthropic Messages response. When emulateThinking is set, assistant text
// is scanned for <thinking>...</thinking> tags and split into separate
// thinking/text blocks; otherwise the text is kept as a single text block.
func Response(resp *copilotclient.ChatCompletionResponse, emulateThinking bool) *anthropic.MessagesResponse {
	var content []anthropic.AssistantContentBlock
	var toolBlocks []anthropic.AssistantContentBlock
	var stopReason *anthropic.StopReason

	for i, choice := range resp.Choices {
		if choice.Message.Content != nil && *choice.Message.Content != "" {
			if emulateThinking {
				content = append(content, ParseThinkingBlocks(*choice.Message.Content)...)
			} else {
				content = append(content, anthropic.NewTextBlock(*choice.Message.Content))
			}
		}

		for _, tc := range choice.Message.ToolCalls {
			toolBlocks = append(toolBlocks, translateToolCall(tc))
		}

		if i == 0 && choice.FinishReason != nil {
			sr := mapStopReason(*choice.FinishReason)
			stopReason = &sr
		}
		if choice.FinishReason != nil && *choice.FinishReason == "tool_calls" {
			sr := anthropic.StopReasonToolUse
			stopReason = &sr
		}
	}

	content = append(content, toolBlocks...)

	var inputTokens, outputTokens, cacheRead int64
	if resp.Usage != nil {
		cached := int64(0)
		if resp.Usage.PromptTokensDetails != nil {
			cached = resp.Usage.PromptTokensDetails.CachedTokens
		}
		inputTokens = resp.Usage.PromptTokens - cached
		if inputTokens < 0 {
			inputTokens = 0
		}
		outputTokens = resp.Usage.CompletionTokens
		cacheRead = cached
	}

	usage := anthropic.Usage{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}
	if cacheRead > 0 {
		usage.CacheReadInputTokens = &cacheRead
	}

	return &anthropic.MessagesResponse{
		ID:         resp.ID,
		Type:       "message",
		Role:       "assistant",
		Model:      resp.Model,
		Content:    content,
		StopReason: stopReason,
		Usage:      usage,
	}
}

func translateToolCall(tc copilotclient.ToolCall) anthropic.AssistantContentBlock {
	input := json.RawMessage(tc.Function.Arguments)
	if !json.Valid(input) {
		input = json.RawMessage("{}")
	}
	return anthropic.NewToolUseBlock(tc.ID, tc.Function.Name, input)
}

func mapStopReason(reason string) anthropic.StopReason {
	switch reason {
	case "stop":
		return anthropic.StopReasonEndTurn
	case "length":
		return anthropic.StopReasonMaxTokens
	case "tool_calls":
		return anthropic.StopReasonToolUse
	case "content_filter":
		return anthropic.StopReasonEndTurn
	default:
		return anthropic.StopReasonEndTurn
	}
}
