// Package translate converts between Anthropic's Messages wire format and
// the OpenAI-shaped schema Copilot actually speaks, in both directions and
// for both streaming and non-streaming responses.
package translate

import (
	"encoding/json"
	"strings"

	"github.com/florianilch/copilot-bridge/internal/anthropic"
	"github.com/florianilch/copilot-bridge/internal/copilotclient"
)

// Request translates a client's Anthropic Messages request into the
// OpenAI-shaped body Copilot accepts. model is the already-renamer-resolved
// upstream model ID — the caller handles the Renamer.Resolve step before
// calling Request.
func Request(req *anthropic.MessagesRequest, model string) *copilotclient.ChatCompletionsRequest {
	out := &copilotclient.ChatCompletionsRequest{
		Model:       normalizeModelName(model),
		Messages:    translateMessages(req.Messages, req.System),
		MaxTokens:   &req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      req.Stream,
	}

	if len(req.StopSequences) == 1 {
		out.Stop = &copilotclient.Stop{Single: req.StopSequences[0]}
	} else if len(req.StopSequences) > 1 {
		out.Stop = &copilotclient.Stop{Multiple: req.StopSequences}
	}

	if req.Tools != nil {
		out.Tools = translateTools(req.Tools)
	}
	if req.ToolChoice != nil {
		out.ToolChoice = translateToolChoice(req.ToolChoice)
	}
	if req.Metadata != nil {
		out.User = req.Metadata.UserID
	}

	return out
}

// normalizeModelName collapses any "claude-sonnet-4-<suffix>" or
// "claude-opus-4-<suffix>" ID with a non-empty suffix down to its bare
// family name, independent of whatever the Renamer already did. IDs such as
// "claude-sonnet-4.5" (no dash after the 4) pass through unchanged.
func normalizeModelName(model string) string {
	if rest, ok := strings.CutPrefix(model, "claude-sonnet-4-"); ok && rest != "" {
		return "claude-sonnet-4"
	}
	if rest, ok := strings.CutPrefix(model, "claude-opus-4-"); ok && rest != "" {
		return "claude-opus-4"
	}
	return model
}

func translateMessages(messages []anthropic.Message, system *anthropic.SystemPrompt) []copilotclient.Message {
	var out []copilotclient.Message

	if system != nil {
		out = append(out, copilotclient.Message{
			Role:    "system",
			Content: copilotclient.NewTextContent(systemPromptToString(system)),
		})
	}

	for _, msg := range messages {
		switch {
		case msg.Content.User != nil:
			out = append(out, translateUserMessage(msg.Content.User)...)
		case msg.Content.Assistant != nil:
			out = append(out, translateAssistantMessage(msg.Content.Assistant)...)
		}
	}

	return out
}

func systemPromptToString(sys *anthropic.SystemPrompt) string {
	if sys.Text != nil {
		return *sys.Text
	}
	parts := make([]string, len(sys.Blocks))
	for i, b := range sys.Blocks {
		parts[i] = b.Text
	}
	return strings.Join(parts, "\n\n")
}

func translateUserMessage(content *anthropic.UserContent) []copilotclient.Message {
	if content.Text != nil {
		return []copilotclient.Message{{
			Role:    "user",
			Content: copilotclient.NewTextContent(*content.Text),
		}}
	}

	var out []copilotclient.Message

	// Tool results must come first, one "tool" message per result.
	for _, block := range content.Blocks {
		if block.ToolResult != nil {
			toolUseID := block.ToolResult.ToolUseID
			out = append(out, copilotclient.Message{
				Role:       "tool",
				Content:    copilotclient.NewTextContent(block.ToolResult.Content),
				ToolCallID: &toolUseID,
			})
		}
	}

	var others []anthropic.UserContentBlock
	for _, block := range content.Blocks {
		if block.ToolResult == nil {
			others = append(others, block)
		}
	}

	if len(others) == 0 {
		return out
	}

	hasImage := false
	for _, b := range others {
		if b.Image != nil {
			hasImage = true
			break
		}
	}

	if hasImage {
		var parts []copilotclient.ContentPart
		for _, b := range others {
			switch {
			case b.Text != nil:
				parts = append(parts, copilotclient.ContentPart{Type: "text", Text: b.Text.Text})
			case b.Image != nil:
				parts = append(parts, copilotclient.ContentPart{
					Type: "image_url",
					ImageURL: &copilotclient.ImageURL{
						URL: "data:" + b.Image.Source.MediaType + ";base64," + b.Image.Source.Data,
					},
				})
			}
		}
		out = append(out, copilotclient.Message{
			Role:    "user",
			Content: copilotclient.NewPartsContent(parts),
		})
	} else {
		var texts []string
		for _, b := range others {
			if b.Text != nil {
				texts = append(texts, b.Text.Text)
			}
		}
		out = append(out, copilotclient.Message{
			Role:    "user",
			Content: copilotclient.NewTextContent(strings.Join(texts, "\n\n")),
		})
	}

	return out
}

func translateAssistantMessage(content *anthropic.AssistantContent) []copilotclient.Message {
	if content.Text != nil {
		return []copilotclient.Message{{
			Role:    "assistant",
			Content: copilotclient.NewTextContent(*content.Text),
		}}
	}

	var toolUseBlocks []*anthropic.ToolUseBlock
	var textParts []string
	for _, b := range content.Blocks {
		switch {
		case b.ToolUse != nil:
			toolUseBlocks = append(toolUseBlocks, b.ToolUse)
		case b.Text != nil:
			textParts = append(textParts, b.Text.Text)
		case b.Thinking != nil:
			textParts = append(textParts, b.Thinking.Thinking)
		}
	}
	textContent := strings.Join(textParts, "\n\n")

	msg := copilotclient.Message{Role: "assistant"}
	if textContent != "" {
		msg.Content = copilotclient.NewTextContent(textContent)
	}

	if len(toolUseBlocks) > 0 {
		toolCalls := make([]copilotclient.ToolCall, len(toolUseBlocks))
		for i, tu := range toolUseBlocks {
			args, err := json.Marshal(tu.Input)
			if err != nil || len(tu.Input) == 0 {
				args = []byte("{}")
			}
			toolCalls[i] = copilotclient.ToolCall{
				ID:   tu.ID,
				Type: "function",
				Function: copilotclient.ToolCallFunction{
					Name:      tu.Name,
					Arguments: string(args),
				},
			}
		}
		msg.ToolCalls = toolCalls
	}

	return []copilotclient.Message{msg}
}

func translateTools(tools []anthropic.Tool) []copilotclient.Tool {
	out := make([]copilotclient.Tool, len(tools))
	for i, t := range tools {
		out[i] = copilotclient.Tool{
			Type: "function",
			Function: copilotclient.FunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		}
	}
	return out
}

func translateToolChoice(tc *anthropic.ToolChoice) *copilotclient.ToolChoice {
	switch tc.Type {
	case "auto":
		return copilotclient.NewStringToolChoice("auto")
	case "any":
		return copilotclient.NewStringToolChoice("required")
	case "none":
		return copilotclient.NewStringToolChoice("none")
	case "tool":
		if tc.Name != nil {
			return copilotclient.NewNamedToolChoice(*tc.Name)
		}
		return nil
	default:
		return nil
	}
}

// HasVisionContent reports whether any user turn carries an image block,
// so the caller can set the copilot-vision-request header.
func HasVisionContent(req *anthropic.MessagesRequest) bool {
	for _, msg := range req.Messages {
		if msg.Content.User == nil {
			continue
		}
		for _, b := range msg.Content.User.Blocks {
			if b.Image != nil {
				return true
			}
		}
	}
	return false
}

// IsAgentCall reports whether the conversation already contains an
// assistant turn, which Copilot's x-initiator header distinguishes from a
// fresh user-initiated request.
func IsAgentCall(req *anthropic.MessagesRequest) bool {
	for _, msg := range req.Messages {
		if msg.Role == "assistant" {
			return true
		}
	}
	return false
}
