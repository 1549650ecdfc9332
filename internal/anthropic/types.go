// Package anthropic holds the wire types for Anthropic's Messages API: the
// shapes this proxy presents to clients, independent of whatever Copilot
// actually speaks underneath.
package anthropic

import "encoding/json"

// MessagesRequest is the body a client posts to /v1/messages.
type MessagesRequest struct {
	Model         string           `json:"model"`
	Messages      []Message        `json:"messages"`
	MaxTokens     int64            `json:"max_tokens"`
	System        *SystemPrompt    `json:"system,omitempty"`
	Metadata      *Metadata        `json:"metadata,omitempty"`
	StopSequences []string         `json:"stop_sequences,omitempty"`
	Stream        *bool            `json:"stream,omitempty"`
	Temperature   *float64         `json:"temperature,omitempty"`
	TopP          *float64         `json:"top_p,omitempty"`
	TopK          *int64           `json:"top_k,omitempty"`
	Tools         []Tool           `json:"tools,omitempty"`
	ToolChoice    *ToolChoice      `json:"tool_choice,omitempty"`
	Thinking      *ThinkingConfig  `json:"thinking,omitempty"`
	ServiceTier   *string          `json:"service_tier,omitempty"`
}

// SystemPrompt is either a plain string or a list of text blocks.
type SystemPrompt struct {
	Text   *string
	Blocks []TextBlock
}

func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		s.Text = &text
		return nil
	}
	var blocks []TextBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return err
	}
	s.Blocks = blocks
	return nil
}

type Metadata struct {
	UserID *string `json:"user_id,omitempty"`
}

// ThinkingConfig is accepted and parsed but has no Copilot equivalent: the
// budget it names is not forwarded upstream, and the translator does not
// read it. Thinking-tag emulation follows the proxy's own thinking setting.
type ThinkingConfig struct {
	Type         string `json:"type"`
	BudgetTokens *int64 `json:"budget_tokens,omitempty"`
}

// Message is one turn, tagged by role.
type Message struct {
	Role    string // "user" | "assistant"
	Content UserOrAssistantContent
}

// UserOrAssistantContent holds whichever of UserContent/AssistantContent
// applies; exactly one is populated depending on Message.Role.
type UserOrAssistantContent struct {
	User      *UserContent
	Assistant *AssistantContent
}

type messageWire struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var w messageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.Role = w.Role
	switch w.Role {
	case "assistant":
		var ac AssistantContent
		if err := json.Unmarshal(w.Content, &ac); err != nil {
			return err
		}
		m.Content = UserOrAssistantContent{Assistant: &ac}
	default:
		var uc UserContent
		if err := json.Unmarshal(w.Content, &uc); err != nil {
			return err
		}
		m.Content = UserOrAssistantContent{User: &uc}
	}
	return nil
}

func (m Message) MarshalJSON() ([]byte, error) {
	w := messageWire{Role: m.Role}
	var err error
	if m.Content.Assistant != nil {
		w.Content, err = json.Marshal(m.Content.Assistant)
	} else if m.Content.User != nil {
		w.Content, err = json.Marshal(m.Content.User)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UserContent is either plain text or a list of typed blocks.
type UserContent struct {
	Text   *string
	Blocks []UserContentBlock
}

func (c *UserContent) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		c.Text = &text
		return nil
	}
	var blocks []UserContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return err
	}
	c.Blocks = blocks
	return nil
}

func (c UserContent) MarshalJSON() ([]byte, error) {
	if c.Blocks != nil {
		return json.Marshal(c.Blocks)
	}
	if c.Text != nil {
		return json.Marshal(*c.Text)
	}
	return json.Marshal("")
}

// AssistantContent is either plain text or a list of typed blocks.
type AssistantContent struct {
	Text   *string
	Blocks []AssistantContentBlock
}

func (c *AssistantContent) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		c.Text = &text
		return nil
	}
	var blocks []AssistantContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return err
	}
	c.Blocks = blocks
	return nil
}

func (c AssistantContent) MarshalJSON() ([]byte, error) {
	if c.Blocks != nil {
		return json.Marshal(c.Blocks)
	}
	if c.Text != nil {
		return json.Marshal(*c.Text)
	}
	return json.Marshal("")
}

// --- Content blocks ---

// UserContentBlock is a tagged union over the block kinds a user turn may
// contain: text, image, or a tool's result.
type UserContentBlock struct {
	Type       string
	Text       *TextBlock
	Image      *ImageBlock
	ToolResult *ToolResultBlock
}

func (b *UserContentBlock) UnmarshalJSON(data []byte) error {
	var typeOnly struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &typeOnly); err != nil {
		return err
	}
	b.Type = typeOnly.Type
	switch typeOnly.Type {
	case "text":
		var tb TextBlock
		if err := json.Unmarshal(data, &tb); err != nil {
			return err
		}
		b.Text = &tb
	case "image":
		var ib ImageBlock
		if err := json.Unmarshal(data, &ib); err != nil {
			return err
		}
		b.Image = &ib
	case "tool_result":
		var tr ToolResultBlock
		if err := json.Unmarshal(data, &tr); err != nil {
			return err
		}
		b.ToolResult = &tr
	}
	return nil
}

// AssistantContentBlock is a tagged union over the block kinds an assistant
// turn may contain: text, a tool invocation, or a thinking block.
type AssistantContentBlock struct {
	Type     string
	Text     *TextBlock
	ToolUse  *ToolUseBlock
	Thinking *ThinkingBlock
}

func (b *AssistantContentBlock) UnmarshalJSON(data []byte) error {
	var typeOnly struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &typeOnly); err != nil {
		return err
	}
	b.Type = typeOnly.Type
	switch typeOnly.Type {
	case "text":
		var tb TextBlock
		if err := json.Unmarshal(data, &tb); err != nil {
			return err
		}
		b.Text = &tb
	case "tool_use":
		var tu ToolUseBlock
		if err := json.Unmarshal(data, &tu); err != nil {
			return err
		}
		b.ToolUse = &tu
	case "thinking":
		var th ThinkingBlock
		if err := json.Unmarshal(data, &th); err != nil {
			return err
		}
		b.Thinking = &th
	}
	return nil
}

func (b AssistantContentBlock) MarshalJSON() ([]byte, error) {
	switch {
	case b.Text != nil:
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{"text", b.Text.Text})
	case b.ToolUse != nil:
		return json.Marshal(struct {
			Type  string          `json:"type"`
			ID    string          `json:"id"`
			Name  string          `json:"name"`
			Input json.RawMessage `json:"input"`
		}{"tool_use", b.ToolUse.ID, b.ToolUse.Name, b.ToolUse.Input})
	case b.Thinking != nil:
		return json.Marshal(struct {
			Type     string `json:"type"`
			Thinking string `json:"thinking"`
		}{"thinking", b.Thinking.Thinking})
	default:
		return json.Marshal(struct{}{})
	}
}

func NewTextBlock(text string) AssistantContentBlock {
	return AssistantContentBlock{Type: "text", Text: &TextBlock{Text: text}}
}

func NewToolUseBlock(id, name string, input json.RawMessage) AssistantContentBlock {
	return AssistantContentBlock{Type: "tool_use", ToolUse: &ToolUseBlock{ID: id, Name: name, Input: input}}
}

func NewThinkingBlock(thinking string) AssistantContentBlock {
	return AssistantContentBlock{Type: "thinking", Thinking: &ThinkingBlock{Thinking: thinking}}
}

type TextBlock struct {
	Text string `json:"text"`
}

type ImageBlock struct {
	Source ImageSource `json:"source"`
}

type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type ToolResultBlock struct {
	ToolUseID string  `json:"tool_use_id"`
	Content   string  `json:"content"`
	IsError   *bool   `json:"is_error,omitempty"`
}

type ToolUseBlock struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type ThinkingBlock struct {
	Thinking string `json:"thinking"`
}

// --- Tools ---

type Tool struct {
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type ToolChoice struct {
	Type string  `json:"type"`
	Name *string `json:"name,omitempty"`
}

// --- Non-streaming response ---

type MessagesResponse struct {
	ID           string                  `json:"id"`
	Type         string                  `json:"type"`
	Role         string                  `json:"role"`
	Content      []AssistantContentBlock `json:"content"`
	Model        string                  `json:"model"`
	StopReason   *StopReason             `json:"stop_reason"`
	StopSequence *string                 `json:"stop_sequence"`
	Usage        Usage                   `json:"usage"`
}

// StopReason is one of the fixed Anthropic stop-reason strings.
type StopReason string

const (
	StopReasonEndTurn      StopReason = "end_turn"
	StopReasonMaxTokens    StopReason = "max_tokens"
	StopReasonStopSequence StopReason = "stop_sequence"
	StopReasonToolUse      StopReason = "tool_use"
	StopReasonPauseTurn    StopReason = "pause_turn"
	StopReasonRefusal      StopReason = "refusal"
)

type Usage struct {
	InputTokens              int64  `json:"input_tokens"`
	OutputTokens             int64  `json:"output_tokens"`
	CacheCreationInputTokens *int64 `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     *int64 `json:"cache_read_input_tokens,omitempty"`
}

// --- Streaming events ---

// StreamEvent is one SSE event in an Anthropic streaming response. Exactly
// one of the typed fields is populated, selected by Type.
type StreamEvent struct {
	Type string

	MessageStart     *MessageStartBody
	ContentBlockStart *ContentBlockStart
	ContentBlockDelta *ContentBlockDelta
	ContentBlockStop  *ContentBlockStop
	MessageDelta      *MessageDeltaEvent
	MessageStop       *struct{}
}

func (e StreamEvent) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case "message_start":
		return json.Marshal(struct {
			Type    string           `json:"type"`
			Message MessageStartBody `json:"message"`
		}{e.Type, *e.MessageStart})
	case "content_block_start":
		return json.Marshal(struct {
			Type         string             `json:"type"`
			Index        int                `json:"index"`
			ContentBlock ContentBlockStartBody `json:"content_block"`
		}{e.Type, e.ContentBlockStart.Index, e.ContentBlockStart.ContentBlock})
	case "content_block_delta":
		return json.Marshal(struct {
			Type  string        `json:"type"`
			Index int           `json:"index"`
			Delta ContentDelta  `json:"delta"`
		}{e.Type, e.ContentBlockDelta.Index, e.ContentBlockDelta.Delta})
	case "content_block_stop":
		return json.Marshal(struct {
			Type  string `json:"type"`
			Index int    `json:"index"`
		}{e.Type, e.ContentBlockStop.Index})
	case "message_delta":
		return json.Marshal(struct {
			Type  string          `json:"type"`
			Delta MessageDeltaBody `json:"delta"`
			Usage *Usage          `json:"usage,omitempty"`
		}{e.Type, e.MessageDelta.Delta, e.MessageDelta.Usage})
	case "message_stop":
		return json.Marshal(struct {
			Type string `json:"type"`
		}{e.Type})
	default:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{e.Type})
	}
}

func NewMessageStartEvent(body MessageStartBody) StreamEvent {
	return StreamEvent{Type: "message_start", MessageStart: &body}
}

func NewContentBlockStartEvent(index int, block ContentBlockStartBody) StreamEvent {
	return StreamEvent{Type: "content_block_start", ContentBlockStart: &ContentBlockStart{Index: index, ContentBlock: block}}
}

func NewContentBlockDeltaEvent(index int, delta ContentDelta) StreamEvent {
	return StreamEvent{Type: "content_block_delta", ContentBlockDelta: &ContentBlockDelta{Index: index, Delta: delta}}
}

func NewContentBlockStopEvent(index int) StreamEvent {
	return StreamEvent{Type: "content_block_stop", ContentBlockStop: &ContentBlockStop{Index: index}}
}

func NewMessageDeltaEvent(delta MessageDeltaBody, usage *Usage) StreamEvent {
	return StreamEvent{Type: "message_delta", MessageDelta: &MessageDeltaEvent{Delta: delta, Usage: usage}}
}

func NewMessageStopEvent() StreamEvent {
	return StreamEvent{Type: "message_stop", MessageStop: &struct{}{}}
}

type MessageStartBody struct {
	ID           string      `json:"id"`
	Type         string      `json:"type"`
	Role         string      `json:"role"`
	Content      []struct{}  `json:"content"`
	Model        string      `json:"model"`
	StopReason   *StopReason `json:"stop_reason"`
	StopSequence *string     `json:"stop_sequence"`
	Usage        Usage       `json:"usage"`
}

type ContentBlockStart struct {
	Index        int
	ContentBlock ContentBlockStartBody
}

// ContentBlockStartBody is a tagged union: text, tool_use, or thinking.
type ContentBlockStartBody struct {
	Type    string
	Text    string
	ID      string
	Name    string
	Input   json.RawMessage
	Thinking string
}

func (b ContentBlockStartBody) MarshalJSON() ([]byte, error) {
	switch b.Type {
	case "tool_use":
		return json.Marshal(struct {
			Type  string          `json:"type"`
			ID    string          `json:"id"`
			Name  string          `json:"name"`
			Input json.RawMessage `json:"input"`
		}{b.Type, b.ID, b.Name, b.Input})
	case "thinking":
		return json.Marshal(struct {
			Type     string `json:"type"`
			Thinking string `json:"thinking"`
		}{b.Type, b.Thinking})
	default:
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{"text", b.Text})
	}
}

func NewTextContentBlockStart() ContentBlockStartBody {
	return ContentBlockStartBody{Type: "text", Text: ""}
}

func NewToolUseContentBlockStart(id, name string) ContentBlockStartBody {
	return ContentBlockStartBody{Type: "tool_use", ID: id, Name: name, Input: json.RawMessage("{}")}
}

type ContentBlockDelta struct {
	Index int
	Delta ContentDelta
}

// ContentDelta is a tagged union: text_delta, input_json_delta,
// thinking_delta, or signature_delta.
type ContentDelta struct {
	Type        string
	Text        string
	PartialJSON string
	Thinking    string
	Signature   string
}

func (d ContentDelta) MarshalJSON() ([]byte, error) {
	switch d.Type {
	case "input_json_delta":
		return json.Marshal(struct {
			Type        string `json:"type"`
			PartialJSON string `json:"partial_json"`
		}{d.Type, d.PartialJSON})
	case "thinking_delta":
		return json.Marshal(struct {
			Type     string `json:"type"`
			Thinking string `json:"thinking"`
		}{d.Type, d.Thinking})
	case "signature_delta":
		return json.Marshal(struct {
			Type      string `json:"type"`
			Signature string `json:"signature"`
		}{d.Type, d.Signature})
	default:
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{"text_delta", d.Text})
	}
}

func NewTextDelta(text string) ContentDelta {
	return ContentDelta{Type: "text_delta", Text: text}
}

func NewInputJSONDelta(partial string) ContentDelta {
	return ContentDelta{Type: "input_json_delta", PartialJSON: partial}
}

func NewThinkingDelta(thinking string) ContentDelta {
	return ContentDelta{Type: "thinking_delta", Thinking: thinking}
}

type ContentBlockStop struct {
	Index int
}

type MessageDeltaEvent struct {
	Delta MessageDeltaBody
	Usage *Usage
}

type MessageDeltaBody struct {
	StopReason   *StopReason `json:"stop_reason,omitempty"`
	StopSequence *string     `json:"stop_sequence"`
}

// --- Stream state machine ---

// StreamState tracks the Anthropic content-block bookkeeping needed to
// translate a sequence of OpenAI-shaped chunks into well-formed Anthropic
// block-start/delta/stop events.
type StreamState struct {
	MessageStartSent  bool
	ContentBlockIndex int
	ContentBlockOpen  bool
	ToolCalls         map[int64]*ToolCallState
}

// ToolCallState remembers which Anthropic block index a given upstream tool
// call (keyed by its provider-assigned index) was assigned.
type ToolCallState struct {
	ID                  string
	Name                string
	AnthropicBlockIndex int
}

func NewStreamState() *StreamState {
	return &StreamState{ToolCalls: make(map[int64]*ToolCallState)}
}

// IsToolBlockOpen reports whether the currently open content block (if any)
// is a tool_use block, as opposed to a text block.
func (s *StreamState) IsToolBlockOpen() bool {
	if !s.ContentBlockOpen {
		return false
	}
	for _, tc := range s.ToolCalls {
		if tc.AnthropicBlockIndex == s.ContentBlockIndex {
			return true
		}
	}
	return false
}
