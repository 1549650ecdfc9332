// Package copilotclient is a thin typed wrapper over GitHub Copilot's chat
// backend: token exchange, the model list, and chat completions. It knows
// nothing about Anthropic's wire format — everything here is the plain
// OpenAI-shaped request/response/chunk schema Copilot actually accepts.
package copilotclient

import "encoding/json"

// ChatCompletionsRequest is the OpenAI-shaped request body Copilot accepts.
type ChatCompletionsRequest struct {
	Model            string     `json:"model"`
	Messages         []Message  `json:"messages"`
	MaxTokens        *int64     `json:"max_tokens,omitempty"`
	Temperature      *float64   `json:"temperature,omitempty"`
	TopP             *float64   `json:"top_p,omitempty"`
	Stop             *Stop      `json:"stop,omitempty"`
	Stream           *bool      `json:"stream,omitempty"`
	N                *int64     `json:"n,omitempty"`
	FrequencyPenalty *float64   `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64   `json:"presence_penalty,omitempty"`
	Tools            []Tool     `json:"tools,omitempty"`
	ToolChoice       *ToolChoice `json:"tool_choice,omitempty"`
	User             *string    `json:"user,omitempty"`
}

// Stop is either a single stop string or a list of them.
type Stop struct {
	Single   string
	Multiple []string
}

// MarshalJSON emits the single form when only one value is set, matching the
// upstream's untagged Single|Multiple union.
func (s Stop) MarshalJSON() ([]byte, error) {
	if s.Multiple != nil {
		return json.Marshal(s.Multiple)
	}
	return json.Marshal(s.Single)
}

func (s *Stop) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		s.Single = single
		return nil
	}
	var multiple []string
	if err := json.Unmarshal(data, &multiple); err != nil {
		return err
	}
	s.Multiple = multiple
	return nil
}

// Message is a single OpenAI-shaped chat message.
type Message struct {
	Role       string     `json:"role"`
	Content    *Content   `json:"content,omitempty"`
	Name       *string    `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID *string    `json:"tool_call_id,omitempty"`
}

// Content is either a plain string or a list of typed content parts.
type Content struct {
	Text  *string
	Parts []ContentPart
}

// NewTextContent builds a plain-string Content.
func NewTextContent(text string) *Content {
	return &Content{Text: &text}
}

// NewPartsContent builds a multi-part Content.
func NewPartsContent(parts []ContentPart) *Content {
	return &Content{Parts: parts}
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	if c.Text != nil {
		return json.Marshal(*c.Text)
	}
	return json.Marshal("")
}

func (c *Content) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		c.Text = &text
		return nil
	}
	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	c.Parts = parts
	return nil
}

// ContentPart is a tagged union: {"type":"text",...} or {"type":"image_url",...}.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries a data: URI (or remote URL) plus optional detail hint.
type ImageURL struct {
	URL    string  `json:"url"`
	Detail *string `json:"detail,omitempty"`
}

// Tool is a function tool definition.
type Tool struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef describes a callable tool's name, description, and JSON schema.
type FunctionDef struct {
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolChoice is either a bare string ("auto"|"none"|"required") or a named
// function choice.
type ToolChoice struct {
	String *string
	Named  *NamedToolChoice
}

func NewStringToolChoice(s string) *ToolChoice { return &ToolChoice{String: &s} }
func NewNamedToolChoice(name string) *ToolChoice {
	return &ToolChoice{Named: &NamedToolChoice{Type: "function", Function: NamedToolChoiceFunction{Name: name}}}
}

func (t ToolChoice) MarshalJSON() ([]byte, error) {
	if t.Named != nil {
		return json.Marshal(t.Named)
	}
	if t.String != nil {
		return json.Marshal(*t.String)
	}
	return json.Marshal(nil)
}

func (t *ToolChoice) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t.String = &s
		return nil
	}
	var named NamedToolChoice
	if err := json.Unmarshal(data, &named); err != nil {
		return err
	}
	t.Named = &named
	return nil
}

type NamedToolChoice struct {
	Type     string                  `json:"type"`
	Function NamedToolChoiceFunction `json:"function"`
}

type NamedToolChoiceFunction struct {
	Name string `json:"name"`
}

// ToolCall is a complete (non-streaming) tool call.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// --- Chat Completions Response (non-streaming) ---

type ChatCompletionResponse struct {
	ID                string   `json:"id"`
	Object            string   `json:"object"`
	Created           int64    `json:"created"`
	Model             string   `json:"model"`
	Choices           []Choice `json:"choices"`
	SystemFingerprint *string  `json:"system_fingerprint,omitempty"`
	Usage             *Usage   `json:"usage,omitempty"`
}

type Choice struct {
	Index        int64           `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason *string         `json:"finish_reason"`
	Logprobs     json.RawMessage `json:"logprobs,omitempty"`
}

type ResponseMessage struct {
	Role      string     `json:"role"`
	Content   *string    `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

type Usage struct {
	PromptTokens        int64                `json:"prompt_tokens"`
	CompletionTokens     int64                `json:"completion_tokens"`
	TotalTokens          int64                `json:"total_tokens"`
	PromptTokensDetails *PromptTokensDetails `json:"prompt_tokens_details,omitempty"`
}

type PromptTokensDetails struct {
	CachedTokens int64 `json:"cached_tokens"`
}

// --- Chat Completions Streaming ---

type ChatCompletionChunk struct {
	ID                string        `json:"id"`
	Object            string        `json:"object"`
	Created           int64         `json:"created"`
	Model             string        `json:"model"`
	Choices           []ChunkChoice `json:"choices"`
	SystemFingerprint *string       `json:"system_fingerprint,omitempty"`
	Usage             *Usage        `json:"usage,omitempty"`
}

type ChunkChoice struct {
	Index        int64           `json:"index"`
	Delta        Delta           `json:"delta"`
	FinishReason *string         `json:"finish_reason"`
	Logprobs     json.RawMessage `json:"logprobs,omitempty"`
}

type Delta struct {
	Content   *string         `json:"content,omitempty"`
	Role      *string         `json:"role,omitempty"`
	ToolCalls []DeltaToolCall `json:"tool_calls,omitempty"`
}

type DeltaToolCall struct {
	Index    int64          `json:"index"`
	ID       *string        `json:"id,omitempty"`
	Type     *string        `json:"type,omitempty"`
	Function *DeltaFunction `json:"function,omitempty"`
}

type DeltaFunction struct {
	Name      *string `json:"name,omitempty"`
	Arguments *string `json:"arguments,omitempty"`
}

// --- Models ---

type ModelsResponse struct {
	Data   []Model `json:"data"`
	Object string  `json:"object"`
}

type Model struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Object            string           `json:"object"`
	Vendor            string           `json:"vendor"`
	Version           string           `json:"version"`
	ModelPickerEnabled bool            `json:"model_picker_enabled,omitempty"`
	Preview           bool             `json:"preview,omitempty"`
	Capabilities      *ModelCapabilities `json:"capabilities,omitempty"`
	Policy            json.RawMessage  `json:"policy,omitempty"`
}

type ModelCapabilities struct {
	Family   string          `json:"family"`
	Limits   *ModelLimits    `json:"limits,omitempty"`
	Object   string          `json:"object"`
	Supports json.RawMessage `json:"supports,omitempty"`
	Tokenizer *string        `json:"tokenizer,omitempty"`
	Type     *string         `json:"type,omitempty"`
}

type ModelLimits struct {
	MaxContextWindowTokens *int64 `json:"max_context_window_tokens,omitempty"`
	MaxOutputTokens        *int64 `json:"max_output_tokens,omitempty"`
	MaxPromptTokens        *int64 `json:"max_prompt_tokens,omitempty"`
}

// --- Anthropic-flavoured models envelope, served when the caller's request
// carries an anthropic-version header. ---

type AnthropicModelsResponse struct {
	Data    []AnthropicModelInfo `json:"data"`
	FirstID *string              `json:"first_id,omitempty"`
	HasMore bool                 `json:"has_more"`
	LastID  *string              `json:"last_id,omitempty"`
}

type AnthropicModelInfo struct {
	ID          string `json:"id"`
	CreatedAt   string `json:"created_at"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
}

// --- Copilot token exchange ---

type CopilotTokenResponse struct {
	Token     string `json:"token"`
	RefreshIn int64  `json:"refresh_in"`
	ExpiresAt int64  `json:"expires_at"`
}
