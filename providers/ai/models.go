package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownRole is returned when a message carries a role outside
	// system/user/assistant/tool.
	ErrUnknownRole = errors.New("unknown message role")

	// ErrInvalidBlock is returned when a content block's declared type does not
	// match the fields it carries.
	ErrInvalidBlock = errors.New("invalid content block")

	// ErrUnknownBlock is returned by response normalizers when a vendor sends a
	// content block type they do not know how to map.
	ErrUnknownBlock = errors.New("unknown content block type")
)

/*
	##### CONVERSATION INPUT #####
*/

// MessageRole represents the role of a message; compatible with string
type MessageRole string

const (
	RoleSystem    MessageRole = "system"    // System instructions/configuration
	RoleUser      MessageRole = "user"      // End-user message
	RoleAssistant MessageRole = "assistant" // Model response
	RoleTool      MessageRole = "tool"      // Tool/function output
)

// Valid reports whether the role is one of the four canonical roles.
func (r MessageRole) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Message represents a single message in a conversation.
type Message struct {
	Role    MessageRole `json:"role"`
	Content Content     `json:"content"`

	Reasoning  string     `json:"reasoning,omitempty"`    // Chain-of-thought text
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // For role=assistant requesting tools
	ToolCallID string     `json:"tool_call_id,omitempty"` // For role=tool, links to the tool call being answered
}

// Validate checks the role and every content block of the message.
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, m.Role)
	}
	for i, block := range m.Content.Blocks {
		if err := block.Validate(); err != nil {
			return fmt.Errorf("content[%d]: %w", i, err)
		}
	}
	return nil
}

// NewTextMessage is a shorthand for a message with plain text content.
func NewTextMessage(role MessageRole, text string) Message {
	return Message{Role: role, Content: TextContent(text)}
}

// Content is either plain text or an ordered list of content blocks. On the
// wire it is a JSON string or a JSON array. The zero value is empty text.
type Content struct {
	Text   string
	Blocks []ContentBlock
}

// TextContent builds text content.
func TextContent(text string) Content {
	return Content{Text: text}
}

// BlockContent builds block content.
func BlockContent(blocks ...ContentBlock) Content {
	return Content{Blocks: blocks}
}

// IsBlocks reports whether the content is a block list.
func (c Content) IsBlocks() bool {
	return c.Blocks != nil
}

// String returns the text of the content. For block content the text blocks
// are concatenated in order; other block types are skipped.
func (c Content) String() string {
	if !c.IsBlocks() {
		return c.Text
	}
	var builder strings.Builder
	for _, block := range c.Blocks {
		if block.Type == BlockText {
			builder.WriteString(block.Text)
		}
	}
	return builder.String()
}

// MarshalJSON encodes text content as a JSON string and block content as an array.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsBlocks() {
		return json.Marshal(c.Blocks)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts a JSON string, an array of blocks, or null. Null and
// absent content become empty text.
func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = Content{}
		return nil
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*c = Content{Text: text}
		return nil
	case '[':
		blocks := []ContentBlock{}
		if err := json.Unmarshal(trimmed, &blocks); err != nil {
			return err
		}
		*c = Content{Blocks: blocks}
		return nil
	default:
		return fmt.Errorf("content must be a string or an array, got %s", string(trimmed[:1]))
	}
}

// BlockType discriminates the ContentBlock union.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
	BlockThinking   BlockType = "thinking"
	BlockImage      BlockType = "image"
)

// ContentBlock is a tagged union. Depending on Type, different fields are populated:
//   - "text": Text
//   - "tool_use": ID, Name, Input
//   - "tool_result": ToolUseID, Result, IsError
//   - "thinking": Thinking
//   - "image": Source
type ContentBlock struct {
	Type      BlockType       `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Result    json.RawMessage `json:"content,omitempty"` // String or arbitrary JSON
	IsError   bool            `json:"is_error,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	Source    *ImageSource    `json:"source,omitempty"`
}

// ImageSource is an inline (base64) or referenced (url) image.
type ImageSource struct {
	Type      string `json:"type"`                 // "base64" or "url"
	MediaType string `json:"media_type,omitempty"` // MIME type for base64
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// TextBlock returns a text block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ThinkingBlock returns a thinking block.
func ThinkingBlock(thinking string) ContentBlock {
	return ContentBlock{Type: BlockThinking, Thinking: thinking}
}

// ToolUseBlock returns a tool_use block. input must be a JSON object.
func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

// ToolResultBlock returns a tool_result block carrying a plain string result.
func ToolResultBlock(toolUseID, result string) ContentBlock {
	encoded, _ := json.Marshal(result)
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Result: encoded}
}

// ImageURLBlock returns an image block referencing a URL.
func ImageURLBlock(url string) ContentBlock {
	return ContentBlock{Type: BlockImage, Source: &ImageSource{Type: "url", URL: url}}
}

// ResultText returns the tool_result content as text: a JSON string is
// unquoted, any other JSON value is returned verbatim.
func (b ContentBlock) ResultText() string {
	if len(b.Result) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(b.Result, &text); err == nil {
		return text
	}
	return string(b.Result)
}

// Validate reports whether the declared type matches the populated fields.
func (b ContentBlock) Validate() error {
	switch b.Type {
	case BlockText:
		if b.ID != "" || b.Name != "" || len(b.Input) > 0 || b.ToolUseID != "" || b.Source != nil {
			return fmt.Errorf("%w: text block carries non-text fields", ErrInvalidBlock)
		}
	case BlockToolUse:
		if b.Name == "" {
			return fmt.Errorf("%w: tool_use block without name", ErrInvalidBlock)
		}
		if len(b.Input) > 0 && !isJSONObject(b.Input) {
			return fmt.Errorf("%w: tool_use input must be a JSON object", ErrInvalidBlock)
		}
	case BlockToolResult:
		if b.ToolUseID == "" {
			return fmt.Errorf("%w: tool_result block without tool_use_id", ErrInvalidBlock)
		}
		if len(b.Result) > 0 && !json.Valid(b.Result) {
			return fmt.Errorf("%w: tool_result content is not valid JSON", ErrInvalidBlock)
		}
	case BlockThinking:
		if b.Text != "" || b.Name != "" || b.ToolUseID != "" {
			return fmt.Errorf("%w: thinking block carries non-thinking fields", ErrInvalidBlock)
		}
	case BlockImage:
		if b.Source == nil {
			return fmt.Errorf("%w: image block without source", ErrInvalidBlock)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBlock, b.Type)
	}
	return nil
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}

// ToolDefinition describes a tool the model may call. Parameters is a JSON
// schema supplied by the caller and passed through untouched.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolChoiceMode enumerates the canonical tool-choice policies.
type ToolChoiceMode string

const (
	ToolChoiceModeAuto  ToolChoiceMode = "auto"
	ToolChoiceModeNone  ToolChoiceMode = "none"
	ToolChoiceModeNamed ToolChoiceMode = "named"
)

// ToolChoice is the canonical tool-choice policy. Name is set only for
// ToolChoiceModeNamed.
type ToolChoice struct {
	Mode ToolChoiceMode
	Name string
}

// ToolChoiceAuto lets the model decide whether to call tools.
func ToolChoiceAuto() *ToolChoice { return &ToolChoice{Mode: ToolChoiceModeAuto} }

// ToolChoiceNone asks the model not to call tools.
func ToolChoiceNone() *ToolChoice { return &ToolChoice{Mode: ToolChoiceModeNone} }

// ToolChoiceNamed forces a call to the named tool.
func ToolChoiceNamed(name string) *ToolChoice {
	return &ToolChoice{Mode: ToolChoiceModeNamed, Name: name}
}

// CompletionOptions tunes a single completion call. Every field is optional;
// zero values select the documented defaults. Cancellation is carried by the
// context passed to the call.
type CompletionOptions struct {
	Model          string           // Overrides the client's configured model
	SystemPrompt   string           // Explicit system prompt; wins over system-role messages on the native family
	Temperature    *float64         // Default DefaultTemperature
	MaxTokens      int              // Native family default DefaultMaxTokens; omitted on the default family when zero
	Tools          []ToolDefinition // Tool definitions offered to the model
	ToolChoice     *ToolChoice      // Omitted when nil
	ThinkingBudget int              // Zero disables thinking
}

const (
	// DefaultTemperature is used when CompletionOptions.Temperature is nil.
	DefaultTemperature = 0.7

	// DefaultMaxTokens is sent to the native family, which requires max_tokens
	// on every request.
	DefaultMaxTokens = 4096
)

// EffectiveTemperature returns the configured temperature or the default.
func (o CompletionOptions) EffectiveTemperature() float64 {
	if o.Temperature != nil {
		return *o.Temperature
	}
	return DefaultTemperature
}

/*
	##### CONVERSATION OUTPUT #####
*/

// Finish reasons carried by a CompletionResponse choice.
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonToolCalls     = "tool_calls"
	FinishReasonContentFilter = "content_filter"

	// FinishReasonCancelled only appears on a stream's terminal done event
	// when the caller cancelled the call.
	FinishReasonCancelled = "cancelled"
)

// ToolCall represents a function/tool call request from the model.
type ToolCall struct {
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type"` // "function"
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction carries the called function name and its arguments as JSON text.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string
}

// Usage reports token consumption. A nil *Usage means the vendor did not report it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Choice is the single generated alternative of a CompletionResponse.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// CompletionResponse is the canonical response shape shared by every vendor.
type CompletionResponse struct {
	ID      string   `json:"id"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// NewCompletionResponse wraps a single assistant message into a response and
// enforces the finish-reason invariant.
func NewCompletionResponse(id string, created int64, model string, message Message, finishReason string, usage *Usage) *CompletionResponse {
	response := &CompletionResponse{
		ID:      id,
		Created: created,
		Model:   model,
		Choices: []Choice{{Index: 0, Message: message, FinishReason: finishReason}},
		Usage:   usage,
	}
	response.Normalize()
	return response
}

// Normalize forces every choice into the canonical finish-reason set:
// tool_calls whenever tool calls are present, stop for unknown values.
func (r *CompletionResponse) Normalize() {
	for i := range r.Choices {
		choice := &r.Choices[i]
		if len(choice.Message.ToolCalls) > 0 {
			choice.FinishReason = FinishReasonToolCalls
			continue
		}
		switch choice.FinishReason {
		case FinishReasonStop, FinishReasonLength, FinishReasonToolCalls, FinishReasonContentFilter:
		default:
			choice.FinishReason = FinishReasonStop
		}
	}
}

// Message returns the first choice's message, or an empty assistant message.
func (r *CompletionResponse) Message() Message {
	if r == nil || len(r.Choices) == 0 {
		return Message{Role: RoleAssistant}
	}
	return r.Choices[0].Message
}

// FinishReason returns the first choice's finish reason.
func (r *CompletionResponse) FinishReason() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].FinishReason
}

// ModelInfo describes one model returned by Models.
type ModelInfo struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Family      string `json:"family,omitempty" yaml:"family,omitempty"`
}
