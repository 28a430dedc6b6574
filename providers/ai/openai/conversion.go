package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xagent-cli/xagent/internal/utils"
	"github.com/xagent-cli/xagent/providers/ai"
)

// ErrNoChoices is returned when a response carries an empty choices array.
var ErrNoChoices = errors.New("response has no choices")

var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// buildRequest maps the canonical conversation onto a chat-completions body.
func buildRequest(model string, messages []ai.Message, options ai.CompletionOptions, stream bool) (*chatCompletionRequest, error) {
	request := &chatCompletionRequest{
		Model:       model,
		Temperature: utils.Ptr(options.EffectiveTemperature()),
		Stream:      stream,
	}

	switch {
	case options.ThinkingBudget > 0:
		maxTokens := options.MaxTokens
		if maxTokens <= 0 {
			maxTokens = ai.DefaultMaxTokens
		}
		request.MaxCompletionTokens = utils.Ptr(maxTokens + options.ThinkingBudget)
	case options.MaxTokens > 0:
		request.MaxTokens = utils.Ptr(options.MaxTokens)
	}

	if options.SystemPrompt != "" {
		request.Messages = append(request.Messages, chatMessage{Role: string(ai.RoleSystem), Content: options.SystemPrompt})
	}

	for i, message := range messages {
		if err := message.Validate(); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		if message.Role == ai.RoleSystem && options.SystemPrompt != "" {
			continue
		}
		converted, err := convertMessage(message)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		request.Messages = append(request.Messages, converted...)
	}

	if len(options.Tools) > 0 {
		request.Tools = make([]chatTool, 0, len(options.Tools))
		for _, tool := range options.Tools {
			parameters := tool.Parameters
			if len(parameters) == 0 {
				parameters = emptyObjectSchema
			}
			request.Tools = append(request.Tools, chatTool{
				Type:     "function",
				Function: chatFunction{Name: tool.Name, Description: tool.Description, Parameters: parameters},
			})
		}
		request.ToolChoice = toolChoice(options.ToolChoice)
	}

	return request, nil
}

func toolChoice(choice *ai.ToolChoice) any {
	if choice == nil {
		return nil
	}
	switch choice.Mode {
	case ai.ToolChoiceModeNone:
		return "none"
	case ai.ToolChoiceModeNamed:
		named := chatNamedToolChoice{Type: "function"}
		named.Function.Name = choice.Name
		return named
	default:
		return "auto"
	}
}

// convertMessage may return several wire messages: tool_result blocks become
// individual tool-role messages placed before any remaining user content.
func convertMessage(message ai.Message) ([]chatMessage, error) {
	switch message.Role {
	case ai.RoleTool:
		return convertToolMessage(message), nil
	case ai.RoleAssistant:
		return []chatMessage{convertAssistantMessage(message)}, nil
	default:
		return convertUserMessage(message)
	}
}

func convertToolMessage(message ai.Message) []chatMessage {
	if !message.Content.IsBlocks() {
		return []chatMessage{{Role: string(ai.RoleTool), ToolCallID: message.ToolCallID, Content: message.Content.Text}}
	}

	var result []chatMessage
	var loose strings.Builder
	for _, block := range message.Content.Blocks {
		switch block.Type {
		case ai.BlockToolResult:
			result = append(result, chatMessage{Role: string(ai.RoleTool), ToolCallID: block.ToolUseID, Content: block.ResultText()})
		case ai.BlockText:
			loose.WriteString(block.Text)
		}
	}
	if loose.Len() > 0 || len(result) == 0 {
		result = append(result, chatMessage{Role: string(ai.RoleTool), ToolCallID: message.ToolCallID, Content: loose.String()})
	}
	return result
}

func convertAssistantMessage(message ai.Message) chatMessage {
	converted := chatMessage{Role: string(ai.RoleAssistant)}

	var text strings.Builder
	if message.Content.IsBlocks() {
		for _, block := range message.Content.Blocks {
			switch block.Type {
			case ai.BlockText:
				text.WriteString(block.Text)
			case ai.BlockToolUse:
				arguments := string(block.Input)
				if arguments == "" {
					arguments = "{}"
				}
				converted.ToolCalls = append(converted.ToolCalls, chatToolCall{
					ID:       block.ID,
					Type:     "function",
					Function: chatToolCallFunction{Name: block.Name, Arguments: arguments},
				})
			}
		}
	} else {
		text.WriteString(message.Content.Text)
	}

	for _, call := range message.ToolCalls {
		arguments := call.Function.Arguments
		if arguments == "" {
			arguments = "{}"
		}
		converted.ToolCalls = append(converted.ToolCalls, chatToolCall{
			ID:       call.ID,
			Type:     "function",
			Function: chatToolCallFunction{Name: call.Function.Name, Arguments: arguments},
		})
	}

	// Several vendors reject an empty string next to tool_calls; null is accepted everywhere.
	if text.Len() > 0 || len(converted.ToolCalls) == 0 {
		converted.Content = text.String()
	}
	return converted
}

func convertUserMessage(message ai.Message) ([]chatMessage, error) {
	role := string(message.Role)
	if !message.Content.IsBlocks() {
		return []chatMessage{{Role: role, Content: message.Content.Text}}, nil
	}

	var (
		toolMessages []chatMessage
		parts        []contentPart
		hasImage     bool
	)
	for _, block := range message.Content.Blocks {
		switch block.Type {
		case ai.BlockText:
			parts = append(parts, contentPart{Type: "text", Text: block.Text})
		case ai.BlockImage:
			url := block.Source.URL
			if block.Source.Type == "base64" {
				url = "data:" + block.Source.MediaType + ";base64," + block.Source.Data
			}
			parts = append(parts, contentPart{Type: "image_url", ImageURL: &contentImageURL{URL: url}})
			hasImage = true
		case ai.BlockToolResult:
			toolMessages = append(toolMessages, chatMessage{Role: string(ai.RoleTool), ToolCallID: block.ToolUseID, Content: block.ResultText()})
		case ai.BlockToolUse:
			return nil, fmt.Errorf("%w: tool_use block in %s message", ai.ErrInvalidBlock, message.Role)
		}
	}

	result := toolMessages
	switch {
	case hasImage:
		result = append(result, chatMessage{Role: role, Content: parts})
	case len(parts) > 0 || len(toolMessages) == 0:
		var text strings.Builder
		for _, part := range parts {
			text.WriteString(part.Text)
		}
		result = append(result, chatMessage{Role: role, Content: text.String()})
	}
	return result, nil
}

// parseResponse maps a buffered chat-completions body onto the canonical response.
func parseResponse(body []byte) (*ai.CompletionResponse, error) {
	var response chatCompletionResponse
	if err := wire.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("error decoding chat completion: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, ErrNoChoices
	}

	choice := response.Choices[0]
	message, err := convertResponseMessage(choice.Message)
	if err != nil {
		return nil, err
	}

	id := response.ID
	if id == "" {
		id = "chatcmpl-" + uuid.NewString()
	}
	created := response.Created
	if created == 0 {
		created = time.Now().Unix()
	}

	return ai.NewCompletionResponse(id, created, response.Model, message, mapFinishReason(choice.FinishReason), convertUsage(response.Usage)), nil
}

// convertResponseMessage scans content once. Top-level tool calls come
// first, then tool_use blocks embedded in block content.
func convertResponseMessage(wireMessage chatResponseMessage) (ai.Message, error) {
	message := ai.Message{Role: ai.RoleAssistant}

	reasoning := wireMessage.ReasoningContent
	if reasoning == "" {
		reasoning = wireMessage.Reasoning
	}

	for _, call := range wireMessage.ToolCalls {
		message.ToolCalls = append(message.ToolCalls, newToolCall(call.ID, call.Function.Name, call.Function.Arguments))
	}

	var text strings.Builder
	if wireMessage.Content.IsBlocks() {
		var thinking strings.Builder
		for _, block := range wireMessage.Content.Blocks {
			switch block.Type {
			case ai.BlockText:
				text.WriteString(block.Text)
			case ai.BlockThinking:
				thinking.WriteString(block.Thinking)
			case ai.BlockToolUse:
				message.ToolCalls = append(message.ToolCalls, newToolCall(block.ID, block.Name, string(block.Input)))
			case "redacted_thinking":
			default:
				return ai.Message{}, fmt.Errorf("%w: %q", ai.ErrUnknownBlock, block.Type)
			}
		}
		if reasoning == "" {
			reasoning = thinking.String()
		}
	} else {
		text.WriteString(wireMessage.Content.Text)
	}

	if text.Len() == 0 && wireMessage.Refusal != "" {
		text.WriteString(wireMessage.Refusal)
	}

	message.Content = ai.TextContent(text.String())
	message.Reasoning = reasoning
	return message, nil
}

func newToolCall(id, name, arguments string) ai.ToolCall {
	if id == "" {
		id = "call_" + uuid.NewString()
	}
	if strings.TrimSpace(arguments) == "" {
		arguments = "{}"
	}
	return ai.ToolCall{ID: id, Type: "function", Function: ai.ToolCallFunction{Name: name, Arguments: arguments}}
}

func convertUsage(usage *chatUsage) *ai.Usage {
	if usage == nil {
		return nil
	}
	total := usage.TotalTokens
	if total == 0 {
		total = usage.PromptTokens + usage.CompletionTokens
	}
	return &ai.Usage{PromptTokens: usage.PromptTokens, CompletionTokens: usage.CompletionTokens, TotalTokens: total}
}

// mapFinishReason folds legacy and vendor-specific reasons into the canonical set.
func mapFinishReason(reason string) string {
	switch reason {
	case "function_call", "tool_use":
		return ai.FinishReasonToolCalls
	case "max_tokens":
		return ai.FinishReasonLength
	case ai.FinishReasonStop, ai.FinishReasonLength, ai.FinishReasonToolCalls, ai.FinishReasonContentFilter:
		return reason
	default:
		return ai.FinishReasonStop
	}
}

func parseModels(body []byte) ([]ai.ModelInfo, error) {
	var list modelList
	if err := wire.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("error decoding model list: %w", err)
	}
	models := make([]ai.ModelInfo, 0, len(list.Data))
	for _, entry := range list.Data {
		models = append(models, ai.ModelInfo{ID: entry.ID, DisplayName: entry.ID, Family: entry.OwnedBy})
	}
	return models, nil
}
