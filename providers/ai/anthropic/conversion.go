package anthropic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xagent-cli/xagent/internal/utils"
	"github.com/xagent-cli/xagent/providers/ai"
)

var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// buildRequest maps the canonical conversation onto a messages API body.
//
// System messages are lifted into the top-level system field (the first one
// wins unless options.SystemPrompt overrides it). Tool-role messages become
// tool_result blocks, and consecutive results share one user turn because
// the API rejects two user turns in a row.
func buildRequest(model string, messages []ai.Message, options ai.CompletionOptions, stream bool) (*messagesRequest, error) {
	request := &messagesRequest{
		Model:     model,
		MaxTokens: options.MaxTokens,
		Stream:    stream,
		System:    options.SystemPrompt,
	}
	if request.MaxTokens <= 0 {
		request.MaxTokens = ai.DefaultMaxTokens
	}

	if options.ThinkingBudget > 0 {
		request.Thinking = &thinkingConfig{Type: "enabled", BudgetTokens: options.ThinkingBudget}
		// max_tokens includes the thinking budget and must exceed it.
		if request.MaxTokens <= options.ThinkingBudget {
			request.MaxTokens = options.ThinkingBudget + ai.DefaultMaxTokens
		}
	} else {
		request.Temperature = utils.Ptr(options.EffectiveTemperature())
	}

	systemSeen := options.SystemPrompt != ""
	for i, message := range messages {
		if err := message.Validate(); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}

		if message.Role == ai.RoleSystem {
			if !systemSeen {
				request.System = message.Content.String()
				systemSeen = true
			}
			continue
		}

		converted, err := convertMessage(message)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		if len(converted.Content) == 0 {
			continue
		}

		if last := len(request.Messages) - 1; last >= 0 && isAllToolResults(request.Messages[last]) && isAllToolResults(converted) {
			request.Messages[last].Content = append(request.Messages[last].Content, converted.Content...)
			continue
		}
		request.Messages = append(request.Messages, converted)
	}

	if len(options.Tools) > 0 {
		request.Tools = make([]wireTool, 0, len(options.Tools))
		for _, tool := range options.Tools {
			schema := tool.Parameters
			if len(schema) == 0 {
				schema = emptyObjectSchema
			}
			request.Tools = append(request.Tools, wireTool{Name: tool.Name, Description: tool.Description, InputSchema: schema})
		}
		request.ToolChoice = toolChoice(options.ToolChoice)
	}

	return request, nil
}

// toolChoice remaps the canonical policy. The messages API has no "none"
// value that keeps tools attached, so none degrades to auto.
func toolChoice(choice *ai.ToolChoice) *wireToolChoice {
	if choice == nil {
		return nil
	}
	if choice.Mode == ai.ToolChoiceModeNamed {
		return &wireToolChoice{Type: "tool", Name: choice.Name}
	}
	return &wireToolChoice{Type: "auto"}
}

func convertMessage(message ai.Message) (wireMessage, error) {
	switch message.Role {
	case ai.RoleTool:
		return convertToolMessage(message), nil
	case ai.RoleAssistant:
		return convertAssistantMessage(message)
	default:
		return convertUserMessage(message)
	}
}

func convertToolMessage(message ai.Message) wireMessage {
	converted := wireMessage{Role: "user"}
	if !message.Content.IsBlocks() {
		converted.Content = []wireBlock{toolResult(message.ToolCallID, message.Content.Text, false)}
		return converted
	}
	for _, block := range message.Content.Blocks {
		switch block.Type {
		case ai.BlockToolResult:
			converted.Content = append(converted.Content, wireBlock{Type: "tool_result", ToolUseID: block.ToolUseID, Content: block.Result, IsError: block.IsError})
		case ai.BlockText:
			converted.Content = append(converted.Content, toolResult(message.ToolCallID, block.Text, false))
		}
	}
	return converted
}

func toolResult(toolUseID, text string, isError bool) wireBlock {
	encoded, _ := json.Marshal(text)
	return wireBlock{Type: "tool_result", ToolUseID: toolUseID, Content: encoded, IsError: isError}
}

func convertUserMessage(message ai.Message) (wireMessage, error) {
	converted := wireMessage{Role: "user"}
	if !message.Content.IsBlocks() {
		converted.Content = []wireBlock{{Type: "text", Text: message.Content.Text}}
		return converted, nil
	}
	for _, block := range message.Content.Blocks {
		switch block.Type {
		case ai.BlockText:
			converted.Content = append(converted.Content, wireBlock{Type: "text", Text: block.Text})
		case ai.BlockImage:
			converted.Content = append(converted.Content, wireBlock{Type: "image", Source: &wireSource{
				Type:      block.Source.Type,
				MediaType: block.Source.MediaType,
				Data:      block.Source.Data,
				URL:       block.Source.URL,
			}})
		case ai.BlockToolResult:
			converted.Content = append(converted.Content, wireBlock{Type: "tool_result", ToolUseID: block.ToolUseID, Content: block.Result, IsError: block.IsError})
		case ai.BlockToolUse:
			return wireMessage{}, fmt.Errorf("%w: tool_use block in %s message", ai.ErrInvalidBlock, message.Role)
		}
	}
	return converted, nil
}

// convertAssistantMessage emits text and tool_use blocks. Tool call
// arguments are parsed into objects; malformed text is repaired first and
// rejected when repair fails. Reasoning is not replayed because the API only
// accepts signed thinking blocks.
func convertAssistantMessage(message ai.Message) (wireMessage, error) {
	converted := wireMessage{Role: "assistant"}

	if message.Content.IsBlocks() {
		for _, block := range message.Content.Blocks {
			switch block.Type {
			case ai.BlockText:
				if block.Text != "" {
					converted.Content = append(converted.Content, wireBlock{Type: "text", Text: block.Text})
				}
			case ai.BlockToolUse:
				input := block.Input
				if len(input) == 0 {
					input = json.RawMessage(`{}`)
				}
				converted.Content = append(converted.Content, wireBlock{Type: "tool_use", ID: block.ID, Name: block.Name, Input: input})
			}
		}
	} else if message.Content.Text != "" {
		converted.Content = append(converted.Content, wireBlock{Type: "text", Text: message.Content.Text})
	}

	for _, call := range message.ToolCalls {
		input, err := utils.ParseToolArguments(call.Function.Arguments)
		if err != nil {
			return wireMessage{}, fmt.Errorf("%w: tool call %q: %w", ai.ErrInvalidBlock, call.ID, err)
		}
		converted.Content = append(converted.Content, wireBlock{Type: "tool_use", ID: call.ID, Name: call.Function.Name, Input: input})
	}
	return converted, nil
}

func isAllToolResults(message wireMessage) bool {
	if message.Role != "user" || len(message.Content) == 0 {
		return false
	}
	for _, block := range message.Content {
		if block.Type != "tool_result" {
			return false
		}
	}
	return true
}

// parseResponse maps a messages API body onto the canonical response in a
// single scan of the content blocks.
func parseResponse(body []byte) (*ai.CompletionResponse, error) {
	var response messagesResponse
	if err := wire.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("error decoding messages response: %w", err)
	}

	message := ai.Message{Role: ai.RoleAssistant}
	var text, reasoning strings.Builder
	for _, block := range response.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "thinking":
			reasoning.WriteString(block.Thinking)
		case "tool_use":
			arguments := "{}"
			if len(block.Input) > 0 {
				compact, err := compactJSON(block.Input)
				if err != nil {
					return nil, fmt.Errorf("tool_use %q input: %w", block.ID, err)
				}
				arguments = compact
			}
			id := block.ID
			if id == "" {
				id = "toolu_" + uuid.NewString()
			}
			message.ToolCalls = append(message.ToolCalls, ai.ToolCall{
				ID:       id,
				Type:     "function",
				Function: ai.ToolCallFunction{Name: block.Name, Arguments: arguments},
			})
		case "redacted_thinking":
		default:
			return nil, fmt.Errorf("%w: %q", ai.ErrUnknownBlock, block.Type)
		}
	}
	message.Content = ai.TextContent(text.String())
	message.Reasoning = reasoning.String()

	id := response.ID
	if id == "" {
		id = "msg_" + uuid.NewString()
	}

	var usage *ai.Usage
	if response.Usage != nil {
		usage = &ai.Usage{
			PromptTokens:     response.Usage.InputTokens,
			CompletionTokens: response.Usage.OutputTokens,
			TotalTokens:      response.Usage.InputTokens + response.Usage.OutputTokens,
		}
	}

	return ai.NewCompletionResponse(id, time.Now().Unix(), response.Model, message, mapStopReason(response.StopReason), usage), nil
}

func compactJSON(raw json.RawMessage) (string, error) {
	var buffer bytes.Buffer
	if err := json.Compact(&buffer, raw); err != nil {
		return "", err
	}
	return buffer.String(), nil
}

// mapStopReason converts a stop_reason to the canonical finish reason. Any
// reason outside the known terminal set means the model is waiting on tool
// output. An absent reason maps to stop.
func mapStopReason(stopReason string) string {
	switch stopReason {
	case "", "end_turn", "stop_sequence":
		return ai.FinishReasonStop
	case "max_tokens":
		return ai.FinishReasonLength
	case "refusal":
		return ai.FinishReasonContentFilter
	default:
		return ai.FinishReasonToolCalls
	}
}

func parseModels(body []byte) ([]ai.ModelInfo, error) {
	var list modelList
	if err := wire.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("error decoding model list: %w", err)
	}
	models := make([]ai.ModelInfo, 0, len(list.Data))
	for _, entry := range list.Data {
		name := entry.DisplayName
		if name == "" {
			name = entry.ID
		}
		models = append(models, ai.ModelInfo{ID: entry.ID, DisplayName: name, Family: Name})
	}
	return models, nil
}
