package echovendor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	ToolCalls []chatToolCall  `json:"tool_calls,omitempty"`
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// text flattens string or part-array content.
func (m chatMessage) text() string {
	var text string
	if json.Unmarshal(m.Content, &text) == nil {
		return text
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if json.Unmarshal(m.Content, &parts) != nil {
		return ""
	}
	var builder strings.Builder
	for _, part := range parts {
		if part.Type == "text" {
			builder.WriteString(part.Text)
		}
	}
	return builder.String()
}

func (v *Vendor) handleChat(c echo.Context, body []byte) error {
	var request chatRequest
	if err := json.Unmarshal(body, &request); err != nil {
		return writeError(c, false, http.StatusBadRequest, fmt.Sprintf("invalid JSON payload: %v", err))
	}
	if len(request.Messages) == 0 {
		return writeError(c, false, http.StatusBadRequest, "messages must not be empty")
	}

	last := request.Messages[len(request.Messages)-1]
	text := last.text()
	finishReason := "stop"
	if len(last.ToolCalls) > 0 {
		finishReason = "tool_calls"
	}
	id := fmt.Sprintf("chatcmpl-echo-%d", v.nextID())
	usage := map[string]int{
		"prompt_tokens":     countTokens(text),
		"completion_tokens": countTokens(text),
		"total_tokens":      2 * countTokens(text),
	}

	if !request.Stream {
		message := map[string]any{"role": "assistant", "content": text}
		if len(last.ToolCalls) > 0 {
			message["tool_calls"] = last.ToolCalls
		}
		return c.JSON(http.StatusOK, map[string]any{
			"id":      id,
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   request.Model,
			"choices": []any{map[string]any{"index": 0, "message": message, "finish_reason": finishReason}},
			"usage":   usage,
		})
	}

	startStream(c)
	chunk := func(delta map[string]any, finish any) map[string]any {
		return map[string]any{
			"id":      id,
			"object":  "chat.completion.chunk",
			"created": time.Now().Unix(),
			"model":   request.Model,
			"choices": []any{map[string]any{"index": 0, "delta": delta, "finish_reason": finish}},
		}
	}

	if err := writeSSE(c, "", chunk(map[string]any{"role": "assistant"}, nil)); err != nil {
		return err
	}
	for _, piece := range chunks(text) {
		if err := writeSSE(c, "", chunk(map[string]any{"content": piece}, nil)); err != nil {
			return err
		}
	}
	for index, call := range last.ToolCalls {
		header := map[string]any{
			"index":    index,
			"id":       call.ID,
			"type":     "function",
			"function": map[string]string{"name": call.Function.Name, "arguments": ""},
		}
		if err := writeSSE(c, "", chunk(map[string]any{"tool_calls": []any{header}}, nil)); err != nil {
			return err
		}
		half := len(call.Function.Arguments) / 2
		for _, part := range []string{call.Function.Arguments[:half], call.Function.Arguments[half:]} {
			delta := map[string]any{"index": index, "function": map[string]string{"arguments": part}}
			if err := writeSSE(c, "", chunk(map[string]any{"tool_calls": []any{delta}}, nil)); err != nil {
				return err
			}
		}
	}
	if err := writeSSE(c, "", chunk(map[string]any{}, finishReason)); err != nil {
		return err
	}
	return writeSSE(c, "", "[DONE]")
}
