package echovendor

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

type messagesRequest struct {
	Model    string            `json:"model"`
	Messages []messagesMessage `json:"messages"`
	Stream   bool              `json:"stream"`
}

type messagesMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type sseEvent struct {
	name    string
	payload any
}

type block struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// blocks returns the echoable blocks of string or block-array content.
func (m messagesMessage) blocks() []block {
	var text string
	if json.Unmarshal(m.Content, &text) == nil {
		return []block{{Type: "text", Text: text}}
	}
	var all []block
	if json.Unmarshal(m.Content, &all) != nil {
		return nil
	}
	out := make([]block, 0, len(all))
	for _, b := range all {
		if b.Type == "text" || b.Type == "tool_use" {
			out = append(out, b)
		}
	}
	return out
}

func (v *Vendor) handleMessages(c echo.Context, body []byte) error {
	var request messagesRequest
	if err := json.Unmarshal(body, &request); err != nil {
		return writeError(c, true, http.StatusBadRequest, fmt.Sprintf("invalid JSON payload: %v", err))
	}
	if len(request.Messages) == 0 {
		return writeError(c, true, http.StatusBadRequest, "messages: at least one message is required")
	}

	content := request.Messages[len(request.Messages)-1].blocks()
	stopReason := "end_turn"
	tokens := 0
	for _, b := range content {
		if b.Type == "tool_use" {
			stopReason = "tool_use"
		}
		tokens += countTokens(b.Text)
	}
	id := fmt.Sprintf("msg_echo_%d", v.nextID())

	if !request.Stream {
		return c.JSON(http.StatusOK, map[string]any{
			"id":            id,
			"type":          "message",
			"role":          "assistant",
			"model":         request.Model,
			"content":       content,
			"stop_reason":   stopReason,
			"stop_sequence": nil,
			"usage":         map[string]int{"input_tokens": tokens, "output_tokens": tokens},
		})
	}

	startStream(c)
	events := []sseEvent{{
		name: "message_start",
		payload: map[string]any{
			"type": "message_start",
			"message": map[string]any{
				"id": id, "type": "message", "role": "assistant", "model": request.Model,
				"content": []any{}, "usage": map[string]int{"input_tokens": tokens, "output_tokens": 0},
			},
		},
	}}

	for index, b := range content {
		switch b.Type {
		case "text":
			events = append(events, sseEvent{"content_block_start", map[string]any{
				"type": "content_block_start", "index": index,
				"content_block": map[string]string{"type": "text", "text": ""},
			}})
			for _, piece := range chunks(b.Text) {
				events = append(events, sseEvent{"content_block_delta", map[string]any{
					"type": "content_block_delta", "index": index,
					"delta": map[string]string{"type": "text_delta", "text": piece},
				}})
			}
		case "tool_use":
			events = append(events, sseEvent{"content_block_start", map[string]any{
				"type": "content_block_start", "index": index,
				"content_block": map[string]any{"type": "tool_use", "id": b.ID, "name": b.Name, "input": map[string]any{}},
			}})
			input := string(b.Input)
			if input == "" {
				input = "{}"
			}
			half := len(input) / 2
			for _, part := range []string{input[:half], input[half:]} {
				events = append(events, sseEvent{"content_block_delta", map[string]any{
					"type": "content_block_delta", "index": index,
					"delta": map[string]string{"type": "input_json_delta", "partial_json": part},
				}})
			}
		}
		events = append(events, sseEvent{"content_block_stop", map[string]any{"type": "content_block_stop", "index": index}})
	}

	events = append(events,
		sseEvent{"message_delta", map[string]any{
			"type":  "message_delta",
			"delta": map[string]any{"stop_reason": stopReason, "stop_sequence": nil},
			"usage": map[string]int{"output_tokens": tokens},
		}},
		sseEvent{"message_stop", map[string]string{"type": "message_stop"}},
	)

	for _, event := range events {
		if err := writeSSE(c, event.name, event.payload); err != nil {
			return err
		}
	}
	return nil
}
