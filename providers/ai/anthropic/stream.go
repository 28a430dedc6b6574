package anthropic

import (
	"strings"

	"github.com/xagent-cli/xagent/core/apierror"
	"github.com/xagent-cli/xagent/providers/ai"
)

const dataPrefix = "data:"

// streamHandler maps typed stream events to canonical deltas. Tool calls are
// numbered in order of appearance; toolIndex remembers which content block
// index each call occupies so argument fragments land on the right call.
type streamHandler struct {
	toolIndex    map[int]int
	finishReason string
}

func newStreamHandler() *streamHandler {
	return &streamHandler{toolIndex: make(map[int]int)}
}

// HandleLine implements ai.LineHandler.
func (h *streamHandler) HandleLine(line string) []ai.StreamEvent {
	if !strings.HasPrefix(line, dataPrefix) {
		return nil
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == "" {
		return nil
	}

	var event streamEvent
	if err := wire.UnmarshalFromString(payload, &event); err != nil {
		return nil
	}

	switch event.Type {
	case "content_block_start":
		return h.blockStart(event)
	case "content_block_delta":
		return h.blockDelta(event)
	case "message_delta":
		if event.Delta != nil && event.Delta.StopReason != "" {
			h.finishReason = mapStopReason(event.Delta.StopReason)
			return []ai.StreamEvent{ai.DoneEvent(h.finishReason)}
		}
	case "message_stop":
		return h.Finish()
	case "error":
		return []ai.StreamEvent{ai.ErrorEvent(streamFailure(event.Error))}
	}
	return nil
}

func (h *streamHandler) blockStart(event streamEvent) []ai.StreamEvent {
	block := event.ContentBlock
	if block == nil {
		return nil
	}
	switch block.Type {
	case "tool_use":
		index := len(h.toolIndex)
		h.toolIndex[event.Index] = index
		return []ai.StreamEvent{ai.ToolCallEvent(ai.ToolCallDelta{Index: index, ID: block.ID, Name: block.Name})}
	case "text":
		if block.Text != "" {
			return []ai.StreamEvent{ai.TextDelta(block.Text)}
		}
	case "thinking":
		if block.Thinking != "" {
			return []ai.StreamEvent{ai.ReasoningDelta(block.Thinking)}
		}
	}
	return nil
}

func (h *streamHandler) blockDelta(event streamEvent) []ai.StreamEvent {
	delta := event.Delta
	if delta == nil {
		return nil
	}
	switch delta.Type {
	case "text_delta":
		if delta.Text != "" {
			return []ai.StreamEvent{ai.TextDelta(delta.Text)}
		}
	case "thinking_delta":
		if delta.Thinking != "" {
			return []ai.StreamEvent{ai.ReasoningDelta(delta.Thinking)}
		}
	case "input_json_delta":
		index, ok := h.toolIndex[event.Index]
		if ok && delta.PartialJSON != "" {
			return []ai.StreamEvent{ai.ToolCallEvent(ai.ToolCallDelta{Index: index, Arguments: delta.PartialJSON})}
		}
	}
	return nil
}

// Finish implements ai.StreamFinisher.
func (h *streamHandler) Finish() []ai.StreamEvent {
	reason := h.finishReason
	if reason == "" {
		reason = ai.FinishReasonStop
	}
	return []ai.StreamEvent{ai.DoneEvent(reason)}
}

func streamFailure(failure *streamError) error {
	if failure == nil {
		return apierror.New(apierror.ClassServer, "stream error", nil)
	}
	class := apierror.ClassServer
	switch failure.Type {
	case "rate_limit_error":
		class = apierror.ClassRateLimit
	case "invalid_request_error", "authentication_error", "permission_error", "not_found_error", "request_too_large":
		class = apierror.ClassClient
	}
	return apierror.New(class, failure.Message, nil)
}
