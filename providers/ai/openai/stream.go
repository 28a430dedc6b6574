package openai

import (
	"strings"

	"github.com/xagent-cli/xagent/core/apierror"
	"github.com/xagent-cli/xagent/providers/ai"
)

const dataPrefix = "data:"

// streamHandler turns "data: {json}" lines into canonical events. The
// finish reason arrives on a chunk before [DONE] and is held until then.
type streamHandler struct {
	finishReason string
}

func newStreamHandler() *streamHandler {
	return &streamHandler{}
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
	if payload == "[DONE]" {
		return []ai.StreamEvent{ai.DoneEvent(h.reason())}
	}

	var chunk streamChunk
	if err := wire.UnmarshalFromString(payload, &chunk); err != nil {
		return nil
	}
	if chunk.Error != nil {
		return []ai.StreamEvent{ai.ErrorEvent(apierror.New(apierror.ClassServer, chunk.Error.Message, nil))}
	}

	var events []ai.StreamEvent
	for _, choice := range chunk.Choices {
		delta := choice.Delta
		if delta.ReasoningContent != nil && *delta.ReasoningContent != "" {
			events = append(events, ai.ReasoningDelta(*delta.ReasoningContent))
		} else if delta.Reasoning != nil && *delta.Reasoning != "" {
			events = append(events, ai.ReasoningDelta(*delta.Reasoning))
		}
		if delta.Content != nil && *delta.Content != "" {
			events = append(events, ai.TextDelta(*delta.Content))
		}
		for _, part := range delta.ToolCalls {
			events = append(events, ai.ToolCallEvent(ai.ToolCallDelta{
				Index:     part.Index,
				ID:        part.ID,
				Name:      part.Function.Name,
				Arguments: part.Function.Arguments,
			}))
		}
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			h.finishReason = mapFinishReason(*choice.FinishReason)
		}
	}
	return events
}

// Finish implements ai.StreamFinisher for streams that end without [DONE].
func (h *streamHandler) Finish() []ai.StreamEvent {
	return []ai.StreamEvent{ai.DoneEvent(h.reason())}
}

func (h *streamHandler) reason() string {
	if h.finishReason == "" {
		return ai.FinishReasonStop
	}
	return h.finishReason
}
