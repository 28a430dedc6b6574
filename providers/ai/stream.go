package ai

import (
	"errors"
	"iter"
	"strings"
	"sync/atomic"
	"time"
)

// ErrStreamConsumed is carried by the error event yielded when a Stream is
// iterated a second time.
var ErrStreamConsumed = errors.New("stream already consumed")

// StreamEventType identifies the kind of delta carried by a StreamEvent.
type StreamEventType string

const (
	// StreamEventText indicates a text content delta.
	StreamEventText StreamEventType = "text_delta"
	// StreamEventReasoning indicates a reasoning/thinking content delta.
	StreamEventReasoning StreamEventType = "reasoning_delta"
	// StreamEventToolCall indicates an incremental tool call delta (header or arguments chunk).
	StreamEventToolCall StreamEventType = "toolcall_delta"
	// StreamEventDone signals that the stream has finished.
	StreamEventDone StreamEventType = "done"
	// StreamEventError signals an error that terminated the stream.
	StreamEventError StreamEventType = "error"
)

// ToolCallDelta represents an incremental update to a tool call being streamed.
// ID and Name are only present on the first chunk for a given index; subsequent
// chunks carry only Arguments fragments.
type ToolCallDelta struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// StreamEvent represents a single event yielded during streaming. Each event
// carries exactly one kind of payload, identified by Type.
type StreamEvent struct {
	Type         StreamEventType `json:"type"`
	Text         string          `json:"text,omitempty"`          // Type == StreamEventText
	Reasoning    string          `json:"reasoning,omitempty"`     // Type == StreamEventReasoning
	ToolCall     *ToolCallDelta  `json:"tool_call,omitempty"`     // Type == StreamEventToolCall
	FinishReason string          `json:"finish_reason,omitempty"` // Type == StreamEventDone
	Err          error           `json:"-"`                       // Type == StreamEventError
}

// Terminal reports whether the event ends the stream.
func (e StreamEvent) Terminal() bool {
	return e.Type == StreamEventDone || e.Type == StreamEventError
}

// TextDelta builds a text_delta event.
func TextDelta(text string) StreamEvent {
	return StreamEvent{Type: StreamEventText, Text: text}
}

// ReasoningDelta builds a reasoning_delta event.
func ReasoningDelta(reasoning string) StreamEvent {
	return StreamEvent{Type: StreamEventReasoning, Reasoning: reasoning}
}

// ToolCallEvent builds a toolcall_delta event.
func ToolCallEvent(delta ToolCallDelta) StreamEvent {
	return StreamEvent{Type: StreamEventToolCall, ToolCall: &delta}
}

// DoneEvent builds a terminal done event.
func DoneEvent(finishReason string) StreamEvent {
	return StreamEvent{Type: StreamEventDone, FinishReason: finishReason}
}

// ErrorEvent builds a terminal error event.
func ErrorEvent(err error) StreamEvent {
	return StreamEvent{Type: StreamEventError, Err: err}
}

// Stream is a lazy, single-pass, forward-only sequence of StreamEvent values
// ending in exactly one done or error event. It may be consumed once; a second
// iteration yields a single error event carrying ErrStreamConsumed.
//
// Callers must either range over Events to completion, break out of the loop,
// or call Collect: the producer may hold an open HTTP body that is only
// released when the iterator returns.
type Stream struct {
	iterator iter.Seq[StreamEvent]
	consumed atomic.Bool
}

// NewStream wraps an iterator. The iterator must end with a terminal event.
func NewStream(iterator iter.Seq[StreamEvent]) *Stream {
	return &Stream{iterator: iterator}
}

// NewErrorStream returns a stream that yields only the given error.
func NewErrorStream(err error) *Stream {
	return NewStream(func(yield func(StreamEvent) bool) {
		yield(ErrorEvent(err))
	})
}

// Events returns the iterator for use with range-over-func loops.
//
// Example:
//
//	for event := range stream.Events() {
//	    switch event.Type {
//	    case ai.StreamEventText:
//	        fmt.Print(event.Text)
//	    case ai.StreamEventError:
//	        return event.Err
//	    }
//	}
func (stream *Stream) Events() iter.Seq[StreamEvent] {
	return func(yield func(StreamEvent) bool) {
		if !stream.consumed.CompareAndSwap(false, true) {
			yield(ErrorEvent(ErrStreamConsumed))
			return
		}
		stream.iterator(yield)
	}
}

// Collect consumes the stream and accumulates it into a CompletionResponse.
// An error event ends collection and returns the partial response with the error.
func (stream *Stream) Collect() (*CompletionResponse, error) {
	var (
		text             strings.Builder
		reasoning        strings.Builder
		toolCallBuilders []*toolCallBuilder
		finishReason     string
		streamErr        error
	)

	for event := range stream.Events() {
		switch event.Type {
		case StreamEventText:
			text.WriteString(event.Text)
		case StreamEventReasoning:
			reasoning.WriteString(event.Reasoning)
		case StreamEventToolCall:
			if event.ToolCall != nil {
				toolCallBuilders = accumulateToolCallDelta(toolCallBuilders, event.ToolCall)
			}
		case StreamEventDone:
			finishReason = event.FinishReason
		case StreamEventError:
			streamErr = event.Err
		}
	}

	message := Message{
		Role:      RoleAssistant,
		Content:   TextContent(text.String()),
		Reasoning: reasoning.String(),
	}
	for _, builder := range toolCallBuilders {
		message.ToolCalls = append(message.ToolCalls, ToolCall{
			ID:   builder.id,
			Type: "function",
			Function: ToolCallFunction{
				Name:      builder.name,
				Arguments: builder.arguments.String(),
			},
		})
	}

	response := &CompletionResponse{
		Created: time.Now().Unix(),
		Choices: []Choice{{Index: 0, Message: message, FinishReason: finishReason}},
	}
	if finishReason != FinishReasonCancelled {
		response.Normalize()
	}
	return response, streamErr
}

// toolCallBuilder accumulates incremental tool call deltas into a complete ToolCall.
type toolCallBuilder struct {
	id        string
	name      string
	arguments strings.Builder
}

// accumulateToolCallDelta merges a ToolCallDelta into the running list of
// builders, growing the slice when a new index appears. Builders are held by
// pointer because strings.Builder must not be copied after first use.
func accumulateToolCallDelta(builders []*toolCallBuilder, delta *ToolCallDelta) []*toolCallBuilder {
	if delta.Index < 0 {
		return builders
	}
	for len(builders) <= delta.Index {
		builders = append(builders, &toolCallBuilder{})
	}

	builder := builders[delta.Index]
	if delta.ID != "" {
		builder.id = delta.ID
	}
	if delta.Name != "" {
		builder.name = delta.Name
	}
	if delta.Arguments != "" {
		builder.arguments.WriteString(delta.Arguments)
	}

	return builders
}
