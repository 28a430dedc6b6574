package ai

import (
	"errors"
	"testing"
)

// makeStream is a test helper that builds a Stream from a hand-crafted event slice.
func makeStream(events ...StreamEvent) *Stream {
	return NewStream(func(yield func(StreamEvent) bool) {
		for _, event := range events {
			if !yield(event) {
				return
			}
		}
	})
}

// TestStream_Collect_TextAndReasoning verifies that text and reasoning deltas
// accumulate in order and the done event's finish reason is kept.
func TestStream_Collect_TextAndReasoning(t *testing.T) {
	stream := makeStream(
		ReasoningDelta("think "),
		TextDelta("Hello"),
		ReasoningDelta("more"),
		TextDelta(" world"),
		DoneEvent(FinishReasonLength),
	)

	response, err := stream.Collect()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	message := response.Message()
	if message.Content.String() != "Hello world" {
		t.Errorf("expected content %q, got %q", "Hello world", message.Content.String())
	}
	if message.Reasoning != "think more" {
		t.Errorf("expected reasoning %q, got %q", "think more", message.Reasoning)
	}
	if response.FinishReason() != FinishReasonLength {
		t.Errorf("expected finish reason %q, got %q", FinishReasonLength, response.FinishReason())
	}
}

// TestStream_Collect_ToolCalls verifies that interleaved tool call deltas for
// several indices are assembled into complete tool calls.
func TestStream_Collect_ToolCalls(t *testing.T) {
	stream := makeStream(
		ToolCallEvent(ToolCallDelta{Index: 0, ID: "call_1", Name: "search"}),
		ToolCallEvent(ToolCallDelta{Index: 1, ID: "call_2", Name: "calc"}),
		ToolCallEvent(ToolCallDelta{Index: 0, Arguments: `{"q":`}),
		ToolCallEvent(ToolCallDelta{Index: 1, Arguments: `{"x":1}`}),
		ToolCallEvent(ToolCallDelta{Index: 0, Arguments: `"go"}`}),
		DoneEvent(FinishReasonStop),
	)

	response, err := stream.Collect()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	toolCalls := response.Message().ToolCalls
	if len(toolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(toolCalls))
	}
	if toolCalls[0].Function.Arguments != `{"q":"go"}` {
		t.Errorf("unexpected arguments for call 0: %q", toolCalls[0].Function.Arguments)
	}
	if toolCalls[1].Function.Name != "calc" || toolCalls[1].ID != "call_2" {
		t.Errorf("unexpected call 1: %+v", toolCalls[1])
	}
	if response.FinishReason() != FinishReasonToolCalls {
		t.Errorf("expected tool_calls finish reason, got %q", response.FinishReason())
	}
}

// TestStream_Collect_Error returns the partial response alongside the error.
func TestStream_Collect_Error(t *testing.T) {
	boom := errors.New("boom")
	stream := makeStream(TextDelta("partial"), ErrorEvent(boom))

	response, err := stream.Collect()
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if response.Message().Content.String() != "partial" {
		t.Errorf("expected partial content, got %q", response.Message().Content.String())
	}
}

// TestStream_SingleConsumption verifies that a second iteration yields only an
// ErrStreamConsumed error event.
func TestStream_SingleConsumption(t *testing.T) {
	stream := makeStream(TextDelta("a"), DoneEvent(FinishReasonStop))

	first := 0
	for range stream.Events() {
		first++
	}
	if first != 2 {
		t.Fatalf("expected 2 events on first pass, got %d", first)
	}

	var second []StreamEvent
	for event := range stream.Events() {
		second = append(second, event)
	}
	if len(second) != 1 || second[0].Type != StreamEventError || !errors.Is(second[0].Err, ErrStreamConsumed) {
		t.Errorf("expected a single ErrStreamConsumed event, got %+v", second)
	}
}

// TestStream_EarlyBreak verifies that breaking out of the loop stops the producer.
func TestStream_EarlyBreak(t *testing.T) {
	produced := 0
	stream := NewStream(func(yield func(StreamEvent) bool) {
		for i := 0; i < 10; i++ {
			produced++
			if !yield(TextDelta("x")) {
				return
			}
		}
		yield(DoneEvent(FinishReasonStop))
	})

	for range stream.Events() {
		break
	}
	if produced != 1 {
		t.Errorf("expected producer to stop after 1 event, produced %d", produced)
	}
}

// TestStreamEvent_Terminal only reports done and error as terminal.
func TestStreamEvent_Terminal(t *testing.T) {
	if TextDelta("x").Terminal() || ReasoningDelta("x").Terminal() || ToolCallEvent(ToolCallDelta{}).Terminal() {
		t.Error("delta events must not be terminal")
	}
	if !DoneEvent(FinishReasonStop).Terminal() || !ErrorEvent(errors.New("x")).Terminal() {
		t.Error("done and error events must be terminal")
	}
}
