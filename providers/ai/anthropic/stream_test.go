package anthropic

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xagent-cli/xagent/core/apierror"
	"github.com/xagent-cli/xagent/providers/ai"
)

// feed passes lines to one handler and gathers every event.
func feed(handler *streamHandler, lines ...string) []ai.StreamEvent {
	var events []ai.StreamEvent
	for _, line := range lines {
		events = append(events, handler.HandleLine(line)...)
	}
	return events
}

// TestStreamHandler_FullLifecycle maps a text, thinking and tool-use stream.
func TestStreamHandler_FullLifecycle(t *testing.T) {
	events := feed(newStreamHandler(),
		`event: message_start`,
		`data: {"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude","usage":{"input_tokens":5,"output_tokens":0}}}`,
		``,
		`event: content_block_start`,
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"thinking","thinking":""}}`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"plan"}}`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"signature_delta","signature":"abc"}}`,
		`data: {"type":"content_block_stop","index":0}`,
		`data: {"type":"content_block_start","index":1,"content_block":{"type":"text","text":""}}`,
		`data: {"type":"ping"}`,
		`data: {"type":"content_block_delta","index":1,"delta":{"type":"text_delta","text":"Hi"}}`,
		`data: {"type":"content_block_start","index":2,"content_block":{"type":"tool_use","id":"toolu_1","name":"add","input":{}}}`,
		`data: {"type":"content_block_delta","index":2,"delta":{"type":"input_json_delta","partial_json":"{\"a\":"}}`,
		`data: {"type":"content_block_delta","index":2,"delta":{"type":"input_json_delta","partial_json":"1}"}}`,
		`data: {"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":9}}`,
	)

	want := []ai.StreamEvent{
		ai.ReasoningDelta("plan"),
		ai.TextDelta("Hi"),
		ai.ToolCallEvent(ai.ToolCallDelta{Index: 0, ID: "toolu_1", Name: "add"}),
		ai.ToolCallEvent(ai.ToolCallDelta{Index: 0, Arguments: `{"a":`}),
		ai.ToolCallEvent(ai.ToolCallDelta{Index: 0, Arguments: `1}`}),
		ai.DoneEvent(ai.FinishReasonToolCalls),
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

// TestStreamHandler_ToolIndexes numbers calls by appearance, not block index.
func TestStreamHandler_ToolIndexes(t *testing.T) {
	events := feed(newStreamHandler(),
		`data: {"type":"content_block_start","index":3,"content_block":{"type":"tool_use","id":"a","name":"x"}}`,
		`data: {"type":"content_block_start","index":5,"content_block":{"type":"tool_use","id":"b","name":"y"}}`,
		`data: {"type":"content_block_delta","index":3,"delta":{"type":"input_json_delta","partial_json":"{}"}}`,
		`data: {"type":"content_block_delta","index":9,"delta":{"type":"input_json_delta","partial_json":"{}"}}`,
	)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(events), events)
	}
	if events[1].ToolCall.Index != 1 || events[2].ToolCall.Index != 0 {
		t.Errorf("unexpected indexes: %+v %+v", events[1].ToolCall, events[2].ToolCall)
	}
}

// TestStreamHandler_MessageStopWithoutDelta still ends the stream.
func TestStreamHandler_MessageStopWithoutDelta(t *testing.T) {
	events := feed(newStreamHandler(), `data: {"type":"message_stop"}`)
	want := []ai.StreamEvent{ai.DoneEvent(ai.FinishReasonStop)}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

// TestStreamHandler_Error maps error events to classified errors.
func TestStreamHandler_Error(t *testing.T) {
	tests := []struct {
		errorType string
		want      apierror.Class
	}{
		{errorType: "overloaded_error", want: apierror.ClassServer},
		{errorType: "rate_limit_error", want: apierror.ClassRateLimit},
		{errorType: "invalid_request_error", want: apierror.ClassClient},
	}
	for _, tt := range tests {
		t.Run(tt.errorType, func(t *testing.T) {
			events := feed(newStreamHandler(), `data: {"type":"error","error":{"type":"`+tt.errorType+`","message":"boom"}}`)
			if len(events) != 1 || events[0].Type != ai.StreamEventError {
				t.Fatalf("expected one error event, got %+v", events)
			}
			if apierror.ClassOf(events[0].Err) != tt.want {
				t.Errorf("expected %s, got %v", tt.want, events[0].Err)
			}
		})
	}
}

// TestStreamHandler_SwallowsMalformed ignores unparsable payloads.
func TestStreamHandler_SwallowsMalformed(t *testing.T) {
	events := feed(newStreamHandler(), `data: {"type":"content_block_delta",`, `data: not json`)
	if len(events) != 0 {
		t.Errorf("expected no events, got %+v", events)
	}
}
