package openai

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xagent-cli/xagent/providers/ai"
)

// encodeRequest builds a request and returns its JSON as a generic map.
func encodeRequest(t *testing.T, messages []ai.Message, options ai.CompletionOptions, stream bool) map[string]any {
	t.Helper()
	request, err := New().BuildRequest("gpt-test", messages, options, stream)
	if err != nil {
		t.Fatalf("BuildRequest failed: %v", err)
	}
	encoded, err := json.Marshal(request)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	return decoded
}

// TestBuildRequest_Defaults sends the default temperature and omits max_tokens.
func TestBuildRequest_Defaults(t *testing.T) {
	body := encodeRequest(t, []ai.Message{ai.NewTextMessage(ai.RoleUser, "hi")}, ai.CompletionOptions{}, false)

	if body["model"] != "gpt-test" {
		t.Errorf("unexpected model %v", body["model"])
	}
	if body["temperature"] != 0.7 {
		t.Errorf("expected default temperature 0.7, got %v", body["temperature"])
	}
	for _, absent := range []string{"max_tokens", "max_completion_tokens", "tools", "tool_choice", "stream"} {
		if _, ok := body[absent]; ok {
			t.Errorf("expected %s to be omitted", absent)
		}
	}
	want := []any{map[string]any{"role": "user", "content": "hi"}}
	if diff := cmp.Diff(want, body["messages"]); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

// TestBuildRequest_ThinkingBudget switches to max_completion_tokens.
func TestBuildRequest_ThinkingBudget(t *testing.T) {
	body := encodeRequest(t, []ai.Message{ai.NewTextMessage(ai.RoleUser, "hi")}, ai.CompletionOptions{MaxTokens: 1000, ThinkingBudget: 2000}, true)
	if body["max_completion_tokens"] != float64(3000) {
		t.Errorf("expected max_completion_tokens 3000, got %v", body["max_completion_tokens"])
	}
	if _, ok := body["max_tokens"]; ok {
		t.Error("expected max_tokens to be omitted")
	}
	if body["stream"] != true {
		t.Error("expected stream flag")
	}
}

// TestBuildRequest_ToolConversation maps tool_use and tool_result blocks to
// tool_calls and tool-role messages.
func TestBuildRequest_ToolConversation(t *testing.T) {
	messages := []ai.Message{
		ai.NewTextMessage(ai.RoleSystem, "be brief"),
		ai.NewTextMessage(ai.RoleUser, "weather?"),
		{Role: ai.RoleAssistant, Content: ai.BlockContent(
			ai.TextBlock("checking"),
			ai.ToolUseBlock("call_1", "weather", json.RawMessage(`{"city":"Rome"}`)),
		)},
		{Role: ai.RoleUser, Content: ai.BlockContent(ai.ToolResultBlock("call_1", "sunny"))},
		{Role: ai.RoleTool, ToolCallID: "call_2", Content: ai.TextContent("42")},
	}

	body := encodeRequest(t, messages, ai.CompletionOptions{}, false)
	want := []any{
		map[string]any{"role": "system", "content": "be brief"},
		map[string]any{"role": "user", "content": "weather?"},
		map[string]any{"role": "assistant", "content": "checking", "tool_calls": []any{
			map[string]any{"id": "call_1", "type": "function", "function": map[string]any{"name": "weather", "arguments": `{"city":"Rome"}`}},
		}},
		map[string]any{"role": "tool", "tool_call_id": "call_1", "content": "sunny"},
		map[string]any{"role": "tool", "tool_call_id": "call_2", "content": "42"},
	}
	if diff := cmp.Diff(want, body["messages"]); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

// TestBuildRequest_AssistantToolCallsOnly sends null content next to tool calls.
func TestBuildRequest_AssistantToolCallsOnly(t *testing.T) {
	messages := []ai.Message{{
		Role:      ai.RoleAssistant,
		ToolCalls: []ai.ToolCall{{ID: "c1", Type: "function", Function: ai.ToolCallFunction{Name: "f"}}},
	}}
	body := encodeRequest(t, messages, ai.CompletionOptions{}, false)
	message := body["messages"].([]any)[0].(map[string]any)
	if _, ok := message["content"]; ok {
		t.Errorf("expected content to be omitted, got %v", message["content"])
	}
	call := message["tool_calls"].([]any)[0].(map[string]any)
	if call["function"].(map[string]any)["arguments"] != "{}" {
		t.Errorf("expected empty arguments to become {}, got %v", call["function"])
	}
}

// TestBuildRequest_SystemPromptOverride replaces system-role messages.
func TestBuildRequest_SystemPromptOverride(t *testing.T) {
	messages := []ai.Message{ai.NewTextMessage(ai.RoleSystem, "old"), ai.NewTextMessage(ai.RoleUser, "hi")}
	body := encodeRequest(t, messages, ai.CompletionOptions{SystemPrompt: "new"}, false)
	got := body["messages"].([]any)
	if len(got) != 2 || got[0].(map[string]any)["content"] != "new" {
		t.Errorf("expected override system prompt only, got %v", got)
	}
}

// TestBuildRequest_Image emits content parts with a data URL.
func TestBuildRequest_Image(t *testing.T) {
	image := ai.ContentBlock{Type: ai.BlockImage, Source: &ai.ImageSource{Type: "base64", MediaType: "image/png", Data: "AAAA"}}
	messages := []ai.Message{{Role: ai.RoleUser, Content: ai.BlockContent(ai.TextBlock("look"), image)}}
	body := encodeRequest(t, messages, ai.CompletionOptions{}, false)

	want := []any{
		map[string]any{"type": "text", "text": "look"},
		map[string]any{"type": "image_url", "image_url": map[string]any{"url": "data:image/png;base64,AAAA"}},
	}
	got := body["messages"].([]any)[0].(map[string]any)["content"]
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parts mismatch (-want +got):\n%s", diff)
	}
}

// TestBuildRequest_FailsClosed rejects unknown roles and malformed blocks.
func TestBuildRequest_FailsClosed(t *testing.T) {
	_, err := New().BuildRequest("m", []ai.Message{{Role: "developer"}}, ai.CompletionOptions{}, false)
	if !errors.Is(err, ai.ErrUnknownRole) {
		t.Errorf("expected ErrUnknownRole, got %v", err)
	}

	bad := []ai.Message{{Role: ai.RoleUser, Content: ai.BlockContent(ai.ContentBlock{Type: ai.BlockToolUse})}}
	_, err = New().BuildRequest("m", bad, ai.CompletionOptions{}, false)
	if !errors.Is(err, ai.ErrInvalidBlock) {
		t.Errorf("expected ErrInvalidBlock, got %v", err)
	}
}

// TestParseResponse_StringContent maps a plain chat completion.
func TestParseResponse_StringContent(t *testing.T) {
	body := `{"id":"chatcmpl-1","created":1700000000,"model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"Hello","reasoning_content":"thought"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2}}`

	response, err := New().ParseResponse([]byte(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := &ai.CompletionResponse{
		ID:      "chatcmpl-1",
		Created: 1700000000,
		Model:   "gpt-4o",
		Choices: []ai.Choice{{Message: ai.Message{Role: ai.RoleAssistant, Content: ai.TextContent("Hello"), Reasoning: "thought"}, FinishReason: "stop"}},
		Usage:   &ai.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
	}
	if diff := cmp.Diff(want, response); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

// TestParseResponse_MergedToolCalls keeps top-level tool calls first and then
// appends tool_use blocks from block content.
func TestParseResponse_MergedToolCalls(t *testing.T) {
	body := `{"id":"x","choices":[{"message":{"role":"assistant",
		"content":[{"type":"text","text":"ok"},{"type":"tool_use","id":"tu_1","name":"b","input":{"y":2}}],
		"tool_calls":[{"id":"call_1","type":"function","function":{"name":"a","arguments":"{\"x\":1}"}}]},
		"finish_reason":"stop"}]}`

	response, err := New().ParseResponse([]byte(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := response.Message().ToolCalls
	if len(calls) != 2 || calls[0].Function.Name != "a" || calls[1].Function.Name != "b" {
		t.Fatalf("unexpected tool calls %+v", calls)
	}
	if calls[1].Function.Arguments != `{"y":2}` {
		t.Errorf("unexpected block arguments %q", calls[1].Function.Arguments)
	}
	if response.FinishReason() != ai.FinishReasonToolCalls {
		t.Errorf("expected tool_calls, got %q", response.FinishReason())
	}
	if response.Message().Content.String() != "ok" {
		t.Errorf("unexpected text %q", response.Message().Content.String())
	}
	if response.Usage != nil {
		t.Error("expected nil usage when not reported")
	}
	if response.Created == 0 {
		t.Error("expected a creation time to be filled in")
	}
}

// TestParseResponse_NullContent and an empty block list both become empty text.
func TestParseResponse_NullContent(t *testing.T) {
	for _, content := range []string{`null`, `[]`} {
		body := `{"id":"x","choices":[{"message":{"role":"assistant","content":` + content + `},"finish_reason":"length"}]}`
		response, err := New().ParseResponse([]byte(body))
		if err != nil {
			t.Fatalf("content %s: unexpected error: %v", content, err)
		}
		if response.Message().Content.IsBlocks() || response.Message().Content.String() != "" {
			t.Errorf("content %s: expected empty text, got %+v", content, response.Message().Content)
		}
		if response.FinishReason() != ai.FinishReasonLength {
			t.Errorf("content %s: expected length, got %q", content, response.FinishReason())
		}
	}
}

// TestParseResponse_FailsClosed rejects unknown blocks, missing choices and bad JSON.
func TestParseResponse_FailsClosed(t *testing.T) {
	_, err := New().ParseResponse([]byte(`{"choices":[{"message":{"content":[{"type":"hologram"}]}}]}`))
	if !errors.Is(err, ai.ErrUnknownBlock) {
		t.Errorf("expected ErrUnknownBlock, got %v", err)
	}
	_, err = New().ParseResponse([]byte(`{"choices":[]}`))
	if !errors.Is(err, ErrNoChoices) {
		t.Errorf("expected ErrNoChoices, got %v", err)
	}
	if _, err = New().ParseResponse([]byte(`{`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

// TestParseResponse_FinishReasons folds vendor reasons into the canonical set.
func TestParseResponse_FinishReasons(t *testing.T) {
	tests := map[string]string{
		"stop":           ai.FinishReasonStop,
		"length":         ai.FinishReasonLength,
		"max_tokens":     ai.FinishReasonLength,
		"content_filter": ai.FinishReasonContentFilter,
		"eos":            ai.FinishReasonStop,
		"":               ai.FinishReasonStop,
	}
	for reason, want := range tests {
		body := `{"id":"x","choices":[{"message":{"content":"a"},"finish_reason":"` + reason + `"}]}`
		response, err := New().ParseResponse([]byte(body))
		if err != nil {
			t.Fatalf("reason %q: unexpected error: %v", reason, err)
		}
		if response.FinishReason() != want {
			t.Errorf("reason %q: expected %q, got %q", reason, want, response.FinishReason())
		}
	}
}

// TestParseModels reads the data array.
func TestParseModels(t *testing.T) {
	models, err := New().ParseModels([]byte(`{"object":"list","data":[{"id":"gpt-4o","owned_by":"openai"},{"id":"o3"}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []ai.ModelInfo{{ID: "gpt-4o", DisplayName: "gpt-4o", Family: "openai"}, {ID: "o3", DisplayName: "o3"}}
	if diff := cmp.Diff(want, models); diff != "" {
		t.Errorf("models mismatch (-want +got):\n%s", diff)
	}
}
