package slogobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/xagent-cli/xagent/core/apierror"
	"github.com/xagent-cli/xagent/providers/ai"
	"github.com/xagent-cli/xagent/providers/observability"
)

// newTestObserver returns an observer writing JSON records at DEBUG into buf.
func newTestObserver(buf *bytes.Buffer, detail Detail) *Observer {
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(WithLogger(logger), WithDetail(detail))
}

// records decodes one JSON object per logged line.
func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		record := map[string]any{}
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		out = append(out, record)
	}
	return out
}

var testRequest = observability.RequestInfo{
	Family:   "default",
	Format:   "openai",
	URL:      "http://vendor/chat/completions",
	Model:    "gpt-test",
	Attempt:  1,
	Messages: 2,
	Tools:    1,
	Body:     map[string]any{"model": "gpt-test"},
}

// TestObserver_Response logs a successful call at INFO with usage.
func TestObserver_Response(t *testing.T) {
	var buf bytes.Buffer
	observer := newTestObserver(&buf, DetailStandard)

	response := ai.NewCompletionResponse("resp-1", 1, "gpt-test", ai.NewTextMessage(ai.RoleAssistant, "hi"), ai.FinishReasonStop,
		&ai.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5})
	observer.AfterResponse(context.Background(), observability.ResponseInfo{
		Request:  testRequest,
		Duration: time.Second,
		Attempts: 1,
		Response: response,
	})

	got := records(t, &buf)
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	record := got[0]
	if record["msg"] != "llm response" || record["level"] != "INFO" {
		t.Errorf("unexpected record header %v", record)
	}
	if record[observability.AttrLLMTokensTotal] != float64(5) {
		t.Errorf("expected total tokens 5, got %v", record[observability.AttrLLMTokensTotal])
	}
	if record[observability.AttrLLMFinishReason] != "stop" {
		t.Errorf("expected finish reason stop, got %v", record[observability.AttrLLMFinishReason])
	}
	if _, ok := record[observability.AttrResponseContent]; ok {
		t.Error("content must only be logged at verbose detail")
	}
}

// TestObserver_ResponseError logs failures at ERROR with the class.
func TestObserver_ResponseError(t *testing.T) {
	var buf bytes.Buffer
	observer := newTestObserver(&buf, DetailMinimal)

	observer.AfterResponse(context.Background(), observability.ResponseInfo{
		Request:    testRequest,
		Err:        errors.New("boom"),
		ErrorClass: apierror.ClassServer,
	})

	record := records(t, &buf)[0]
	if record["level"] != "ERROR" || record[observability.AttrErrorClass] != "server" || record[observability.AttrError] != "boom" {
		t.Errorf("unexpected record %v", record)
	}
}

// TestObserver_VerboseTruncatesContent caps logged content.
func TestObserver_VerboseTruncatesContent(t *testing.T) {
	var buf bytes.Buffer
	observer := newTestObserver(&buf, DetailVerbose)

	long := strings.Repeat("x", 2000)
	response := ai.NewCompletionResponse("r", 1, "m", ai.NewTextMessage(ai.RoleAssistant, long), ai.FinishReasonStop, nil)
	observer.AfterResponse(context.Background(), observability.ResponseInfo{Request: testRequest, Response: response})

	content, _ := records(t, &buf)[0][observability.AttrResponseContent].(string)
	if content == "" || len(content) >= len(long) {
		t.Errorf("expected truncated content, got %d chars", len(content))
	}
}

// TestObserver_Request includes the body only at verbose detail.
func TestObserver_Request(t *testing.T) {
	for _, tt := range []struct {
		detail   Detail
		wantBody bool
	}{
		{DetailStandard, false},
		{DetailVerbose, true},
	} {
		var buf bytes.Buffer
		newTestObserver(&buf, tt.detail).BeforeRequest(context.Background(), testRequest)

		record := records(t, &buf)[0]
		if record["msg"] != "llm request" || record["level"] != "DEBUG" {
			t.Errorf("%s: unexpected record %v", tt.detail, record)
		}
		if _, ok := record[observability.AttrRequestBody]; ok != tt.wantBody {
			t.Errorf("%s: body presence %v, want %v", tt.detail, ok, tt.wantBody)
		}
	}
}

// TestObserver_Retry logs at WARN with the delay and class.
func TestObserver_Retry(t *testing.T) {
	var buf bytes.Buffer
	newTestObserver(&buf, DetailMinimal).OnRetry(context.Background(), observability.RetryInfo{
		Request: testRequest,
		Attempt: 2,
		Delay:   time.Second,
		Err:     errors.New("busy"),
		Class:   apierror.ClassRateLimit,
	})

	record := records(t, &buf)[0]
	if record["msg"] != "llm retry" || record["level"] != "WARN" {
		t.Errorf("unexpected record %v", record)
	}
	if record[observability.AttrLLMAttempt] != float64(2) || record[observability.AttrErrorClass] != "rate_limit" {
		t.Errorf("unexpected attributes %v", record)
	}
}

// TestObserver_Deltas are only logged at verbose detail.
func TestObserver_Deltas(t *testing.T) {
	var buf bytes.Buffer
	newTestObserver(&buf, DetailStandard).OnDelta(context.Background(), testRequest, ai.TextDelta("x"))
	if buf.Len() != 0 {
		t.Fatalf("expected no output at standard detail, got %q", buf.String())
	}

	newTestObserver(&buf, DetailVerbose).OnDelta(context.Background(), testRequest, ai.TextDelta("hello"))
	record := records(t, &buf)[0]
	if record[observability.AttrLLMDeltaContent] != "hello" || record[observability.AttrLLMDeltaType] != "text_delta" {
		t.Errorf("unexpected record %v", record)
	}
}
