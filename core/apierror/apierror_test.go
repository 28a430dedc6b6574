package apierror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

// TestFromResponse_Classes maps status codes to classes.
func TestFromResponse_Classes(t *testing.T) {
	tests := []struct {
		status int
		want   Class
	}{
		{status: 400, want: ClassClient},
		{status: 401, want: ClassClient},
		{status: 404, want: ClassClient},
		{status: 408, want: ClassTimeout},
		{status: 429, want: ClassRateLimit},
		{status: 500, want: ClassServer},
		{status: 503, want: ClassServer},
		{status: 529, want: ClassServer},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			got := FromResponse(tt.status, http.Header{}, nil)
			if got.Class != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got.Class)
			}
			if got.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, got.StatusCode)
			}
		})
	}
}

// TestFromResponse_Message extracts the vendor message from each envelope shape.
func TestFromResponse_Message(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "nested", body: `{"error":{"type":"invalid_request_error","message":"bad model"}}`, want: "bad model"},
		{name: "string", body: `{"error":"quota exhausted"}`, want: "quota exhausted"},
		{name: "flat", body: `{"message":"slow down"}`, want: "slow down"},
		{name: "plain text", body: "upstream failure\nmore", want: "upstream failure"},
		{name: "empty", body: "", want: "Bad Request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromResponse(400, http.Header{}, []byte(tt.body))
			if got.Message != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got.Message)
			}
		})
	}
}

// TestFromResponse_RetryAfter parses the delay-seconds form.
func TestFromResponse_RetryAfter(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "7")
	got := FromResponse(429, header, nil)
	if got.RetryAfter != 7*time.Second {
		t.Errorf("expected 7s, got %v", got.RetryAfter)
	}
}

// TestRenderBody_HTML converts gateway HTML pages to Markdown.
func TestRenderBody_HTML(t *testing.T) {
	body := []byte("<html><body><h1>502 Bad Gateway</h1><p>nginx</p></body></html>")
	got := RenderBody("text/html; charset=utf-8", body)
	if strings.Contains(got, "<h1>") {
		t.Errorf("expected HTML tags to be removed, got %q", got)
	}
	if !strings.Contains(got, "502 Bad Gateway") {
		t.Errorf("expected heading text to survive, got %q", got)
	}
}

// TestRenderBody_Truncates long bodies.
func TestRenderBody_Truncates(t *testing.T) {
	got := RenderBody("application/json", []byte(strings.Repeat("x", maxBodyLength+10)))
	if !strings.Contains(got, "truncated") {
		t.Errorf("expected truncation marker, got %d chars", len(got))
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// TestClassify maps raw transport errors.
func TestClassify(t *testing.T) {
	already := New(ClassServer, "x", nil)

	tests := []struct {
		name string
		err  error
		want Class
	}{
		{name: "cancelled", err: fmt.Errorf("send: %w", context.Canceled), want: ClassCancelled},
		{name: "deadline", err: context.DeadlineExceeded, want: ClassTimeout},
		{name: "net timeout", err: timeoutError{}, want: ClassTimeout},
		{name: "other", err: errors.New("connection refused"), want: ClassNetwork},
		{name: "already classified", err: fmt.Errorf("wrapped: %w", already), want: ClassServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got.Class != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got.Class)
			}
		})
	}

	if Classify(nil) != nil {
		t.Error("expected nil for nil error")
	}
}

// TestClassOf finds wrapped errors.
func TestClassOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(ClassRateLimit, "slow", nil))
	if ClassOf(err) != ClassRateLimit {
		t.Errorf("expected rate_limit, got %q", ClassOf(err))
	}
	if ClassOf(errors.New("plain")) != "" {
		t.Error("expected empty class for unclassified error")
	}
}

// TestFromContext tells an expired deadline apart from a cancellation.
func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Error("expected nil for a live context")
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if got := FromContext(cancelled); got.Class != ClassCancelled || !errors.Is(got, context.Canceled) {
		t.Errorf("expected cancelled wrapping context.Canceled, got %v", got)
	}

	expired, stop := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer stop()
	if got := FromContext(expired); got.Class != ClassTimeout || !errors.Is(got, context.DeadlineExceeded) {
		t.Errorf("expected timeout wrapping DeadlineExceeded, got %v", got)
	}
}
