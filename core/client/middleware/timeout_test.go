package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xagent-cli/xagent/core/apierror"
	"github.com/xagent-cli/xagent/core/client"
	"github.com/xagent-cli/xagent/core/decoder"
	"github.com/xagent-cli/xagent/providers/ai"
)

// slowComplete returns a CompleteFunc that answers after sleep unless its
// context ends first.
func slowComplete(sleep time.Duration) client.CompleteFunc {
	return func(ctx context.Context, _ client.Request) (*ai.CompletionResponse, error) {
		select {
		case <-time.After(sleep):
			return ai.NewCompletionResponse("r", 1, "m", ai.NewTextMessage(ai.RoleAssistant, "ok"), ai.FinishReasonStop, nil), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// slowStream returns a StreamFunc that yields after sleep unless its context
// ends first, in which case it ends the way the client does.
func slowStream(sleep time.Duration) client.StreamFunc {
	return func(ctx context.Context, _ client.Request) *ai.Stream {
		return ai.NewStream(func(yield func(ai.StreamEvent) bool) {
			select {
			case <-time.After(sleep):
				if yield(ai.TextDelta("hello")) {
					yield(ai.DoneEvent(ai.FinishReasonStop))
				}
			case <-ctx.Done():
				yield(decoder.Interrupted(ctx))
			}
		})
	}
}

// TestTimeoutMiddleware_CompleteInTime passes fast responses through.
func TestTimeoutMiddleware_CompleteInTime(t *testing.T) {
	chain := NewTimeoutMiddleware(time.Second).Complete(slowComplete(0))

	response, err := chain(context.Background(), client.Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response.Message().Content.String() != "ok" {
		t.Errorf("unexpected content %q", response.Message().Content.String())
	}
}

// TestTimeoutMiddleware_CompleteExceeds cuts slow calls off.
func TestTimeoutMiddleware_CompleteExceeds(t *testing.T) {
	chain := NewTimeoutMiddleware(20 * time.Millisecond).Complete(slowComplete(time.Second))

	_, err := chain(context.Background(), client.Request{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

// TestTimeoutMiddleware_StreamStartsOnIteration does not start the deadline
// until the stream is iterated.
func TestTimeoutMiddleware_StreamStartsOnIteration(t *testing.T) {
	stream := NewTimeoutMiddleware(50*time.Millisecond).Stream(slowStream(10*time.Millisecond))(context.Background(), client.Request{})

	time.Sleep(100 * time.Millisecond)

	response, err := stream.Collect()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response.Message().Content.String() != "hello" {
		t.Errorf("expected hello, got %q", response.Message().Content.String())
	}
}

// TestTimeoutMiddleware_StreamExceeds ends slow streams with a timeout error.
func TestTimeoutMiddleware_StreamExceeds(t *testing.T) {
	stream := NewTimeoutMiddleware(20*time.Millisecond).Stream(slowStream(time.Second))(context.Background(), client.Request{})

	_, err := stream.Collect()
	if apierror.ClassOf(err) != apierror.ClassTimeout {
		t.Errorf("expected timeout class, got %v", err)
	}
}

// TestTimeoutMiddleware_StreamCallerCancel still reports a caller
// cancellation as done(cancelled).
func TestTimeoutMiddleware_StreamCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stream := NewTimeoutMiddleware(time.Second).Stream(slowStream(time.Second))(ctx, client.Request{})

	response, err := stream.Collect()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response.FinishReason() != ai.FinishReasonCancelled {
		t.Errorf("expected cancelled, got %q", response.FinishReason())
	}
}

// TestDefaultsMiddleware fills only unset fields.
func TestDefaultsMiddleware(t *testing.T) {
	temperature := 0.2
	defaults := NewDefaultsMiddleware(ai.CompletionOptions{
		Model:        "fallback",
		SystemPrompt: "be brief",
		Temperature:  &temperature,
		MaxTokens:    100,
	})

	var seen client.Request
	capture := func(_ context.Context, request client.Request) (*ai.CompletionResponse, error) {
		seen = request
		return nil, nil
	}

	_, _ = defaults.Complete(capture)(context.Background(), client.Request{Options: ai.CompletionOptions{MaxTokens: 7}})

	if seen.Model != "fallback" || seen.Options.SystemPrompt != "be brief" {
		t.Errorf("expected defaults applied, got %+v", seen)
	}
	if seen.Options.MaxTokens != 7 {
		t.Errorf("expected explicit max tokens kept, got %d", seen.Options.MaxTokens)
	}
	if seen.Options.Temperature == nil || *seen.Options.Temperature != 0.2 {
		t.Errorf("expected default temperature, got %v", seen.Options.Temperature)
	}

	_, _ = defaults.Complete(capture)(context.Background(), client.Request{Model: "explicit"})
	if seen.Model != "explicit" {
		t.Errorf("expected explicit model kept, got %q", seen.Model)
	}
}
