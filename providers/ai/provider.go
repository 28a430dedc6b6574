package ai

import "context"

// Completer is the collaborator-facing surface of a completion client. The
// session loop depends on this interface rather than on a concrete client so
// it can be exercised against fakes.
type Completer interface {
	// Complete sends the conversation and returns the full response. Transient
	// failures are retried according to the client's retry policy.
	Complete(ctx context.Context, messages []Message, options CompletionOptions) (*CompletionResponse, error)

	// Stream sends the conversation and returns a lazy event stream. Streams are
	// never retried transparently; failures surface as a terminal error event.
	Stream(ctx context.Context, messages []Message, options CompletionOptions) *Stream

	// Models returns the configured or vendor-reported model list.
	Models(ctx context.Context) ([]ModelInfo, error)

	// Abort cancels every in-flight call.
	Abort()

	// Close aborts in-flight calls and releases idle transport resources.
	Close() error
}

// Codec converts between the canonical model and one vendor wire format.
// Each protocol family package provides one.
type Codec interface {
	// Name identifies the wire format ("openai", "anthropic").
	Name() string

	// BuildRequest converts a canonical conversation into the vendor request
	// body. Unknown roles and malformed blocks fail closed.
	BuildRequest(model string, messages []Message, options CompletionOptions, stream bool) (any, error)

	// ParseResponse converts a buffered vendor response body into the
	// canonical response.
	ParseResponse(body []byte) (*CompletionResponse, error)

	// ParseModels converts a model listing body into ModelInfo values.
	ParseModels(body []byte) ([]ModelInfo, error)

	// NewStreamHandler returns a fresh, call-local handler for streamed lines.
	NewStreamHandler() LineHandler
}

// LineHandler maps one complete line of a streamed response to zero or more
// canonical events. A terminal event (done or error) ends the stream; the
// decoder never calls the handler again afterwards. Handlers must swallow
// payloads they cannot parse rather than fail the stream.
type LineHandler interface {
	HandleLine(line string) []StreamEvent
}

// StreamFinisher is implemented by handlers that remember state across lines,
// such as a finish reason announced before the end of the stream. The decoder
// calls Finish once at end of input when no terminal event was produced.
type StreamFinisher interface {
	Finish() []StreamEvent
}

// LineHandlerFunc adapts a function to LineHandler.
type LineHandlerFunc func(line string) []StreamEvent

// HandleLine calls f(line).
func (f LineHandlerFunc) HandleLine(line string) []StreamEvent {
	return f(line)
}
