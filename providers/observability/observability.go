package observability

import (
	"context"
	"time"

	"github.com/xagent-cli/xagent/core/apierror"
	"github.com/xagent-cli/xagent/providers/ai"
)

// Observer receives notifications from a completion client. Implementations
// must be safe for concurrent use and must not block: they run inline on the
// calling goroutine.
type Observer interface {
	// BeforeRequest is called before each HTTP attempt.
	BeforeRequest(ctx context.Context, request RequestInfo)

	// AfterResponse is called once per call, after the final attempt of a
	// buffered call or once a stream has been fully consumed.
	AfterResponse(ctx context.Context, response ResponseInfo)

	// OnDelta is called for every event a stream yields, terminal included.
	OnDelta(ctx context.Context, request RequestInfo, event ai.StreamEvent)

	// OnRetry is called before the client sleeps ahead of another attempt.
	OnRetry(ctx context.Context, retry RetryInfo)
}

// RequestInfo describes one outgoing attempt.
type RequestInfo struct {
	Family   string // endpoint family (default, native, hybrid)
	Format   string // wire format (openai, anthropic)
	URL      string
	Model    string
	Stream   bool
	Attempt  int
	Messages int
	Tools    int
	Body     any // vendor request body, before encoding
}

// ResponseInfo describes the outcome of a call.
type ResponseInfo struct {
	Request    RequestInfo
	Duration   time.Duration
	Attempts   int
	Response   *ai.CompletionResponse // nil on failure
	Err        error
	ErrorClass apierror.Class
}

// RetryInfo describes a scheduled retry.
type RetryInfo struct {
	Request RequestInfo
	Attempt int // the attempt that failed
	Delay   time.Duration
	Err     error
	Class   apierror.Class
}

// Nop is an Observer that does nothing.
type Nop struct{}

var _ Observer = Nop{}

func (Nop) BeforeRequest(context.Context, RequestInfo)           {}
func (Nop) AfterResponse(context.Context, ResponseInfo)          {}
func (Nop) OnDelta(context.Context, RequestInfo, ai.StreamEvent) {}
func (Nop) OnRetry(context.Context, RetryInfo)                   {}

// Multi returns an Observer that notifies each non-nil observer in order.
func Multi(observers ...Observer) Observer {
	var list multi
	for _, observer := range observers {
		switch o := observer.(type) {
		case nil, Nop:
		case multi:
			list = append(list, o...)
		default:
			list = append(list, o)
		}
	}
	switch len(list) {
	case 0:
		return Nop{}
	case 1:
		return list[0]
	}
	return list
}

type multi []Observer

func (m multi) BeforeRequest(ctx context.Context, request RequestInfo) {
	for _, o := range m {
		o.BeforeRequest(ctx, request)
	}
}

func (m multi) AfterResponse(ctx context.Context, response ResponseInfo) {
	for _, o := range m {
		o.AfterResponse(ctx, response)
	}
}

func (m multi) OnDelta(ctx context.Context, request RequestInfo, event ai.StreamEvent) {
	for _, o := range m {
		o.OnDelta(ctx, request, event)
	}
}

func (m multi) OnRetry(ctx context.Context, retry RetryInfo) {
	for _, o := range m {
		o.OnRetry(ctx, retry)
	}
}

// --- ATTRIBUTES ---

// Attribute is a key-value pair attached to an observation.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int creates an integer attribute.
func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value}
}

// Error creates an error attribute; a nil error yields an empty value.
func Error(err error) Attribute {
	if err == nil {
		return Attribute{Key: AttrError, Value: ""}
	}
	return Attribute{Key: AttrError, Value: err.Error()}
}

// Attributes returns the common attributes describing request.
func (request RequestInfo) Attributes() []Attribute {
	return []Attribute{
		String(AttrLLMFamily, request.Family),
		String(AttrLLMProvider, request.Format),
		String(AttrLLMModel, request.Model),
		String(AttrLLMEndpoint, request.URL),
		Bool(AttrLLMStream, request.Stream),
		Int(AttrLLMAttempt, request.Attempt),
	}
}
