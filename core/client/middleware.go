package client

import (
	"context"

	"github.com/xagent-cli/xagent/providers/ai"
)

// Request is the unit threaded through the middleware chains.
type Request struct {
	Model    string
	Messages []ai.Message
	Options  ai.CompletionOptions
}

// CompleteFunc performs a buffered completion, retries included.
type CompleteFunc func(ctx context.Context, request Request) (*ai.CompletionResponse, error)

// StreamFunc opens a lazy completion stream.
type StreamFunc func(ctx context.Context, request Request) *ai.Stream

// Middleware wraps the buffered call path. The first middleware in
// Config.Middlewares is the outermost wrapper.
type Middleware func(next CompleteFunc) CompleteFunc

// StreamMiddleware wraps the streaming call path.
type StreamMiddleware func(next StreamFunc) StreamFunc

// MiddlewareConfig pairs a buffered middleware with its optional streaming
// counterpart. Complete is required; a nil Stream means streaming calls skip
// this entry.
type MiddlewareConfig struct {
	Complete Middleware
	Stream   StreamMiddleware
}

func buildCompleteChain(base CompleteFunc, middlewares []MiddlewareConfig) CompleteFunc {
	chain := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		chain = middlewares[i].Complete(chain)
	}
	return chain
}

func buildStreamChain(base StreamFunc, middlewares []MiddlewareConfig) StreamFunc {
	chain := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i].Stream != nil {
			chain = middlewares[i].Stream(chain)
		}
	}
	return chain
}
