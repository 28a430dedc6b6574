package middleware

import (
	"context"
	"time"

	"github.com/xagent-cli/xagent/core/client"
	"github.com/xagent-cli/xagent/providers/ai"
)

// NewTimeoutMiddleware bounds buffered calls, retries included, and whole
// stream iterations with timeout. A shorter deadline already on the caller's
// context still wins.
func NewTimeoutMiddleware(timeout time.Duration) client.MiddlewareConfig {
	return client.MiddlewareConfig{
		Complete: func(next client.CompleteFunc) client.CompleteFunc {
			return func(ctx context.Context, request client.Request) (*ai.CompletionResponse, error) {
				ctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				return next(ctx, request)
			}
		},
		Stream: func(next client.StreamFunc) client.StreamFunc {
			return func(ctx context.Context, request client.Request) *ai.Stream {
				// The deadline starts when iteration starts.
				return ai.NewStream(func(yield func(ai.StreamEvent) bool) {
					ctx, cancel := context.WithTimeout(ctx, timeout)
					defer cancel()
					for event := range next(ctx, request).Events() {
						if !yield(event) {
							return
						}
					}
				})
			}
		},
	}
}
