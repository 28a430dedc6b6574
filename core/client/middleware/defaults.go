package middleware

import (
	"context"

	"github.com/xagent-cli/xagent/core/client"
	"github.com/xagent-cli/xagent/providers/ai"
)

// NewDefaultsMiddleware fills the options a call leaves unset from defaults.
// Tools and tool choice are never defaulted.
func NewDefaultsMiddleware(defaults ai.CompletionOptions) client.MiddlewareConfig {
	apply := func(request client.Request) client.Request {
		options := request.Options
		if options.SystemPrompt == "" {
			options.SystemPrompt = defaults.SystemPrompt
		}
		if options.Temperature == nil {
			options.Temperature = defaults.Temperature
		}
		if options.MaxTokens == 0 {
			options.MaxTokens = defaults.MaxTokens
		}
		if options.ThinkingBudget == 0 {
			options.ThinkingBudget = defaults.ThinkingBudget
		}
		if request.Model == "" {
			request.Model = defaults.Model
		}
		request.Options = options
		return request
	}

	return client.MiddlewareConfig{
		Complete: func(next client.CompleteFunc) client.CompleteFunc {
			return func(ctx context.Context, request client.Request) (*ai.CompletionResponse, error) {
				return next(ctx, apply(request))
			}
		},
		Stream: func(next client.StreamFunc) client.StreamFunc {
			return func(ctx context.Context, request client.Request) *ai.Stream {
				return next(ctx, apply(request))
			}
		},
	}
}
