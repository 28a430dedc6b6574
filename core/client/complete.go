package client

import (
	"context"

	"github.com/xagent-cli/xagent/core/apierror"
	"github.com/xagent-cli/xagent/core/retry"
	"github.com/xagent-cli/xagent/internal/utils"
	"github.com/xagent-cli/xagent/providers/ai"
	"github.com/xagent-cli/xagent/providers/observability"
)

// errNoModel is returned when neither the options nor the configuration name
// a model.
var errNoModel = apierror.New(apierror.ClassClient, "no model configured", nil)

// invalidRequest classifies a conversation the codec refused to encode.
func invalidRequest(err error) error {
	return &apierror.Error{Class: apierror.ClassClient, Err: err}
}

// Complete sends the conversation and returns the normalized response.
// Retryable failures are retried under the configured policy; exhaustion
// returns an error wrapping retry.ErrRetryExhausted (or
// retry.ErrBudgetExceeded) and the last *apierror.Error.
func (c *Client) Complete(ctx context.Context, messages []ai.Message, options ai.CompletionOptions) (*ai.CompletionResponse, error) {
	snap := c.current.Load()
	return snap.complete(ctx, snap.request(messages, options))
}

// CompleteWithResult is Complete without the middleware chain, returning the
// full retry outcome including the attempt count and elapsed time.
func (c *Client) CompleteWithResult(ctx context.Context, messages []ai.Message, options ai.CompletionOptions) retry.Result[*ai.CompletionResponse] {
	snap := c.current.Load()
	return c.run(ctx, snap, snap.request(messages, options))
}

// run executes one buffered call under the retry executor.
func (c *Client) run(ctx context.Context, snap *snapshot, request Request) retry.Result[*ai.CompletionResponse] {
	ctx, release, err := c.track(ctx)
	if err != nil {
		return retry.Result[*ai.CompletionResponse]{Err: err}
	}
	defer release()

	observer := snap.observerFor(ctx)
	info := snap.requestInfo(request, false)

	policy := snap.retry
	userHook := policy.OnRetry
	policy.OnRetry = func(event retry.Event) {
		observer.OnRetry(ctx, observability.RetryInfo{
			Request: info,
			Attempt: event.Attempt,
			Delay:   event.Delay,
			Err:     event.Err,
			Class:   apierror.ClassOf(event.Err),
		})
		if userHook != nil {
			userHook(event)
		}
	}

	result := retry.Run(ctx, policy, func(ctx context.Context, attempt int) (*ai.CompletionResponse, error) {
		attemptInfo := info
		attemptInfo.Attempt = attempt
		return c.attempt(ctx, snap, request, attemptInfo, observer)
	})

	observer.AfterResponse(ctx, observability.ResponseInfo{
		Request:    info,
		Duration:   result.Elapsed,
		Attempts:   result.Attempts,
		Response:   result.Value,
		Err:        result.Err,
		ErrorClass: apierror.ClassOf(result.Err),
	})
	return result
}

// attempt builds, sends and parses one request.
func (c *Client) attempt(ctx context.Context, snap *snapshot, request Request, info observability.RequestInfo, observer observability.Observer) (*ai.CompletionResponse, error) {
	if request.Model == "" {
		return nil, errNoModel
	}
	body, err := snap.codec.BuildRequest(request.Model, request.Messages, request.Options, false)
	if err != nil {
		return nil, invalidRequest(err)
	}

	info.Body = body
	observer.BeforeRequest(ctx, info)

	raw, err := utils.DoPost(ctx, snap.http, snap.endpoint.URL(), snap.endpoint.Headers(snap.config.APIKey), body)
	if err != nil {
		return nil, err
	}

	response, err := snap.codec.ParseResponse(raw)
	if err != nil {
		return nil, apierror.Decode(err, raw)
	}
	if response.Model == "" {
		response.Model = request.Model
	}
	return response, nil
}
