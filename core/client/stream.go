package client

import (
	"context"
	"errors"

	"github.com/xagent-cli/xagent/core/apierror"
	"github.com/xagent-cli/xagent/core/decoder"
	"github.com/xagent-cli/xagent/internal/utils"
	"github.com/xagent-cli/xagent/providers/ai"
	"github.com/xagent-cli/xagent/providers/observability"
)

// errStreamAbandoned is reported to observers when the consumer stops
// iterating before the terminal event.
var errStreamAbandoned = errors.New("stream abandoned by consumer")

// Stream returns a lazy stream for the conversation. Nothing is sent until
// iteration begins, and a failed stream is never retried: failures arrive as
// a terminal error event, cancellation as done with reason cancelled and an
// expired deadline as an error event of class timeout.
func (c *Client) Stream(ctx context.Context, messages []ai.Message, options ai.CompletionOptions) *ai.Stream {
	snap := c.current.Load()
	return snap.stream(ctx, snap.request(messages, options))
}

func (c *Client) openStream(parent context.Context, snap *snapshot, request Request) *ai.Stream {
	return ai.NewStream(func(yield func(ai.StreamEvent) bool) {
		ctx, release, err := c.track(parent)
		if err != nil {
			yield(ai.ErrorEvent(err))
			return
		}
		defer release()

		observer := snap.observerFor(ctx)
		info := snap.requestInfo(request, true)
		info.Attempt = 1
		timer := utils.NewTimer()

		var terminal ai.StreamEvent
		defer func() {
			outcome := observability.ResponseInfo{Request: info, Duration: timer.Stop(), Attempts: 1}
			switch terminal.Type {
			case ai.StreamEventError:
				outcome.Err = terminal.Err
				outcome.ErrorClass = apierror.ClassOf(terminal.Err)
			case ai.StreamEventDone:
				if terminal.FinishReason == ai.FinishReasonCancelled {
					outcome.Err = context.Canceled
					outcome.ErrorClass = apierror.ClassCancelled
				}
			default:
				outcome.Err = errStreamAbandoned
				outcome.ErrorClass = apierror.ClassCancelled
			}
			observer.AfterResponse(ctx, outcome)
		}()

		emit := func(event ai.StreamEvent) bool {
			observer.OnDelta(ctx, info, event)
			if event.Terminal() {
				terminal = event
			}
			return yield(event)
		}

		if request.Model == "" {
			emit(ai.ErrorEvent(errNoModel))
			return
		}
		body, err := snap.codec.BuildRequest(request.Model, request.Messages, request.Options, true)
		if err != nil {
			emit(ai.ErrorEvent(invalidRequest(err)))
			return
		}
		info.Body = body
		observer.BeforeRequest(ctx, info)

		response, err := utils.DoPostStream(ctx, snap.http, snap.endpoint.URL(), snap.endpoint.Headers(snap.config.APIKey), body)
		if err != nil {
			if ctx.Err() != nil {
				emit(decoder.Interrupted(ctx))
				return
			}
			emit(ai.ErrorEvent(err))
			return
		}
		defer utils.CloseWithLog(response.Body)

		for event := range decoder.Decode(ctx, response.Body, snap.codec.NewStreamHandler()) {
			if !emit(event) {
				return
			}
		}
	})
}
