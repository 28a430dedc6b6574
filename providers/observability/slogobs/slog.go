package slogobs

import (
	"context"
	"log/slog"

	"github.com/xagent-cli/xagent/internal/utils"
	"github.com/xagent-cli/xagent/providers/ai"
	"github.com/xagent-cli/xagent/providers/observability"
)

// Observer logs client activity through a slog.Logger:
//
//   - "llm request" (DEBUG) before each attempt
//   - "llm retry" (WARN) before each backoff sleep
//   - "llm response" (INFO on success, ERROR on failure) once per call
//   - "llm delta" (DEBUG) per streamed event, at DetailVerbose only
type Observer struct {
	logger *slog.Logger
	detail Detail
}

var _ observability.Observer = (*Observer)(nil)

// Option configures an Observer.
type Option func(*options)

type options struct {
	logger *slog.Logger
	detail Detail
	format Format
	level  slog.Level
}

// WithLogger logs through logger instead of building a handler.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithDetail sets how much of each call is logged.
func WithDetail(detail Detail) Option {
	return func(o *options) { o.detail = detail }
}

// WithFormat sets the handler format. Ignored with WithLogger.
func WithFormat(format Format) Option {
	return func(o *options) { o.format = format }
}

// WithLevel sets the handler level. Ignored with WithLogger.
func WithLevel(level slog.Level) Option {
	return func(o *options) { o.level = level }
}

// New returns an Observer. Without WithLogger it writes to stderr using the
// format and level from XAGENT_LOG_FORMAT and XAGENT_LOG_LEVEL.
func New(opts ...Option) *Observer {
	cfg := &options{
		detail: DetailStandard,
		format: FormatFromEnv(),
		level:  LevelFromEnv(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.New(NewHandler(cfg.format, cfg.level, nil))
	}
	return &Observer{logger: logger, detail: cfg.detail}
}

// BeforeRequest logs the outgoing attempt.
func (o *Observer) BeforeRequest(ctx context.Context, request observability.RequestInfo) {
	attrs := requestAttrs(request)
	if o.detail >= DetailStandard {
		attrs = append(attrs,
			slog.Int(observability.AttrRequestMessagesCount, request.Messages),
			slog.Int(observability.AttrRequestToolsCount, request.Tools),
		)
	}
	if o.detail >= DetailVerbose && request.Body != nil {
		attrs = append(attrs, slog.String(observability.AttrRequestBody,
			utils.TruncateString(utils.JSONToString(request.Body), utils.DefaultMaxStringLength)))
	}
	o.logger.LogAttrs(ctx, slog.LevelDebug, "llm request", attrs...)
}

// AfterResponse logs the outcome of a call.
func (o *Observer) AfterResponse(ctx context.Context, response observability.ResponseInfo) {
	attrs := append(requestAttrs(response.Request),
		slog.Duration(observability.AttrDuration, response.Duration),
		slog.Int(observability.AttrLLMAttempts, response.Attempts),
	)

	if response.Err != nil {
		attrs = append(attrs,
			slog.String(observability.AttrErrorClass, string(response.ErrorClass)),
			slog.String(observability.AttrError, response.Err.Error()),
		)
		o.logger.LogAttrs(ctx, slog.LevelError, "llm response", attrs...)
		return
	}

	if result := response.Response; result != nil {
		attrs = append(attrs, slog.String(observability.AttrLLMFinishReason, result.FinishReason()))
		if o.detail >= DetailStandard {
			attrs = append(attrs,
				slog.String(observability.AttrLLMResponseID, result.ID),
				slog.Int(observability.AttrResponseToolCalls, len(result.Message().ToolCalls)),
			)
			if usage := result.Usage; usage != nil {
				attrs = append(attrs,
					slog.Int(observability.AttrLLMTokensPrompt, usage.PromptTokens),
					slog.Int(observability.AttrLLMTokensCompletion, usage.CompletionTokens),
					slog.Int(observability.AttrLLMTokensTotal, usage.TotalTokens),
				)
			}
		}
		if o.detail >= DetailVerbose {
			attrs = append(attrs, slog.String(observability.AttrResponseContent,
				utils.TruncateString(result.Message().Content.String(), utils.DefaultMaxStringLength)))
		}
	}
	o.logger.LogAttrs(ctx, slog.LevelInfo, "llm response", attrs...)
}

// OnDelta logs streamed events at DetailVerbose.
func (o *Observer) OnDelta(ctx context.Context, request observability.RequestInfo, event ai.StreamEvent) {
	if o.detail < DetailVerbose {
		return
	}
	attrs := []slog.Attr{
		slog.String(observability.AttrLLMModel, request.Model),
		slog.String(observability.AttrLLMDeltaType, string(event.Type)),
	}
	switch event.Type {
	case ai.StreamEventText:
		attrs = append(attrs, slog.String(observability.AttrLLMDeltaContent, event.Text))
	case ai.StreamEventReasoning:
		attrs = append(attrs, slog.String(observability.AttrLLMDeltaContent, event.Reasoning))
	case ai.StreamEventToolCall:
		if event.ToolCall != nil {
			attrs = append(attrs, slog.String(observability.AttrLLMDeltaContent, event.ToolCall.Name+event.ToolCall.Arguments))
		}
	case ai.StreamEventDone:
		attrs = append(attrs, slog.String(observability.AttrLLMFinishReason, event.FinishReason))
	case ai.StreamEventError:
		attrs = append(attrs, slog.Any(observability.AttrError, event.Err))
	}
	o.logger.LogAttrs(ctx, slog.LevelDebug, "llm delta", attrs...)
}

// OnRetry logs a scheduled retry.
func (o *Observer) OnRetry(ctx context.Context, retry observability.RetryInfo) {
	attrs := append(requestAttrs(retry.Request),
		slog.Int(observability.AttrLLMAttempt, retry.Attempt),
		slog.Duration(observability.AttrLLMRetryDelay, retry.Delay),
		slog.String(observability.AttrErrorClass, string(retry.Class)),
	)
	if retry.Err != nil {
		attrs = append(attrs, slog.String(observability.AttrError, retry.Err.Error()))
	}
	o.logger.LogAttrs(ctx, slog.LevelWarn, "llm retry", attrs...)
}

func requestAttrs(request observability.RequestInfo) []slog.Attr {
	attrs := make([]slog.Attr, 0, 12)
	for _, attr := range request.Attributes() {
		attrs = append(attrs, slog.Any(attr.Key, attr.Value))
	}
	return attrs
}
