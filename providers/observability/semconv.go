package observability

// Attribute keys shared by every observer.

// --- LLM call attributes ---

const (
	// AttrLLMFamily is the endpoint family (default, native, hybrid).
	AttrLLMFamily = "llm.family"

	// AttrLLMProvider is the wire format spoken (openai, anthropic).
	AttrLLMProvider = "llm.provider"

	// AttrLLMModel is the model identifier.
	AttrLLMModel = "llm.model"

	// AttrLLMEndpoint is the request URL.
	AttrLLMEndpoint = "llm.endpoint"

	// AttrLLMStream marks streamed calls.
	AttrLLMStream = "llm.stream"

	// AttrLLMAttempt is the one-based attempt number.
	AttrLLMAttempt = "llm.attempt"

	// AttrLLMAttempts is the number of attempts a call took.
	AttrLLMAttempts = "llm.attempts"

	// AttrLLMResponseID is the vendor response identifier.
	AttrLLMResponseID = "llm.response.id"

	// AttrLLMFinishReason is the canonical finish reason.
	AttrLLMFinishReason = "llm.finish_reason"

	// AttrLLMRetryDelay is the sleep before the next attempt.
	AttrLLMRetryDelay = "llm.retry.delay"

	// AttrLLMDeltaType is the type of a streamed event.
	AttrLLMDeltaType = "llm.delta.type"

	// AttrLLMDeltaContent is the text carried by a streamed event.
	AttrLLMDeltaContent = "llm.delta.content"
)

// --- Token usage ---

const (
	AttrLLMTokensPrompt     = "llm.tokens.prompt"     // #nosec G101 -- LLM tokens, not a credential
	AttrLLMTokensCompletion = "llm.tokens.completion" // #nosec G101 -- LLM tokens, not a credential
	AttrLLMTokensTotal      = "llm.tokens.total"      // #nosec G101 -- LLM tokens, not a credential
)

// --- Request / response ---

const (
	// AttrRequestMessagesCount is the number of messages sent.
	AttrRequestMessagesCount = "request.messages_count"

	// AttrRequestToolsCount is the number of tool definitions sent.
	AttrRequestToolsCount = "request.tools_count"

	// AttrRequestBody is the serialized vendor request body.
	AttrRequestBody = "request.body"

	// AttrResponseContent is the response text.
	AttrResponseContent = "response.content"

	// AttrResponseToolCalls is the number of tool calls in the response.
	AttrResponseToolCalls = "response.tool_calls"
)

// --- General ---

const (
	AttrError      = "error"
	AttrErrorClass = "error.class"
	AttrDuration   = "duration"
)

// --- Metric names ---

const (
	MetricRequestsTotal    = "xagent_llm_requests_total"
	MetricRequestDuration  = "xagent_llm_request_duration_seconds"
	MetricRetriesTotal     = "xagent_llm_retries_total"
	MetricStreamEventTotal = "xagent_llm_stream_events_total"
	MetricTokensTotal      = "xagent_llm_tokens_total" // #nosec G101 -- LLM tokens, not a credential
)
