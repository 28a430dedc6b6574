package openai

import "github.com/xagent-cli/xagent/providers/ai"

// Name is the wire format identifier reported by the codec.
const Name = "openai"

// Codec implements ai.Codec for the chat-completions format.
type Codec struct{}

// New returns the chat-completions codec.
func New() Codec {
	return Codec{}
}

// Name implements ai.Codec.
func (Codec) Name() string { return Name }

// BuildRequest implements ai.Codec.
func (Codec) BuildRequest(model string, messages []ai.Message, options ai.CompletionOptions, stream bool) (any, error) {
	return buildRequest(model, messages, options, stream)
}

// ParseResponse implements ai.Codec.
func (Codec) ParseResponse(body []byte) (*ai.CompletionResponse, error) {
	return parseResponse(body)
}

// ParseModels implements ai.Codec.
func (Codec) ParseModels(body []byte) ([]ai.ModelInfo, error) {
	return parseModels(body)
}

// NewStreamHandler implements ai.Codec.
func (Codec) NewStreamHandler() ai.LineHandler {
	return newStreamHandler()
}

var _ ai.Codec = Codec{}
