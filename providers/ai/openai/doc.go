// Package openai is the codec for the default protocol family, the
// chat-completions wire format spoken by OpenAI and the many vendors that
// copy it. It converts the canonical conversation into a
// /chat/completions body, parses buffered responses and model listings, and
// turns "data: {json}" stream frames into canonical events.
//
// Vendors in this family disagree in small ways: content may be a string or
// a block array, reasoning may arrive as reasoning_content or reasoning, and
// tool calls may be reported at the top level or as tool_use blocks. The
// parser accepts all of these.
package openai
