// Package ai defines the canonical, provider-agnostic model shared by every
// wire-protocol family: messages with text or block content, tool definitions,
// completion options, the single-choice completion response and the streamed
// delta events.
//
// Each family package (openai, anthropic) implements [Codec] to map these
// types to its own wire format, keeping the rest of the client decoupled from
// vendor-specific details. [Completer] is the surface the session loop talks
// to; streamed responses are delivered through [Stream] as [StreamEvent] values.
package ai
