// Package anthropic is the codec for the native protocol family, the
// block-structured messages API. Requests carry the system prompt at the top
// level and every turn as a list of typed content blocks; responses and
// stream events are typed the same way.
//
// The hybrid vendor uses this codec whenever its base URL selects the
// anthropic-shaped path.
package anthropic
