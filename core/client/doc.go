// Package client is the completion client: it resolves the configured base URL
// to a protocol family, converts the canonical conversation with the matching
// codec, sends it and normalizes the answer back.
//
// The primary entry point is [New]. [Client.Complete] runs the whole
// build, send and parse cycle under the retry executor; [Client.Stream]
// returns a lazy [ai.Stream] that is never retried transparently.
// Configuration is an immutable snapshot, swapped atomically by
// [Client.Reconfigure]; calls already in flight keep the snapshot they
// started with. [Client.Abort] cancels every in-flight call and
// [Client.Close] additionally rejects later calls with [ErrClosed].
//
// Cross-cutting behavior can be layered around both call paths with
// [MiddlewareConfig] values; see the middleware subpackage.
package client
